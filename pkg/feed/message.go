package feed

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Control sentinels carried as plain message payloads.
const (
	SentinelPing      = "ping"
	SentinelConnected = "connected"
)

// Kind discriminates a StreamMessage.
type Kind int

const (
	// KindControl is a liveness sentinel with no application data.
	KindControl Kind = iota
	// KindPrice is a price update.
	KindPrice
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindControl:
		return "control"
	case KindPrice:
		return "price"
	default:
		return "unknown"
	}
}

// StreamMessage is a decoded message payload. Exactly one of Control or the
// price fields is meaningful, as selected by Kind.
type StreamMessage struct {
	Kind Kind

	// Control is the sentinel value when Kind is KindControl.
	Control string

	// Price is the coerced price when Kind is KindPrice.
	Price decimal.Decimal

	// Timestamp is the update time when Kind is KindPrice.
	Timestamp Timestamp

	// Symbol is the instrument symbol, if the payload carried one.
	Symbol string
}

// Timestamp keeps the timestamp exactly as received together with its parsed
// value. Time is zero when the raw value could not be parsed; such messages are
// still delivered.
type Timestamp struct {
	Raw  string
	Time time.Time
}

// Valid reports whether the raw timestamp was parsed.
func (t Timestamp) Valid() bool {
	return !t.Time.IsZero()
}

// String returns the raw timestamp.
func (t Timestamp) String() string {
	return t.Raw
}

// IsSentinel reports whether payload is one of the control sentinels. The
// comparison is exact; no trimming or case folding is applied.
func IsSentinel(payload string) bool {
	return payload == SentinelPing || payload == SentinelConnected
}

// wirePrice mirrors the JSON price frame. Fields stay raw so price and
// timestamp can be coerced from several JSON types.
type wirePrice struct {
	Symbol    string          `json:"symbol"`
	Price     json.RawMessage `json:"price"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// Decode classifies a message payload. Sentinels decode to KindControl before
// any JSON parsing. Everything else must be a JSON object whose price is a
// number or a numeric string; otherwise a *DecodeError is returned and the
// message must be dropped.
func Decode(payload string) (StreamMessage, error) {
	if IsSentinel(payload) {
		return StreamMessage{Kind: KindControl, Control: payload}, nil
	}

	var w wirePrice
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return StreamMessage{}, newDecodeError(ErrMalformedPayload, payload, err)
	}

	price, err := CoercePrice(w.Price)
	if err != nil {
		return StreamMessage{}, newDecodeError(err, payload, nil)
	}

	return StreamMessage{
		Kind:      KindPrice,
		Price:     price,
		Timestamp: parseTimestamp(w.Timestamp),
		Symbol:    w.Symbol,
	}, nil
}

// CoercePrice converts a raw JSON value to a decimal price. JSON numbers and
// strings holding a decimal number (surrounding whitespace allowed) are
// accepted. Null, booleans, objects, arrays, empty strings, non-finite
// values and numbers beyond 64 digits or a 10^±64 exponent are rejected.
func CoercePrice(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Decimal{}, ErrMissingPrice
	}

	var text string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Decimal{}, ErrInvalidPrice
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return decimal.Decimal{}, ErrInvalidPrice
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		text = string(raw)
	default:
		return decimal.Decimal{}, ErrInvalidPrice
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidPrice
	}
	if !inPriceRange(d) {
		return decimal.Decimal{}, ErrInvalidPrice
	}
	return d, nil
}

// Limits on accepted prices; comparison rescales to a common exponent.
const (
	maxPriceExponent = 64
	maxPriceDigits   = 64
)

func inPriceRange(d decimal.Decimal) bool {
	if exp := d.Exponent(); exp > maxPriceExponent || exp < -maxPriceExponent {
		return false
	}
	coef := d.Coefficient()
	return len(coef.Abs(coef).String()) <= maxPriceDigits
}

// timestampLayouts are tried in order when parsing string timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// parseTimestamp accepts an RFC3339-like string or a number of milliseconds
// since the Unix epoch.
func parseTimestamp(raw json.RawMessage) Timestamp {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Timestamp{}
	}

	if raw[0] != '"' {
		ts := Timestamp{Raw: string(raw)}
		if ms, err := strconv.ParseFloat(string(raw), 64); err == nil {
			ts.Time = time.UnixMilli(int64(ms)).UTC()
		}
		return ts
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Timestamp{Raw: string(raw)}
	}
	ts := Timestamp{Raw: s}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			ts.Time = t
			break
		}
	}
	return ts
}
