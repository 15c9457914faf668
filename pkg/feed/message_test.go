package feed

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDecode_Sentinels(t *testing.T) {
	for _, payload := range []string{"ping", "connected"} {
		msg, err := Decode(payload)
		if err != nil {
			t.Fatalf("Decode(%q) error: %v", payload, err)
		}
		if msg.Kind != KindControl || msg.Control != payload {
			t.Errorf("Decode(%q) = %+v, want control", payload, msg)
		}
	}
}

func TestDecode_SentinelMatchIsExact(t *testing.T) {
	for _, payload := range []string{"PING", " ping", "connected\n", "pong"} {
		if IsSentinel(payload) {
			t.Errorf("IsSentinel(%q) = true", payload)
		}
		if _, err := Decode(payload); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("Decode(%q) error = %v, want ErrMalformedPayload", payload, err)
		}
	}
}

func TestDecode_Prices(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantPrice string
		wantTime  time.Time
		wantRaw   string
	}{
		{
			name:      "number",
			payload:   `{"price": 50000, "timestamp": "2024-01-01T00:00:00Z"}`,
			wantPrice: "50000",
			wantTime:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			wantRaw:   "2024-01-01T00:00:00Z",
		},
		{
			name:      "fractional number",
			payload:   `{"symbol":"BTC","price": 50123.45,"timestamp":"2024-01-01T00:00:05Z"}`,
			wantPrice: "50123.45",
			wantTime:  time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC),
			wantRaw:   "2024-01-01T00:00:05Z",
		},
		{
			name:      "numeric string with spaces",
			payload:   `{"price": " 42.5 ", "timestamp": "2024-01-01T00:00:00Z"}`,
			wantPrice: "42.5",
			wantTime:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			wantRaw:   "2024-01-01T00:00:00Z",
		},
		{
			name:      "exponent",
			payload:   `{"price": 5e4, "timestamp": "2024-01-01T00:00:00Z"}`,
			wantPrice: "50000",
			wantTime:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			wantRaw:   "2024-01-01T00:00:00Z",
		},
		{
			name:      "largest exponent",
			payload:   `{"price": 1e64}`,
			wantPrice: "1e64",
		},
		{
			name:      "epoch millis timestamp",
			payload:   `{"price": 1, "timestamp": 1704067200000}`,
			wantPrice: "1",
			wantTime:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			wantRaw:   "1704067200000",
		},
		{
			name:      "unparseable timestamp still delivered",
			payload:   `{"price": 7, "timestamp": "yesterday"}`,
			wantPrice: "7",
			wantRaw:   "yesterday",
		},
		{
			name:      "missing timestamp still delivered",
			payload:   `{"price": 8}`,
			wantPrice: "8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.payload)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.Kind != KindPrice {
				t.Fatalf("expected price kind, got %v", msg.Kind)
			}
			if !msg.Price.Equal(decimal.RequireFromString(tt.wantPrice)) {
				t.Errorf("price = %s, want %s", msg.Price, tt.wantPrice)
			}
			if !msg.Timestamp.Time.Equal(tt.wantTime) {
				t.Errorf("time = %v, want %v", msg.Timestamp.Time, tt.wantTime)
			}
			if msg.Timestamp.Raw != tt.wantRaw {
				t.Errorf("raw = %q, want %q", msg.Timestamp.Raw, tt.wantRaw)
			}
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"not json", `hello`, ErrMalformedPayload},
		{"truncated json", `{"price": 5`, ErrMalformedPayload},
		{"json array", `[1,2]`, ErrMalformedPayload},
		{"bare number", `42`, ErrMalformedPayload},
		{"missing price", `{"timestamp": "2024-01-01T00:00:00Z"}`, ErrMissingPrice},
		{"null price", `{"price": null}`, ErrMissingPrice},
		{"empty string", `{"price": ""}`, ErrInvalidPrice},
		{"word", `{"price": "abc"}`, ErrInvalidPrice},
		{"NaN string", `{"price": "NaN"}`, ErrInvalidPrice},
		{"infinity string", `{"price": "Infinity"}`, ErrInvalidPrice},
		{"bool", `{"price": true}`, ErrInvalidPrice},
		{"object", `{"price": {"v": 1}}`, ErrInvalidPrice},
		{"array", `{"price": [1]}`, ErrInvalidPrice},
		{"huge exponent", `{"price": 1e300000000}`, ErrInvalidPrice},
		{"tiny exponent", `{"price": 1e-300000000}`, ErrInvalidPrice},
		{"huge exponent string", `{"price": "5E+65"}`, ErrInvalidPrice},
		{"too many digits", `{"price": 12345678901234567890123456789012345678901234567890123456789012345}`, ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.payload)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DecodeError, got %T", err)
			}
		})
	}
}

func TestDecodeError_TruncatesPayload(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	_, err := Decode(string(long))

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %T", err)
	}
	if len(de.Payload) > maxPayloadInError+3 {
		t.Errorf("payload not truncated: %d bytes", len(de.Payload))
	}
}
