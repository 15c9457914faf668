package feed

import "github.com/shopspring/decimal"

// Direction is the movement of a price relative to the previous accepted one.
type Direction int

const (
	// Flat means equal to the previous price, or no previous price.
	Flat Direction = iota
	// Up means strictly greater than the previous price.
	Up
	// Down means strictly less than the previous price.
	Down
)

// String returns "up", "down" or "flat".
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "flat"
	}
}

// Compare derives the direction of price against previous.
func Compare(price decimal.Decimal, previous decimal.NullDecimal) Direction {
	if !previous.Valid {
		return Flat
	}
	switch price.Cmp(previous.Decimal) {
	case 1:
		return Up
	case -1:
		return Down
	default:
		return Flat
	}
}

// PriceSample is an accepted price with its comparison against the previous
// accepted price.
type PriceSample struct {
	Price     decimal.Decimal
	Previous  decimal.NullDecimal
	Direction Direction
	Timestamp Timestamp
	Symbol    string
}

// Tracker remembers the last accepted price and turns price messages into
// samples. It is not safe for concurrent use.
type Tracker struct {
	previous decimal.NullDecimal
	last     Timestamp
}

// Observe accepts msg, which must be of KindPrice, and returns its sample. The
// price replaces the previous reference.
func (t *Tracker) Observe(msg StreamMessage) PriceSample {
	sample := PriceSample{
		Price:     msg.Price,
		Previous:  t.previous,
		Direction: Compare(msg.Price, t.previous),
		Timestamp: msg.Timestamp,
		Symbol:    msg.Symbol,
	}
	t.previous = decimal.NullDecimal{Decimal: msg.Price, Valid: true}
	t.last = msg.Timestamp
	return sample
}

// Previous returns the last accepted price.
func (t *Tracker) Previous() decimal.NullDecimal {
	return t.previous
}

// LastTimestamp returns the timestamp of the last accepted price.
func (t *Tracker) LastTimestamp() Timestamp {
	return t.last
}
