package feedsim

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Price is one simulated quote. It marshals to the upstream wire shape:
// {"symbol":"BTC-USD","timestamp":"2024-01-01T00:00:00Z","price":50000.12}
type Price struct {
	Symbol string
	At     time.Time
	Value  decimal.Decimal
}

// Timestamp implements Timestamped.
func (p Price) Timestamp() time.Time {
	return p.At
}

// MarshalJSON writes the price as a JSON number and the time as RFC3339.
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Symbol    string      `json:"symbol"`
		Timestamp string      `json:"timestamp"`
		Price     json.Number `json:"price"`
	}{
		Symbol:    p.Symbol,
		Timestamp: p.At.UTC().Format(time.RFC3339),
		Price:     json.Number(p.Value.String()),
	})
}
