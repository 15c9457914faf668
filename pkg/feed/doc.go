// Package feed decodes price feed payloads and derives price direction.
//
// A payload is either a control sentinel ("ping", "connected") or a JSON
// object with a price and a timestamp:
//
//	{"symbol":"BTC-USD","timestamp":"2024-01-01T00:00:00Z","price":50000}
//
// Prices are held as decimal.Decimal. The price may arrive as a JSON number or
// as a numeric string; anything else is rejected with a *DecodeError and the
// message is dropped by the consumer.
package feed
