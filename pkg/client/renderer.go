package client

import (
	"log/slog"

	"mercator-hq/pricerelay/pkg/feed"
)

// Renderer presents manager output. The manager calls it only from its event
// loop, so implementations need no locking of their own unless they are shared.
type Renderer interface {
	// RenderStatus is called on every state change.
	RenderStatus(state State, label string)

	// RenderPrice is called once per accepted price.
	RenderPrice(sample feed.PriceSample)

	// RenderFlash sets (on) or clears the direction flash.
	RenderFlash(dir feed.Direction, on bool)
}

// LogRenderer writes manager output as log records.
type LogRenderer struct {
	Logger *slog.Logger
}

func (r LogRenderer) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// RenderStatus implements Renderer.
func (r LogRenderer) RenderStatus(state State, label string) {
	r.logger().Info("status", "state", state.String(), "label", label)
}

// RenderPrice implements Renderer.
func (r LogRenderer) RenderPrice(sample feed.PriceSample) {
	r.logger().Info("price",
		"symbol", sample.Symbol,
		"price", sample.Price.String(),
		"direction", sample.Direction.String(),
		"timestamp", sample.Timestamp.Raw,
	)
}

// RenderFlash implements Renderer.
func (r LogRenderer) RenderFlash(feed.Direction, bool) {}
