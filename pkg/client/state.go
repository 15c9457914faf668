package client

import (
	"fmt"
	"time"
)

// State is the connection state of a Manager.
type State int32

const (
	// Connecting means a subscription is being opened.
	Connecting State = iota
	// Connected means the current subscription is open.
	Connected
	// Disconnected means the last subscription failed and a retry is pending.
	Disconnected
)

// String returns the lowercase state name used in logs and metrics.
func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Label returns the status text shown to the user. retry is the reconnect
// interval announced while disconnected.
func (s State) Label(retry time.Duration) string {
	switch s {
	case Connecting:
		return "Connecting..."
	case Connected:
		return "Connected ✅"
	case Disconnected:
		return fmt.Sprintf("Disconnected 🔌 Retrying in %s...", retry)
	default:
		return s.String()
	}
}
