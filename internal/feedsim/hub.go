package feedsim

import "sync"

// hub fans prices out to subscribers. A subscriber that is not keeping up
// misses updates rather than slowing the others.
type hub struct {
	mu   sync.RWMutex
	subs map[chan Price]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan Price]struct{})}
}

func (h *hub) subscribe(buffer int) chan Price {
	ch := make(chan Price, buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan Price) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// broadcast returns the number of subscribers that received p.
func (h *hub) broadcast(p Price) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for ch := range h.subs {
		select {
		case ch <- p:
			sent++
		default:
		}
	}
	return sent
}

func (h *hub) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
