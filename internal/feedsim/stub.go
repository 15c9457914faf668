package feedsim

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// StubResponse scripts one upstream response.
type StubResponse struct {
	// Status defaults to 200.
	Status int

	// ContentType defaults to text/event-stream.
	ContentType string

	// Frames are written and flushed one at a time, byte for byte.
	Frames []string

	// FrameDelay is slept before each frame.
	FrameDelay time.Duration

	// EmptyBody answers with Content-Length: 0 and nothing else.
	EmptyBody bool

	// HoldOpen keeps the response open after the frames until the client
	// goes away.
	HoldOpen bool
}

// StubServer is a scripted SSE upstream for tests. Each request consumes
// the next scripted response; the last one repeats.
type StubServer struct {
	server *httptest.Server

	mu            sync.Mutex
	script        []StubResponse
	requests      int
	cancellations int
	queries       []string
	headers       []http.Header
	open          int
	changed       chan struct{}
}

// NewStubServer starts a stub answering with responses in order.
func NewStubServer(responses ...StubResponse) *StubServer {
	s := &StubServer{
		script:  responses,
		changed: make(chan struct{}),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the stub's base URL. Any path is served.
func (s *StubServer) URL() string {
	return s.server.URL
}

// Close shuts the stub down, ending held streams.
func (s *StubServer) Close() {
	s.server.CloseClientConnections()
	s.server.Close()
}

// SetScript replaces the remaining responses.
func (s *StubServer) SetScript(responses ...StubResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = responses
}

// Requests returns how many requests were received.
func (s *StubServer) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Cancellations returns how many held-open responses ended because the
// client went away.
func (s *StubServer) Cancellations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancellations
}

// Open returns the number of responses currently in progress.
func (s *StubServer) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Queries returns the raw query of every request, in order.
func (s *StubServer) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// Headers returns the headers of every request, in order.
func (s *StubServer) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.headers...)
}

// Changed returns a channel closed on the next request start or end.
func (s *StubServer) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

func (s *StubServer) next(r *http.Request) StubResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests++
	s.open++
	s.queries = append(s.queries, r.URL.RawQuery)
	s.headers = append(s.headers, r.Header.Clone())
	s.notifyLocked()

	if len(s.script) == 0 {
		return StubResponse{HoldOpen: true}
	}
	resp := s.script[0]
	if len(s.script) > 1 {
		s.script = s.script[1:]
	}
	return resp
}

func (s *StubServer) done(cancelled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open--
	if cancelled {
		s.cancellations++
	}
	s.notifyLocked()
}

func (s *StubServer) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *StubServer) handle(w http.ResponseWriter, r *http.Request) {
	resp := s.next(r)
	cancelled := false
	defer func() { s.done(cancelled) }()

	if resp.EmptyBody {
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(statusOr(resp.Status))
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "text/event-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(statusOr(resp.Status))

	rc := http.NewResponseController(w)
	_ = rc.Flush()

	for _, frame := range resp.Frames {
		if resp.FrameDelay > 0 {
			select {
			case <-time.After(resp.FrameDelay):
			case <-r.Context().Done():
				cancelled = true
				return
			}
		}
		if _, err := io.WriteString(w, frame); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}

	if resp.HoldOpen {
		<-r.Context().Done()
		cancelled = true
	}
}

func statusOr(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}

// PriceFrame renders a price data frame with a JSON number price.
func PriceFrame(price string, timestamp time.Time) string {
	return `data: {"price":` + price + `,"timestamp":"` + timestamp.UTC().Format(time.RFC3339) + `"}` + "\n\n"
}

// DataFrame renders payload as a single data frame.
func DataFrame(payload string) string {
	return "data: " + payload + "\n\n"
}
