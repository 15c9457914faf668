package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTimeoutMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		delay      time.Duration
		wantStatus int
	}{
		{name: "fast handler", delay: 0, wantStatus: http.StatusTeapot},
		{name: "slow handler", delay: 200 * time.Millisecond, wantStatus: http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := TimeoutMiddleware(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(tt.delay):
				case <-r.Context().Done():
				}
				w.Header().Set("X-Handler", "yes")
				w.WriteHeader(http.StatusTeapot)
				_, _ = w.Write([]byte("late"))
			}))

			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusTeapot && w.Header().Get("X-Handler") != "yes" {
				t.Error("handler headers not copied")
			}
		})
	}
}

func TestTimeoutMiddleware_PropagatesPanic(t *testing.T) {
	wrapped := RecoveryMiddleware(TimeoutMiddleware(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("inner")
	})))

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
}
