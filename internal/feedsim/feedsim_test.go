package feedsim

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mercator-hq/pricerelay/pkg/config"
)

type item struct{ at time.Time }

func (i item) Timestamp() time.Time { return i.at }

func TestBuffer(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBuffer[item](time.Minute, 3)

	if _, ok := b.Last(); ok {
		t.Fatal("empty buffer has a last item")
	}

	for i := 0; i < 4; i++ {
		b.Add(item{at: base.Add(time.Duration(i) * 10 * time.Second)})
	}
	if b.Len() != 3 {
		t.Fatalf("Len = %d, want 3 after eviction", b.Len())
	}
	last, _ := b.Last()
	if !last.at.Equal(base.Add(30 * time.Second)) {
		t.Errorf("Last = %v", last.at)
	}

	since := b.Since(base.Add(10 * time.Second))
	if len(since) != 2 {
		t.Errorf("Since returned %d items, want 2 strictly newer", len(since))
	}

	if dropped := b.Trim(base.Add(80 * time.Second)); dropped != 2 {
		t.Errorf("Trim dropped %d, want 2", dropped)
	}
	if b.Len() != 1 {
		t.Errorf("Len after trim = %d", b.Len())
	}
}

func TestWalk_BoundedSteps(t *testing.T) {
	start := decimal.NewFromInt(50000)
	vol := decimal.RequireFromString("0.002")
	w := NewWalk(start, vol, rand.New(rand.NewPCG(1, 2)))

	prev := start
	for i := 0; i < 1000; i++ {
		next := w.Next()
		limit := prev.Mul(vol).Add(decimal.New(1, -2))
		if next.Sub(prev).Abs().GreaterThan(limit) {
			t.Fatalf("step %d moved %s from %s, limit %s", i, next.Sub(prev), prev, limit)
		}
		if next.Exponent() < -2 {
			t.Fatalf("price %s not rounded to cents", next)
		}
		prev = next
	}
	if !w.Current().Equal(prev) {
		t.Error("Current does not match last Next")
	}
}

func TestPrice_MarshalJSON(t *testing.T) {
	p := Price{
		Symbol: "BTC-USD",
		At:     time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Value:  decimal.RequireFromString("50000.12"),
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"symbol":"BTC-USD","timestamp":"2024-01-01T12:00:00Z","price":50000.12}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func newTestSimulator(t *testing.T, now func() time.Time) *Simulator {
	t.Helper()
	s, err := New(config.FeedConfig{
		Symbol:       "BTC-USD",
		StartPrice:   "50000",
		Volatility:   "0.002",
		TickInterval: time.Hour,
		PingInterval: 50 * time.Millisecond,
		BufferTTL:    5 * time.Minute,
		BufferSize:   100,
	}, WithClock(now), WithRand(rand.New(rand.NewPCG(7, 7))))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSimulator_SkipsUnchangedPrice(t *testing.T) {
	s := newTestSimulator(t, time.Now)

	if !s.Publish(decimal.NewFromInt(100)) {
		t.Fatal("first price not published")
	}
	if s.Publish(decimal.RequireFromString("100.00")) {
		t.Error("unchanged price published")
	}
	if !s.Publish(decimal.NewFromInt(101)) {
		t.Error("changed price not published")
	}
}

func TestSimulator_InvalidSince(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSimulator(t, func() time.Time { return now })

	tests := []struct {
		name  string
		since string
	}{
		{"malformed", "yesterday"},
		{"too old", now.Add(-time.Hour).Format(time.RFC3339)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/price-stream?since="+tt.since, nil))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if strings.Contains(w.Header().Get("Content-Type"), "event-stream") {
				t.Error("stream headers written before rejection")
			}
		})
	}
}

// readFrames reads n SSE frames (comment or data blocks) from r.
func readFrames(t *testing.T, r *bufio.Reader, n int) []string {
	t.Helper()
	var frames []string
	var cur strings.Builder
	for len(frames) < n {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read after %d frames: %v", len(frames), err)
		}
		if line == "\n" {
			frames = append(frames, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteString(line)
	}
	return frames
}

func TestSimulator_Stream(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	s := newTestSimulator(t, clock)
	s.Publish(decimal.NewFromInt(50000))
	advance(time.Second)
	s.Publish(decimal.NewFromInt(50100))

	srv := httptest.NewServer(s)
	defer srv.Close()

	t.Run("latest price on subscribe", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		if resp.Header.Get("Content-Type") != "text/event-stream" {
			t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
		}

		frames := readFrames(t, bufio.NewReader(resp.Body), 3)
		if frames[0] != ": connected\n" {
			t.Errorf("first frame = %q", frames[0])
		}
		if !strings.Contains(frames[1], `"price":50100`) {
			t.Errorf("second frame = %q", frames[1])
		}
		if frames[2] != ": ping\n" {
			t.Errorf("third frame = %q", frames[2])
		}
	})

	t.Run("since replay", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		since := time.Date(2024, 1, 1, 11, 59, 59, 0, time.UTC).Format(time.RFC3339)
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?since="+since, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		frames := readFrames(t, bufio.NewReader(resp.Body), 3)
		if !strings.Contains(frames[1], `"price":50000`) || !strings.Contains(frames[2], `"price":50100`) {
			t.Errorf("replay = %q", frames[1:])
		}
	})

	t.Run("live broadcast", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		r := bufio.NewReader(resp.Body)
		readFrames(t, r, 2)

		deadline := time.Now().Add(2 * time.Second)
		for s.Subscribers() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		advance(time.Second)
		s.Publish(decimal.NewFromInt(49900))

		for i := 0; i < 10; i++ {
			frame := readFrames(t, r, 1)[0]
			if strings.HasPrefix(frame, ": ping") {
				continue
			}
			if !strings.Contains(frame, `"price":49900`) {
				t.Errorf("frame = %q", frame)
			}
			return
		}
		t.Error("broadcast price not received")
	})
}

func TestStubServer(t *testing.T) {
	stub := NewStubServer(
		StubResponse{Status: http.StatusInternalServerError},
		StubResponse{EmptyBody: true},
		StubResponse{Frames: []string{DataFrame("connected"), PriceFrame("1.5", time.Unix(0, 0))}},
	)
	defer stub.Close()

	resp, err := http.Get(stub.URL() + "/price-stream?a=1")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("first status = %d", resp.StatusCode)
	}

	resp, err = http.Get(stub.URL())
	if err != nil {
		t.Fatal(err)
	}
	if resp.Body != http.NoBody {
		t.Error("empty body response should have http.NoBody")
	}
	resp.Body.Close()

	for i := 0; i < 2; i++ {
		resp, err = http.Get(stub.URL())
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		want := "data: connected\n\n" + `data: {"price":1.5,"timestamp":"1970-01-01T00:00:00Z"}` + "\n\n"
		if string(body) != want {
			t.Errorf("body = %q", body)
		}
	}

	if stub.Requests() != 4 {
		t.Errorf("Requests = %d", stub.Requests())
	}
	if q := stub.Queries(); q[0] != "a=1" {
		t.Errorf("Queries = %v", q)
	}
}

func TestStubServer_CountsCancellation(t *testing.T) {
	stub := NewStubServer(StubResponse{HoldOpen: true})
	defer stub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, stub.URL(), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}

	changed := stub.Changed()
	cancel()
	resp.Body.Close()

	deadline := time.After(2 * time.Second)
	for stub.Cancellations() != 1 {
		select {
		case <-changed:
			changed = stub.Changed()
		case <-deadline:
			t.Fatal("cancellation not observed")
		}
	}
	if stub.Open() != 0 {
		t.Errorf("Open = %d", stub.Open())
	}
}
