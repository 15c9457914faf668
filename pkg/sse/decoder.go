package sse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxFrameBytes is the default limit for a single SSE line.
const DefaultMaxFrameBytes = 64 * 1024

// EventMessage is the event type assigned when no "event:" field is present.
const EventMessage = "message"

// ErrFrameTooLarge is returned when a line exceeds the decoder's limit.
var ErrFrameTooLarge = errors.New("sse: frame exceeds maximum size")

// Event is one dispatched server-sent event.
type Event struct {
	// Type is the event type, "message" unless the stream set one.
	Type string

	// Data is the event payload. Multiple data lines are joined with "\n".
	Data string

	// ID is the last event ID in effect when the event was dispatched.
	ID string

	// Retry is the reconnection time requested by the server, or 0.
	Retry time.Duration
}

// Decoder reads events from a text/event-stream body.
type Decoder struct {
	scanner *bufio.Scanner
	lastID  string
	retry   time.Duration

	// skipLF is set after a line ended in CR, so an LF that follows in a
	// later read completes CRLF instead of ending an empty line.
	skipLF bool
}

// NewDecoder returns a decoder reading from r. Lines longer than maxFrameBytes
// fail with ErrFrameTooLarge; maxFrameBytes <= 0 selects DefaultMaxFrameBytes.
func NewDecoder(r io.Reader, maxFrameBytes int) *Decoder {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	scanner := bufio.NewScanner(r)
	initial := 4096
	if maxFrameBytes < initial {
		initial = maxFrameBytes
	}
	scanner.Buffer(make([]byte, 0, initial), maxFrameBytes)
	d := &Decoder{scanner: scanner}
	scanner.Split(d.splitLines)
	return d
}

// splitLines splits on CRLF, LF or a lone CR. A line ending in CR is
// returned at once; the LF of a CRLF split across reads is skipped.
func (d *Decoder) splitLines(data []byte, atEOF bool) (int, []byte, error) {
	if d.skipLF && len(data) > 0 {
		d.skipLF = false
		if data[0] == '\n' {
			return 1, nil, nil
		}
	}
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	i := bytes.IndexAny(data, "\r\n")
	if i < 0 {
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
	if data[i] == '\n' {
		return i + 1, data[:i], nil
	}
	if i+1 < len(data) {
		if data[i+1] == '\n' {
			return i + 2, data[:i], nil
		}
		return i + 1, data[:i], nil
	}
	d.skipLF = true
	return i + 1, data[:i], nil
}

// Next returns the next dispatched event. Comment lines and blocks without
// data are skipped. It returns io.EOF when the stream ends; a partially
// received event at EOF is discarded.
func (d *Decoder) Next() (Event, error) {
	var (
		data      strings.Builder
		hasData   bool
		eventType string
	)

	for d.scanner.Scan() {
		line := d.scanner.Text()

		if line == "" {
			if !hasData {
				eventType = ""
				continue
			}
			if eventType == "" {
				eventType = EventMessage
			}
			return Event{
				Type:  eventType,
				Data:  data.String(),
				ID:    d.lastID,
				Retry: d.retry,
			}, nil
		}

		if line[0] == ':' {
			continue
		}

		field, value := line, ""
		if i := strings.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], line[i+1:]
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "event":
			eventType = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				d.lastID = value
			}
		case "retry":
			if ms, err := strconv.ParseUint(value, 10, 32); err == nil {
				d.retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := d.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Event{}, ErrFrameTooLarge
		}
		return Event{}, fmt.Errorf("sse: read: %w", err)
	}
	return Event{}, io.EOF
}

// LastEventID returns the most recent event ID seen on the stream.
func (d *Decoder) LastEventID() string {
	return d.lastID
}
