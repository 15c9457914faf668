// Package sse reads server-sent events.
//
// Decoder implements the text/event-stream line format: data, event, id and
// retry fields, comment lines, and dispatch on a blank line. Dialer opens a
// subscription over HTTP and only hands "message" events to the caller, the
// same events a browser EventSource delivers to onmessage.
package sse
