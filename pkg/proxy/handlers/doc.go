// Package handlers provides the relay's HTTP handlers.
//
// StreamHandler serves GET /stream. Per request it opens exactly one
// upstream request, answers 502 "No stream" when the upstream has nothing to
// relay, and otherwise copies upstream bytes to the client unchanged,
// flushing after every read. A CancelToken ties the two sides together: a
// client disconnect aborts the upstream request, and an upstream end or
// failure ends the response. Each stream produces one journal record, one
// span and a set of relay metrics.
package handlers
