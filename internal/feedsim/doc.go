// Package feedsim simulates the upstream price feed.
//
// Simulator serves the same stream the real feed does: a ": connected"
// comment on subscribe, a JSON data frame per price change and a ": ping"
// comment every ping interval. Prices come from a decimal random walk;
// unchanged prices are not broadcast. A TTL buffer backs ?since= replay.
//
// StubServer is a scripted upstream for tests: fixed frames, status and
// content-type overrides, an empty body and streams held open until the
// client leaves, with counters for requests and cancellations.
package feedsim
