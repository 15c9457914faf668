// Pricerelay relays a server-sent price stream to browser and terminal
// clients.
//
// Usage:
//
//	# Start the relay with defaults, reading upstream from localhost:17020
//	pricerelay run
//
//	# Start with a configuration file and a different upstream
//	pricerelay run --config relay.yaml --upstream http://feed.internal:17020/v1
//
//	# Run the built-in price feed simulator
//	pricerelay feed
//
//	# Follow the relay from a terminal
//	pricerelay watch
//
//	# Inspect and prune the session journal
//	pricerelay sessions list --outcome upstream_error
//	pricerelay sessions prune --older-than 7
package main

func main() {
	Execute()
}
