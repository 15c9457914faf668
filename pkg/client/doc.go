// Package client implements the connection manager that consumes the relay
// stream.
//
// A Manager keeps one logical subscription to the relay alive for as long as
// its Run context lives. It cycles through Connecting, Connected and
// Disconnected; after a transport error it arms a single interval ticker that
// starts a new attempt on every tick until one opens. Price messages are
// decoded, compared with the previous accepted price and handed to a
// Renderer together with a short-lived direction flash:
//
//	m, err := client.New(cfg.Client, renderer, client.WithMetrics(collector))
//	if err != nil {
//		return err
//	}
//	return m.Run(ctx)
//
// All manager state is owned by the Run goroutine. Subscription readers and
// timers post events to it and never touch state directly.
package client
