// Package proxy holds the relay's upstream plumbing: the pooled upstream
// client, the per-stream cancellation token, typed upstream errors and the
// response writers shared by the HTTP handlers.
//
// A relayed stream owns exactly one upstream request. Its context is detached
// from the inbound request and cancelled only through a CancelToken, which
// either side fires:
//
//	ctx, token := proxy.NewCancelToken(r.Context(), onCancel)
//	resp, err := upstream.Open(ctx, r.URL.RawQuery, hdr)
//	if err != nil {
//		proxy.WriteNoStream(w) // 502, plain text
//		return
//	}
//	defer token.Cancel(proxy.ErrUpstreamClosed)
//
// The first cause wins. A client disconnect fires ErrClientDisconnected,
// which aborts the upstream read; a failed read or write fires its own cause,
// which ends the handler. The token never retries anything.
package proxy
