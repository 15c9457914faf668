package proxy

import (
	"context"
	"sync"
)

// CancelToken is the single cancellation handle bound to one upstream
// request. Whichever side fires it first sets the cause; later fires are
// no-ops, and the hook runs once.
type CancelToken struct {
	once   sync.Once
	cancel context.CancelCauseFunc
	ctx    context.Context
	hook   func(cause error)
	stop   func() bool
}

// NewCancelToken derives the upstream context from request. The returned
// context ignores the request's own cancellation; only the token cancels it.
// Cancellation of request fires the token with ErrClientDisconnected.
// onCancel, if non-nil, runs exactly once with the winning cause; it must not
// call Cancel.
func NewCancelToken(request context.Context, onCancel func(cause error)) (context.Context, *CancelToken) {
	ctx, cancel := context.WithCancelCause(context.WithoutCancel(request))

	t := &CancelToken{
		cancel: cancel,
		ctx:    ctx,
		hook:   onCancel,
	}
	t.stop = context.AfterFunc(request, func() {
		t.Cancel(ErrClientDisconnected)
	})

	return ctx, t
}

// Cancel fires the token. It returns true only for the call that fired it.
func (t *CancelToken) Cancel(cause error) bool {
	fired := false
	t.once.Do(func() {
		fired = true
		t.stop()
		t.cancel(cause)
		if t.hook != nil {
			t.hook(cause)
		}
	})
	return fired
}

// Cause returns the winning cause, or nil while the token is live.
func (t *CancelToken) Cause() error {
	return context.Cause(t.ctx)
}

// Done is closed once the token fires.
func (t *CancelToken) Done() <-chan struct{} {
	return t.ctx.Done()
}
