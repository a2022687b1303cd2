package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Token is the cancellation handle of one session. It is signalled at most
// once and never reused.
type Token struct {
	id        string
	parent    context.Context
	ctx       context.Context
	cancel    context.CancelFunc
	signalled atomic.Bool
}

func newToken(parent context.Context) *Token {
	ctx, cancel := context.WithCancel(parent)
	return &Token{
		id:     uuid.NewString(),
		parent: parent,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID identifies the session the token belongs to.
func (t *Token) ID() string { return t.id }

// Context is cancelled when the token is signalled or released, or when the
// parent context ends. Blocking I/O of the session uses it.
func (t *Token) Context() context.Context { return t.ctx }

// Signalled reports whether the session was asked to stop, either through
// the canceller or by its parent context ending.
func (t *Token) Signalled() bool {
	return t.signalled.Load() || t.parent.Err() != nil
}

func (t *Token) signal() {
	t.signalled.Store(true)
	t.cancel()
}

// Canceller owns the token of the active session.
type Canceller struct {
	mu      sync.Mutex
	current *Token
}

// Start signals the previous token, if any, and returns a fresh one derived
// from parent.
func (c *Canceller) Start(parent context.Context) *Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.current.signal()
	}
	c.current = newToken(parent)
	return c.current
}

// Cancel signals the current token. It reports false when there is none.
func (c *Canceller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return false
	}
	c.current.signal()
	return true
}

// Release forgets t if it is still current and frees its context. It does
// not mark t as signalled.
func (c *Canceller) Release(t *Token) {
	c.mu.Lock()
	if c.current == t {
		c.current = nil
	}
	c.mu.Unlock()
	t.cancel()
}
