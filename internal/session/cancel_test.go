package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCancellerStartSignalsPrevious(t *testing.T) {
	var c Canceller
	first := c.Start(context.Background())
	assert.False(t, first.Signalled())

	second := c.Start(context.Background())
	assert.True(t, first.Signalled())
	assert.Error(t, first.Context().Err())
	assert.False(t, second.Signalled())
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestCancellerCancel(t *testing.T) {
	var c Canceller
	assert.False(t, c.Cancel(), "no token to cancel")

	tok := c.Start(context.Background())
	assert.True(t, c.Cancel())
	assert.True(t, tok.Signalled())
	assert.Error(t, tok.Context().Err())
}

func TestCancellerRelease(t *testing.T) {
	var c Canceller
	tok := c.Start(context.Background())
	c.Release(tok)

	assert.False(t, tok.Signalled(), "release is not a cancellation")
	assert.Error(t, tok.Context().Err())
	assert.False(t, c.Cancel(), "released token is no longer current")
}

func TestTokenParentCancelled(t *testing.T) {
	var c Canceller
	ctx, cancel := context.WithCancel(context.Background())
	tok := c.Start(ctx)

	cancel()
	assert.True(t, tok.Signalled())
}
