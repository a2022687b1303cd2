package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Yumeka433/igdl/internal/artifact"
	"github.com/Yumeka433/igdl/internal/downloader"
	igdlhttp "github.com/Yumeka433/igdl/internal/http"
	"github.com/Yumeka433/igdl/internal/progress"
)

// Transport issues a download request. *igdlhttp.Client implements it.
type Transport interface {
	Do(ctx context.Context, r *igdlhttp.Request) (*igdlhttp.Response, error)
}

// Observer receives every state change, in order. Observers run while the
// controller holds its notification lock and must not call back into the
// controller.
type Observer interface {
	Observe(State)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(State)

// Observe calls f(s).
func (f ObserverFunc) Observe(s State) { f(s) }

// Options configures a Controller.
type Options struct {
	// Progress controls estimation when the size is unknown.
	// Default: progress.DefaultPolicy()
	Progress progress.Policy

	// Store receives the artifact of every completed session. When nil the
	// artifact is only returned to the caller.
	Store *artifact.Store

	// Logger receives session lifecycle logs. Zero value discards.
	Logger zerolog.Logger

	// Observers are notified of every state change.
	Observers []Observer
}

// Result is the outcome of a completed session.
type Result struct {
	State    State
	Artifact *artifact.Artifact

	// Handle addresses the published artifact. It is nil without a Store
	// and is released when the next session starts or the controller is
	// closed.
	Handle *artifact.Handle
}

// Controller runs download sessions one at a time. Start, Cancel, State and
// Close may be called from different goroutines.
type Controller struct {
	transport Transport
	opts      Options
	log       zerolog.Logger
	canceller Canceller

	mu     sync.Mutex
	state  State
	done   chan struct{} // closed when the active session has finished
	handle *artifact.Handle
	last   *Result

	// emitMu serialises notifications so observers see states in the order
	// they were applied.
	emitMu sync.Mutex
}

// New creates a controller issuing requests through t.
func New(t Transport, opts Options) *Controller {
	return &Controller{
		transport: t,
		opts:      opts,
		log:       opts.Logger,
		state:     State{Status: StatusIdle},
	}
}

// State returns a snapshot of the current session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Last returns the result of the most recent completed session, or nil.
func (c *Controller) Last() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Start runs a session for req and blocks until it reaches a terminal
// state. A session already in flight is cancelled first, and Start waits
// for it to reach aborted before the new one starts.
//
// The returned error is igdlhttp.ErrCancelled when the session was aborted,
// and the transport or stream failure when it ended in error.
func (c *Controller) Start(ctx context.Context, req *igdlhttp.Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tok, done, prev := c.begin(ctx)
	defer func() {
		c.canceller.Release(tok)
		c.mu.Lock()
		c.done = nil
		c.mu.Unlock()
		close(done)
	}()

	log := c.log.With().Str("session", tok.ID()).Logger()
	if prev != nil {
		if err := prev.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Str("key", prev.Key).Msg("failed to release previous artifact")
		}
	}

	log.Info().Str("method", req.Method).Str("target", req.TargetURL).Msg("session started")

	res, a, err := c.run(tok, req, log)
	return c.finish(tok, res, a, err, log)
}

// Cancel asks the active session to stop. It reports false when no session
// is starting or downloading.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	if !c.state.Status.Active() {
		c.mu.Unlock()
		return false
	}
	c.canceller.Cancel()
	c.commitLocked(Event{Kind: EventCancel})
	return true
}

// Close cancels the active session, waits for it to finish and releases the
// last published artifact.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	for c.done != nil {
		done := c.done
		c.mu.Unlock()
		c.Cancel()
		<-done
		c.mu.Lock()
	}
	h := c.handle
	c.handle = nil
	c.mu.Unlock()

	if h != nil {
		return h.Release(ctx)
	}
	return nil
}

// begin waits for any active session to end, then installs a new token and
// moves through idle to starting. It returns the handle of the superseded
// session, which the caller must release.
func (c *Controller) begin(ctx context.Context) (*Token, chan struct{}, *artifact.Handle) {
	c.mu.Lock()
	for c.done != nil {
		prev := c.done
		if c.state.Status.Active() {
			c.canceller.Cancel()
			c.commitLocked(Event{Kind: EventCancel})
		} else {
			c.mu.Unlock()
		}
		<-prev
		c.mu.Lock()
	}

	tok := c.canceller.Start(ctx)
	done := make(chan struct{})
	c.done = done
	prev := c.handle
	c.handle = nil

	c.commitLocked(Event{Kind: EventReset, ID: tok.ID()}, Event{Kind: EventStart})
	return tok, done, prev
}

func (c *Controller) run(tok *Token, req *igdlhttp.Request, log zerolog.Logger) (*downloader.Result, *artifact.Artifact, error) {
	resp, err := c.transport.Do(tok.Context(), req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	total := resp.Meta.ContentLength
	if total < 0 {
		total = 0
	}
	if err := c.advance(Event{Kind: EventAccepted, Total: total}); err != nil {
		// Cancelled between the response and the first read.
		return nil, nil, igdlhttp.ErrCancelled
	}

	log.Debug().
		Int64("total", total).
		Str("filename", resp.Meta.Filename).
		Bool("incremental", resp.Body.Incremental()).
		Msg("response accepted")

	est := progress.NewEstimator(total, c.opts.Progress)
	res, err := downloader.Read(resp.Body, tok, est, downloader.Options{
		Logger: log,
		OnChunk: func(u downloader.Update) {
			// A rejected update means the session is aborting; the read loop
			// notices on its next check.
			_ = c.advance(Event{Kind: EventProgress, Received: u.Received, Progress: u.Percent})
		},
	})
	if err != nil {
		return nil, nil, err
	}

	return res, artifact.Assemble(res.Chunks, resp.Meta.ContentType, resp.Meta.Filename), nil
}

func (c *Controller) finish(tok *Token, res *downloader.Result, a *artifact.Artifact, err error, log zerolog.Logger) (*Result, error) {
	var handle *artifact.Handle
	if err == nil && !tok.Signalled() && c.opts.Store != nil {
		handle, err = c.opts.Store.Publish(tok.Context(), tok.ID(), a)
		if err != nil && tok.Signalled() {
			err = igdlhttp.ErrCancelled
		}
	}

	c.mu.Lock()
	aborted := tok.Signalled() || igdlhttp.IsCancelled(err) || c.state.Status == StatusAborting

	switch {
	case aborted:
		events := []Event{{Kind: EventAborted}}
		if c.state.Status.Active() {
			events = append([]Event{{Kind: EventCancel}}, events...)
		}
		st, _ := c.commitLocked(events...)
		if handle != nil {
			if rerr := handle.Release(context.Background()); rerr != nil {
				log.Warn().Err(rerr).Msg("failed to release aborted artifact")
			}
		}
		log.Info().Int64("received", st.Received).Msg("session aborted")
		return nil, igdlhttp.ErrCancelled

	case err != nil:
		st, _ := c.commitLocked(Event{Kind: EventFail, Err: err})
		log.Error().Err(err).Int64("received", st.Received).Msg("session failed")
		return nil, err
	}

	var result *Result
	_, terr := c.commitLockedWith(func() {
		c.handle = handle
		result = &Result{State: c.state, Artifact: a, Handle: handle}
		c.last = result
	}, Event{Kind: EventComplete, Received: res.Received})
	if terr != nil {
		return nil, fmt.Errorf("complete session: %w", terr)
	}

	log.Info().
		Int64("size", a.Size()).
		Str("filename", a.Filename).
		Str("content_type", a.ContentType).
		Msg("session done")

	return result, nil
}

// advance applies events under the state lock and notifies observers.
func (c *Controller) advance(events ...Event) error {
	c.mu.Lock()
	_, err := c.commitLocked(events...)
	return err
}

// commitLocked applies events in order, stopping at the first rejected one,
// and notifies observers of every state reached. c.mu must be held; it is
// released before observers run.
func (c *Controller) commitLocked(events ...Event) (State, error) {
	return c.commitLockedWith(nil, events...)
}

// commitLockedWith is commitLocked with a hook run under c.mu once all
// events were accepted.
func (c *Controller) commitLockedWith(onApplied func(), events ...Event) (State, error) {
	var (
		states []State
		err    error
	)
	for _, e := range events {
		next, terr := Transition(c.state, e)
		if terr != nil {
			err = terr
			break
		}
		c.state = next
		states = append(states, next)
	}
	if err == nil && onApplied != nil {
		onApplied()
	}
	current := c.state

	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()

	for _, s := range states {
		for _, o := range c.opts.Observers {
			o.Observe(s)
		}
	}
	return current, err
}
