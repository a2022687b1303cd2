package session

import (
	"errors"
	"fmt"
)

// Status is the lifecycle position of a session.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusStarting    Status = "starting"
	StatusDownloading Status = "downloading"
	StatusDone        Status = "done"
	StatusAborting    Status = "aborting"
	StatusAborted     Status = "aborted"
	StatusError       Status = "error"
)

// Terminal reports whether s ends a session.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusAborted || s == StatusError
}

// Active reports whether a session in s may still transfer data.
func (s Status) Active() bool {
	return s == StatusStarting || s == StatusDownloading
}

// State is a snapshot of one session.
type State struct {
	ID       string
	Status   Status
	Progress int   // [0, 100]
	Received int64 // bytes buffered so far
	Total    int64 // announced size, 0 when unknown
	Err      string
}

// EventKind names a state machine input.
type EventKind int

const (
	EventReset EventKind = iota
	EventStart
	EventAccepted
	EventProgress
	EventComplete
	EventCancel
	EventAborted
	EventFail
)

var eventNames = [...]string{
	EventReset:    "reset",
	EventStart:    "start",
	EventAccepted: "accepted",
	EventProgress: "progress",
	EventComplete: "complete",
	EventCancel:   "cancel",
	EventAborted:  "aborted",
	EventFail:     "fail",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is an input to Transition. Only the fields relevant to Kind are
// read.
type Event struct {
	Kind     EventKind
	ID       string // EventReset
	Total    int64  // EventAccepted
	Received int64  // EventProgress, EventComplete
	Progress int    // EventProgress
	Err      error  // EventFail
}

// ErrInvalidTransition is returned for an event the current status does not
// accept.
var ErrInvalidTransition = errors.New("session: invalid transition")

// Transition applies e to s and returns the resulting state.
//
//	idle -start-> starting -accepted-> downloading -complete-> done
//	starting|downloading -cancel-> aborting -aborted-> aborted
//	starting|downloading -fail-> error
//
// Reset is accepted from idle and from any terminal status. Cancel while
// aborting is a no-op, and a failure while aborting still ends in aborted.
func Transition(s State, e Event) (State, error) {
	invalid := func() (State, error) {
		return s, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, e.Kind, s.Status)
	}

	switch e.Kind {
	case EventReset:
		if s.Status != StatusIdle && s.Status != "" && !s.Status.Terminal() {
			return invalid()
		}
		return State{ID: e.ID, Status: StatusIdle}, nil

	case EventStart:
		if s.Status != StatusIdle {
			return invalid()
		}
		s.Status = StatusStarting
		return s, nil

	case EventAccepted:
		if s.Status != StatusStarting {
			return invalid()
		}
		s.Status = StatusDownloading
		if e.Total > 0 {
			s.Total = e.Total
		}
		return s, nil

	case EventProgress:
		if s.Status != StatusDownloading {
			return invalid()
		}
		if e.Received > s.Received {
			s.Received = e.Received
		}
		if e.Progress > s.Progress {
			s.Progress = min(e.Progress, 100)
		}
		return s, nil

	case EventComplete:
		if s.Status != StatusDownloading {
			return invalid()
		}
		s.Status = StatusDone
		s.Progress = 100
		if e.Received > s.Received {
			s.Received = e.Received
		}
		return s, nil

	case EventCancel:
		switch {
		case s.Status.Active():
			s.Status = StatusAborting
			return s, nil
		case s.Status == StatusAborting:
			return s, nil
		}
		return invalid()

	case EventAborted:
		if s.Status != StatusAborting {
			return invalid()
		}
		s.Status = StatusAborted
		return s, nil

	case EventFail:
		switch {
		case s.Status.Active():
			s.Status = StatusError
			if e.Err != nil {
				s.Err = e.Err.Error()
			}
			return s, nil
		case s.Status == StatusAborting:
			s.Status = StatusAborted
			return s, nil
		}
		return invalid()
	}

	return invalid()
}
