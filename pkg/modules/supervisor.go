package modules

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// ErrUnavailable means a controller exhausted its reconnection budget
// and will make no further attempts.
var ErrUnavailable = errors.New("module unavailable")

const (
	reconnectBase = time.Second
	reconnectCap  = 30 * time.Second
	maxRetries    = 10
)

// Session is one connected run against a module's backing service.
// The session calls ready once the link is up, then blocks until the
// link drops or ctx ends.
type Session func(ctx context.Context, ready func()) error

// Supervisor restarts a session with exponential backoff. A session
// that reaches ready resets the failure streak; MaxRetries straight
// failures mark the module unavailable for good. Zero fields take the
// package defaults.
type Supervisor struct {
	Kind   string
	Logger *slog.Logger
	Emit   func(Update)

	Base       time.Duration
	Cap        time.Duration
	MaxRetries int
}

func (s *Supervisor) emit(state State, err error) {
	if s.Emit != nil {
		s.Emit(Update{Kind: s.Kind, State: state, Err: err})
	}
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

// Run drives session until ctx is cancelled or the retry budget is
// spent. It returns ErrUnavailable in the latter case, nil in the
// former.
func (s *Supervisor) Run(ctx context.Context, session Session) error {
	logger := s.logger()
	base, limit, retries := s.Base, s.Cap, s.MaxRetries
	if base <= 0 {
		base = reconnectBase
	}
	if limit <= 0 {
		limit = reconnectCap
	}
	if retries <= 0 {
		retries = maxRetries
	}
	delay := base
	failures := 0

	s.emit(StateStarting, nil)
	for {
		connected := false
		err := session(ctx, func() {
			connected = true
			failures = 0
			delay = base
			s.emit(StateConnected, nil)
		})
		if ctx.Err() != nil {
			return nil
		}

		// A session can rule the backing service out entirely, e.g.
		// the daemon's bus name has no owner. No point retrying.
		if errors.Is(err, ErrUnavailable) {
			logger.Error("module unavailable", "kind", s.Kind, "err", err)
			s.emit(StateUnavailable, err)
			return ErrUnavailable
		}

		if !connected {
			failures++
			if failures >= retries {
				logger.Error("module gave up reconnecting",
					"kind", s.Kind, "attempts", failures, "err", err)
				s.emit(StateUnavailable, err)
				return ErrUnavailable
			}
		}
		logger.Debug("module session ended",
			"kind", s.Kind, "retry_in", delay, "err", err)
		s.emit(StateDisconnected, err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		s.emit(StateReconnecting, nil)

		delay *= 2
		if delay > limit {
			delay = limit
		}
	}
}
