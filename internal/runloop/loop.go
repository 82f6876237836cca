// Package runloop repeats a unit of work on a fixed interval until the context is cancelled.
package runloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/JakeFAU/chansearch/internal/metrics"
)

// Policy decides how the pause between iterations is computed.
type Policy string

const (
	// PolicyDrift sleeps interval minus the time the work took, never negative.
	PolicyDrift Policy = "drift"
	// PolicyFixedDelay sleeps the full interval after every iteration.
	PolicyFixedDelay Policy = "fixed_delay"
)

// Work is one iteration of a loop.
type Work func(ctx context.Context) error

// Loop runs Work repeatedly on one goroutine; iterations never overlap.
type Loop struct {
	name     string
	interval time.Duration
	policy   Policy
	clock    clockwork.Clock
	logger   *zap.Logger
}

// New constructs a Loop. A nil clock uses the wall clock.
func New(name string, interval time.Duration, policy Policy, clock clockwork.Clock, logger *zap.Logger) (*Loop, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	switch policy {
	case "":
		policy = PolicyDrift
	case PolicyDrift, PolicyFixedDelay:
	default:
		return nil, fmt.Errorf("unknown loop policy %q", policy)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		name:     name,
		interval: interval,
		policy:   policy,
		clock:    clock,
		logger:   logger.With(zap.String("loop", name)),
	}, nil
}

// Run blocks until ctx is cancelled. Errors and panics from work are logged and the next
// iteration still happens.
func (l *Loop) Run(ctx context.Context, work Work) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		start := l.clock.Now()
		err := l.runOnce(ctx, work)
		elapsed := l.clock.Since(start)
		if err != nil {
			metrics.ObserveLoopIteration(l.name, "error")
			l.logger.Error("iteration failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		} else {
			metrics.ObserveLoopIteration(l.name, "ok")
			l.logger.Debug("iteration finished", zap.Duration("elapsed", elapsed))
		}

		delay := l.nextDelay(elapsed)
		if delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-l.clock.After(delay):
		}
	}
}

func (l *Loop) runOnce(ctx context.Context, work Work) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return work(ctx)
}

func (l *Loop) nextDelay(elapsed time.Duration) time.Duration {
	if l.policy == PolicyFixedDelay {
		return l.interval
	}
	if remaining := l.interval - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}
