package tuner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/RFQGo/internal/debug"
)

// Cycler runs one control cycle. Satisfied by *Controller.
type Cycler interface {
	RunOnce() error
}

// Scheduler drives a Cycler at a fixed period, turning the single-shot
// decision into a continuous process. Exactly one cycle is in flight at a
// time; if a cycle overruns its nominal period the next one simply starts
// late.
type Scheduler struct {
	cycler Cycler
	period time.Duration

	// wait pauses between cycles; injectable so tests run without wall-clock
	// delays.
	wait func(ctx context.Context, d time.Duration) error
}

// NewScheduler creates a scheduler with the given inter-cycle period
// (1/updateRateHz).
func NewScheduler(cycler Cycler, period time.Duration) (*Scheduler, error) {
	if cycler == nil {
		return nil, fmt.Errorf("scheduler: cycler is required")
	}
	if period <= 0 {
		return nil, fmt.Errorf("scheduler: period must be > 0, got %v", period)
	}
	return &Scheduler{
		cycler: cycler,
		period: period,
		wait:   waitCtx,
	}, nil
}

// Run executes cycles until ctx is cancelled or a cycle fails with an
// unrecoverable error. Signal-unavailable and actuation failures are normal
// control outcomes: they are logged and the next cycle re-evaluates from
// scratch. Cancellation is honored between cycles only, never by interrupting
// a move in flight.
func (s *Scheduler) Run(ctx context.Context) error {
	debug.Info("Starting continuous control loop (period: %v)", s.period)

	for {
		select {
		case <-ctx.Done():
			debug.Info("Control loop stopped")
			return ctx.Err()
		default:
		}

		if err := s.cycler.RunOnce(); err != nil {
			if errors.Is(err, ErrSignalUnavailable) || errors.Is(err, ErrActuationFailed) {
				debug.Error(err) // retried next cycle
			} else {
				return fmt.Errorf("control cycle: %w", err)
			}
		}

		if err := s.wait(ctx, s.period); err != nil {
			debug.Info("Control loop stopped")
			return err
		}
	}
}

// waitCtx sleeps for d or until ctx is cancelled, whichever comes first.
func waitCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
