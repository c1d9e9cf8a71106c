package tuner

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/RFQGo/internal/debug"
	"github.com/cjeanneret/RFQGo/internal/metrics"
)

// Controller owns the seek-and-track state machine. One RunOnce call is one
// control cycle: read the coefficient, decide whether and how to move, track
// state across invocations. Not reentrant; the scheduler guarantees a single
// cycle in flight.
type Controller struct {
	cfg      Config
	source   CoefficientSource
	actuator Actuator

	sleep func(time.Duration) // injectable settling wait

	mu       sync.RWMutex
	state    State
	lastCoef float64
}

// NewController creates a controller in the Idle state.
func NewController(source CoefficientSource, actuator Actuator, cfg Config) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("tuner config: %w", err)
	}
	return &Controller{
		cfg:      cfg,
		source:   source,
		actuator: actuator,
		sleep:    time.Sleep,
		state:    StateIdle,
	}, nil
}

// State returns the current tuner state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastCoefficient returns the most recent coefficient reading.
func (c *Controller) LastCoefficient() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastCoef
}

// RunOnce executes one control cycle.
func (c *Controller) RunOnce() error {
	metrics.CyclesTotal.Inc()

	coef, err := c.readCoefficient()
	if err != nil {
		metrics.CycleOutcomes.WithLabelValues("signal_error").Inc()
		return err
	}

	if coef <= c.cfg.CoefMax {
		// Within the acceptable band, or below it. The tuner is never
		// retracted when reflection is already low: that would oscillate.
		if c.State() != StateIdle {
			debug.Info("Coefficient in range (%.4f), returning to idle", coef)
			c.setState(StateIdle, coef)
		}
		metrics.CycleOutcomes.WithLabelValues("idle").Inc()
		return nil
	}

	debug.Info("Coefficient too high: %.4f > %.4f", coef, c.cfg.CoefMax)

	c.setState(StateSeeking, coef)
	direction, err := c.findDirection()
	if err != nil {
		metrics.CycleOutcomes.WithLabelValues(outcomeLabel(err)).Inc()
		return err
	}

	if direction == Undetermined {
		debug.Warn("Cannot determine tuning direction")
		metrics.CycleOutcomes.WithLabelValues("no_direction").Inc()
		c.setState(StateIdle, c.LastCoefficient())
		return nil
	}

	c.setState(StateTracking, c.LastCoefficient())
	converged, err := c.trackToTarget(direction)
	if err != nil {
		metrics.CycleOutcomes.WithLabelValues(outcomeLabel(err)).Inc()
		return err
	}
	if !converged {
		// Next cycle re-reads the coefficient and restarts seeking if it is
		// still out of band. No fault state is kept.
		debug.Warn("Tracking did not converge, will retry")
		return nil
	}

	metrics.CycleOutcomes.WithLabelValues("converged").Inc()
	return nil
}

// findDirection determines which actuation sign reduces the coefficient.
// A two-point probe of the coefficient-vs-position curve: try +testStep; if
// that does not improve, step through the origin to -testStep. A probe that
// improved the signal is deliberately kept, not undone.
func (c *Controller) findDirection() (Direction, error) {
	debug.Info("Finding optimal tuning direction...")

	initial, err := c.readCoefficient()
	if err != nil {
		return Undetermined, err
	}

	if err := c.moveAndSettle(c.cfg.TestStepMm); err != nil {
		return Undetermined, err
	}
	coefPositive, err := c.readCoefficient()
	if err != nil {
		return Undetermined, err
	}

	if coefPositive < initial {
		debug.Direction("positive", initial, coefPositive)
		return Positive, nil
	}

	// Back through the origin and one step past it to the negative side.
	if err := c.moveAndSettle(-2 * c.cfg.TestStepMm); err != nil {
		return Undetermined, err
	}
	coefNegative, err := c.readCoefficient()
	if err != nil {
		return Undetermined, err
	}

	if coefNegative < initial {
		debug.Direction("negative", initial, coefNegative)
		return Negative, nil
	}

	// Neither side improves: possible local minimum. The actuator stays at
	// -testStep net; the residual is accepted, the next cycle re-probes.
	debug.Warn("No improvement in either direction - possible local minimum")
	return Undetermined, nil
}

// trackToTarget moves incrementally in the given direction until the
// coefficient reaches CoefMin, the reading overshoots beyond the noise
// tolerance, or the step bound is exhausted.
func (c *Controller) trackToTarget(direction Direction) (bool, error) {
	debug.Info("Tracking to target (direction: %s)", direction)

	previous, err := c.readCoefficient()
	if err != nil {
		return false, err
	}

	for steps := 1; steps <= c.cfg.MaxTrackingSteps; steps++ {
		if err := c.moveAndSettle(float64(direction) * c.cfg.TrackingStepMm); err != nil {
			return false, err
		}
		current, err := c.readCoefficient()
		if err != nil {
			return false, err
		}
		debug.Track(steps, current)

		if current <= c.cfg.CoefMin {
			debug.Info("Target reached: coef = %.4f", current)
			metrics.TrackingSteps.Observe(float64(steps))
			return true, nil
		}

		if current > previous*(1+c.cfg.NoiseTolerance) {
			// Local minimum overshot or curve non-monotonic: back off
			// exactly one step and give up for this cycle.
			debug.Warn("Coefficient increasing - wrong direction detected")
			metrics.TrackingSteps.Observe(float64(steps))
			metrics.CycleOutcomes.WithLabelValues("overshoot").Inc()
			if err := c.moveAndSettle(-float64(direction) * c.cfg.TrackingStepMm); err != nil {
				return false, err
			}
			return false, nil
		}

		previous = current
	}

	// The actuator is left at its last moved position.
	debug.Warn("Maximum steps (%d) reached without convergence", c.cfg.MaxTrackingSteps)
	metrics.TrackingSteps.Observe(float64(c.cfg.MaxTrackingSteps))
	metrics.CycleOutcomes.WithLabelValues("step_bound").Inc()
	return false, nil
}

// readCoefficient reads the feedback signal and records it for observability.
func (c *Controller) readCoefficient() (float64, error) {
	value, err := c.source.ReadCoefficient()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSignalUnavailable, err)
	}

	c.mu.Lock()
	c.lastCoef = value
	c.mu.Unlock()

	metrics.Coefficient.Set(value)
	debug.Coef(value)
	return value, nil
}

// moveAndSettle issues one relative move and waits the settling time before
// the next reading can be trusted.
func (c *Controller) moveAndSettle(deltaMm float64) error {
	if err := c.actuator.MoveRelative(deltaMm); err != nil {
		return fmt.Errorf("%w: %v", ErrActuationFailed, err)
	}
	c.sleep(c.cfg.SettlingTime)
	return nil
}

func (c *Controller) setState(s State, coef float64) {
	c.mu.Lock()
	from := c.state
	c.state = s
	c.mu.Unlock()

	if from != s {
		debug.State(from.String(), s.String(), coef)
		metrics.State.Set(float64(s))
	}
}

// outcomeLabel maps a cycle error to its metrics label.
func outcomeLabel(err error) string {
	if errors.Is(err, ErrSignalUnavailable) {
		return "signal_error"
	}
	return "actuation_error"
}
