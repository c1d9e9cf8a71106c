package tuner

import (
	"errors"
	"fmt"
	"time"
)

// State of the seek-and-track cycle. Only the Controller mutates it.
type State int

const (
	StateIdle     State = iota // coefficient within acceptable band, no action pending
	StateSeeking               // direction-finding in progress
	StateTracking              // converging toward target
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeking:
		return "seeking"
	case StateTracking:
		return "tracking"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Direction is the actuation sign found by the direction probe.
// The numeric values are the move multipliers used during tracking.
type Direction int

const (
	Undetermined Direction = 0
	Positive     Direction = 1
	Negative     Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "undetermined"
	}
}

// Retriable control-cycle failures. The scheduler logs these and re-evaluates
// on the next cycle; anything else halts the loop.
var (
	// ErrSignalUnavailable wraps a failed coefficient read. The cycle aborts
	// before any actuation.
	ErrSignalUnavailable = errors.New("reflection coefficient unavailable")

	// ErrActuationFailed wraps a failed or unacknowledged tuner move. The
	// remainder of the algorithm step is abandoned.
	ErrActuationFailed = errors.New("tuner move failed")
)

// Config holds the seek-and-track parameters. Built once at startup from the
// validated application config; read-only thereafter.
type Config struct {
	CoefMin          float64       // acceptable-band floor, also the tracking convergence target
	CoefMax          float64       // acceptable-band ceiling; above it a tuning cycle starts
	TestStepMm       float64       // probe step magnitude
	TrackingStepMm   float64       // convergence step magnitude
	SettlingTime     time.Duration // wait after each move before the next reading is trusted
	MaxTrackingSteps int           // bound on tracking iterations
	NoiseTolerance   float64       // fractional overshoot allowance before "wrong direction"
}

func (c Config) validate() error {
	if c.CoefMin <= 0 {
		return fmt.Errorf("coef_min must be > 0, got %g", c.CoefMin)
	}
	if c.CoefMax <= c.CoefMin {
		return fmt.Errorf("coef_max must be > coef_min, got %g <= %g", c.CoefMax, c.CoefMin)
	}
	if c.TestStepMm <= 0 {
		return fmt.Errorf("test_step_mm must be > 0, got %g", c.TestStepMm)
	}
	if c.TrackingStepMm <= 0 {
		return fmt.Errorf("tracking_step_mm must be > 0, got %g", c.TrackingStepMm)
	}
	if c.MaxTrackingSteps <= 0 {
		return fmt.Errorf("max_tracking_steps must be > 0, got %d", c.MaxTrackingSteps)
	}
	if c.NoiseTolerance < 0 {
		return fmt.Errorf("noise_tolerance must be >= 0, got %g", c.NoiseTolerance)
	}
	return nil
}

// CoefficientSource provides the feedback signal. May fail when the signal is
// stale or unavailable; the controller never fabricates a value.
type CoefficientSource interface {
	ReadCoefficient() (float64, error)
}

// Actuator commands relative tuner moves. MoveRelative is synchronous: it
// returns only once the move's acknowledgment (or failure) is known.
type Actuator interface {
	MoveRelative(deltaMm float64) error
}
