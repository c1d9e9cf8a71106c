package motor

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/RFQGo/internal/debug"
	"github.com/cjeanneret/RFQGo/internal/hw/transport"
	"github.com/cjeanneret/RFQGo/internal/metrics"
)

// Drive commands the mechanically linked tuner rods as one logical actuator.
// A logical relative move fans out to one MOVE_REL command per axis, issued in
// the configured order, each awaited before the next. The drive tracks net
// displacement locally for observability only; control decisions never read it.
type Drive struct {
	tr   transport.Transport
	axes []string

	mu         sync.Mutex
	positionMm float64
}

// NewDrive creates a multi-axis tuner drive over the given transport.
// axes must be non-empty; the slice order is the command issue order.
func NewDrive(tr transport.Transport, axes []string) (*Drive, error) {
	if len(axes) == 0 {
		return nil, fmt.Errorf("motor: at least one axis is required")
	}
	return &Drive{
		tr:   tr,
		axes: axes,
	}, nil
}

// MoveRelative moves the tuner by deltaMm.
// Positive = insert (increase frequency), negative = retract.
// Failure on any axis aborts the remaining axes and surfaces a move failure;
// partial motion of earlier axes is not rolled back.
func (d *Drive) MoveRelative(deltaMm float64) error {
	if deltaMm == 0 {
		return nil
	}

	for _, axis := range d.axes {
		cmd := transport.Command{
			Action: transport.ActionMoveRel,
			Axis:   axis,
			Params: transport.Params{Delta: deltaMm},
		}
		if _, err := d.tr.Exchange(cmd); err != nil {
			metrics.MoveFailures.Inc()
			return fmt.Errorf("move axis %s by %+.3f mm: %w", axis, deltaMm, err)
		}
	}

	d.mu.Lock()
	d.positionMm += deltaMm
	pos := d.positionMm
	d.mu.Unlock()

	metrics.MovesTotal.Inc()
	metrics.PositionMm.Set(pos)
	debug.Move(deltaMm, pos)
	return nil
}

// Position returns the locally tracked net displacement in millimeters.
// Best-effort: it reflects acknowledged logical moves, not encoder feedback.
func (d *Drive) Position() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.positionMm
}

// Close releases the underlying transport.
func (d *Drive) Close() error {
	return d.tr.Close()
}
