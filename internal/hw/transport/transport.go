package transport

import (
	"time"

	"github.com/cjeanneret/RFQGo/internal/debug"
)

// Action identifies the command type sent to the motor controller.
const ActionMoveRel = "MOVE_REL"

// Params carries the command payload.
type Params struct {
	Delta float64 `json:"delta"` // relative displacement in millimeters
}

// Command is one per-axis instruction for the motor controller.
type Command struct {
	Action string `json:"action"`
	Axis   string `json:"axis"`
	Params Params `json:"params"`
}

// Transport defines the abstract command/acknowledgment exchange with the
// motor controller. Exchange is synchronous: it returns only once the
// controller's acknowledgment (or a failure) is known.
// This allows plugging in the real TCP controller or a mock for development.
type Transport interface {
	Exchange(cmd Command) (string, error)
	Close() error
}

// MockTransport is a development/test implementation that acknowledges every
// command without talking to any hardware.
type MockTransport struct{}

// New creates a transport based on the chosen mode.
// If mock is true, returns a MockTransport (for dev/test).
// If mock is false, returns a real TCPTransport for the given endpoint.
func New(mock bool, addr string, timeout time.Duration) (Transport, error) {
	if mock {
		debug.Info("Using MOCK motor transport (development mode)")
		return &MockTransport{}, nil
	}
	return NewTCPTransport(addr, timeout), nil
}

func (m *MockTransport) Exchange(cmd Command) (string, error) {
	debug.Command(cmd.Axis, cmd.Params.Delta, "OK (mock)")
	return "OK", nil
}

func (m *MockTransport) Close() error {
	debug.Trace("Transport close (mock)")
	return nil
}
