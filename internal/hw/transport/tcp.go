package transport

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/cjeanneret/RFQGo/internal/debug"
)

// TCPTransport is the real implementation talking JSON over TCP to the motor
// controller. Each command uses its own connection: dial, send, wait for one
// acknowledgment, close. The controller at the other end expects exactly this
// one-shot exchange per command.
type TCPTransport struct {
	addr    string
	timeout time.Duration
}

// NewTCPTransport creates a transport for the given "host:port" endpoint.
// timeout bounds the whole exchange (dial + send + acknowledgment).
func NewTCPTransport(addr string, timeout time.Duration) *TCPTransport {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TCPTransport{
		addr:    addr,
		timeout: timeout,
	}
}

func (t *TCPTransport) Exchange(cmd Command) (string, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("marshal command: %w", err)
	}

	conn, err := net.DialTimeout("tcp", t.addr, t.timeout)
	if err != nil {
		return "", fmt.Errorf("dial motor controller %s: %w", t.addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(t.timeout)); err != nil {
		return "", fmt.Errorf("set deadline: %w", err)
	}

	if _, err := conn.Write(data); err != nil {
		return "", fmt.Errorf("send command (axis %s): %w", cmd.Axis, err)
	}

	// Wait for the acknowledgment. The controller answers with a short
	// status string; anything received counts as the ack.
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		return "", fmt.Errorf("wait for acknowledgment (axis %s): %w", cmd.Axis, err)
	}

	ack := string(buf[:n])
	debug.Command(cmd.Axis, cmd.Params.Delta, ack)
	return ack, nil
}

func (t *TCPTransport) Close() error {
	// Connections are per-command; nothing persistent to release.
	return nil
}
