package transport

import (
	"encoding/json"
	"net"
	"testing"
	"time"
)

func TestMockTransport_AcknowledgesEverything(t *testing.T) {
	m := &MockTransport{}
	ack, err := m.Exchange(Command{
		Action: ActionMoveRel,
		Axis:   "A",
		Params: Params{Delta: 0.1},
	})
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if ack != "OK" {
		t.Errorf("ack = %q, want OK", ack)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNew_MockMode(t *testing.T) {
	tr, err := New(true, "", 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := tr.(*MockTransport); !ok {
		t.Errorf("New(mock=true) = %T, want *MockTransport", tr)
	}
}

func TestNew_RealMode(t *testing.T) {
	tr, err := New(false, "10.0.28.39:3336", 5*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := tr.(*TCPTransport); !ok {
		t.Errorf("New(mock=false) = %T, want *TCPTransport", tr)
	}
}

// startAckServer runs a one-shot TCP server that decodes a Command and sends
// the given acknowledgment. Received commands are delivered on the channel.
func startAckServer(t *testing.T, ack string) (addr string, received <-chan Command) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	ch := make(chan Command, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 1024)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(buf[:n], &cmd); err != nil {
			return
		}
		ch <- cmd
		conn.Write([]byte(ack))
	}()

	return ln.Addr().String(), ch
}

func TestTCPTransport_Exchange(t *testing.T) {
	addr, received := startAckServer(t, "OK")
	tr := NewTCPTransport(addr, 2*time.Second)

	ack, err := tr.Exchange(Command{
		Action: ActionMoveRel,
		Axis:   "C",
		Params: Params{Delta: -0.2},
	})
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if ack != "OK" {
		t.Errorf("ack = %q, want OK", ack)
	}

	cmd := <-received
	if cmd.Action != ActionMoveRel {
		t.Errorf("wire action = %q, want %q", cmd.Action, ActionMoveRel)
	}
	if cmd.Axis != "C" {
		t.Errorf("wire axis = %q, want C", cmd.Axis)
	}
	if cmd.Params.Delta != -0.2 {
		t.Errorf("wire delta = %g, want -0.2", cmd.Params.Delta)
	}
}

func TestTCPTransport_NoAcknowledgment(t *testing.T) {
	// Server accepts but never answers: the exchange must time out.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// Hold the connection open without responding.
		time.Sleep(500 * time.Millisecond)
		conn.Close()
	}()

	tr := NewTCPTransport(ln.Addr().String(), 100*time.Millisecond)
	if _, err := tr.Exchange(Command{Action: ActionMoveRel, Axis: "A"}); err == nil {
		t.Fatal("expected timeout waiting for acknowledgment, got nil")
	}
}

func TestTCPTransport_ConnectionRefused(t *testing.T) {
	// Reserve a port and close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	tr := NewTCPTransport(addr, 200*time.Millisecond)
	if _, err := tr.Exchange(Command{Action: ActionMoveRel, Axis: "A"}); err == nil {
		t.Fatal("expected connection error, got nil")
	}
}

func TestTCPTransport_DefaultTimeout(t *testing.T) {
	tr := NewTCPTransport("10.0.28.39:3336", 0)
	if tr.timeout != 5*time.Second {
		t.Errorf("default timeout = %v, want 5s", tr.timeout)
	}
}

func TestCommand_WireFormat(t *testing.T) {
	data, err := json.Marshal(Command{
		Action: ActionMoveRel,
		Axis:   "H",
		Params: Params{Delta: 0.5},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"action":"MOVE_REL","axis":"H","params":{"delta":0.5}}`
	if string(data) != want {
		t.Errorf("wire format = %s, want %s", data, want)
	}
}
