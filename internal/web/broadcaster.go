package web

import (
	"strings"
	"sync"
	"time"
)

// StatusEvent is one dashboard update: a log line, a tuner snapshot after a
// completed cycle, or both.
type StatusEvent struct {
	Time     string  `json:"t"`
	Level    string  `json:"l,omitempty"`
	Msg      string  `json:"msg,omitempty"`
	Snapshot *Status `json:"status,omitempty"`
}

// StatusBroadcaster fans tuner events out to the connected dashboard clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan StatusEvent]struct{}
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan StatusEvent]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast events and a cleanup
// function. The caller must call the returned cleanup when done (e.g. on
// client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan StatusEvent, func()) {
	ch := make(chan StatusEvent, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Broadcast sends a log line to all subscribed clients.
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.send(StatusEvent{
		Time:  time.Now().Format(time.RFC3339),
		Level: level,
		Msg:   msg,
	})
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// BroadcastStatus pushes a tuner snapshot (state, coefficient, position) so
// the dashboard readouts update without waiting for the next poll.
func (b *StatusBroadcaster) BroadcastStatus(st Status) {
	b.send(StatusEvent{
		Time:     time.Now().Format(time.RFC3339),
		Snapshot: &st,
	})
}

// send delivers an event without blocking; a client whose buffer is full
// misses the event.
func (b *StatusBroadcaster) send(evt StatusEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- evt:
		default:
			// channel full, skip
		}
	}
}

// BroadcastWriter implements io.Writer; each Write broadcasts the content to
// SSE clients. Used to mirror the debug log into the dashboard.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.BroadcastMsg(msg)
	}
	return len(p), nil
}
