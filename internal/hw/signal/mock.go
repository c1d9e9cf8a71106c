package signal

import "sync"

// MockSource is a development/test implementation returning a settable value.
type MockSource struct {
	mu    sync.Mutex
	value float64
}

// NewMockSource creates a mock source with an initial coefficient value.
func NewMockSource(value float64) *MockSource {
	return &MockSource{value: value}
}

func (m *MockSource) ReadCoefficient() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

// Set changes the value returned by subsequent reads.
func (m *MockSource) Set(value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
}
