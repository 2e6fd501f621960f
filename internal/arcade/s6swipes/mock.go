package s6swipes

import (
	"context"
	"sync"
)

// MockInjector is a scriptable Injector for tests: it records every step
// sequence it is asked to play and can simulate device failures.
type MockInjector struct {
	mu sync.Mutex

	// InjectFunc, when set, fully replaces the default Inject behaviour.
	// The call is still recorded first.
	InjectFunc func(ctx context.Context, steps []Step) error

	// InjectError is returned by the next Inject call, then cleared.
	InjectError error

	// Swipes holds the step sequence of every Inject call.
	Swipes [][]Step

	// InjectCalls records the number of Inject calls.
	InjectCalls int

	// Closed indicates whether Close was called.
	Closed bool
}

// NewMockInjector creates an empty MockInjector.
func NewMockInjector() *MockInjector {
	return &MockInjector{}
}

// Inject records the step sequence and returns the scripted result.
func (m *MockInjector) Inject(ctx context.Context, steps []Step) error {
	m.mu.Lock()

	m.InjectCalls++
	cp := make([]Step, len(steps))
	copy(cp, steps)
	m.Swipes = append(m.Swipes, cp)

	if fn := m.InjectFunc; fn != nil {
		m.mu.Unlock()
		return fn(ctx, steps)
	}

	err := m.InjectError
	m.InjectError = nil
	m.mu.Unlock()
	return err
}

// Close marks the injector closed.
func (m *MockInjector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// LastSwipe returns the step sequence of the most recent Inject call, or
// nil if none.
func (m *MockInjector) LastSwipe() []Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Swipes) == 0 {
		return nil
	}
	return m.Swipes[len(m.Swipes)-1]
}

// Reset clears all recorded state.
func (m *MockInjector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Swipes = nil
	m.InjectCalls = 0
	m.InjectError = nil
	m.InjectFunc = nil
	m.Closed = false
}
