package s6swipes

import (
	"bytes"
	"errors"
	"sync"
)

// TestablePort implements Porter with scriptable behaviour for bridge
// tests: queued device responses, one-shot errors, short writes.
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer holds data returned by Read calls (device responses).
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port.
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call, then cleared.
	ReadError error

	// WriteError is returned by the next Write call, then cleared.
	WriteError error

	// ShortWrite, when > 0, truncates the next Write to that many bytes.
	ShortWrite int

	// Closed indicates whether Close was called.
	Closed bool

	// ReadCalls records the number of Read calls.
	ReadCalls int

	// WriteCalls records the number of Write calls.
	WriteCalls int
}

// NewTestablePort creates an empty TestablePort.
func NewTestablePort() *TestablePort {
	return &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
}

// QueueResponse appends a device response for subsequent reads. Include the
// trailing newline the device would send.
func (t *TestablePort) QueueResponse(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadBuffer.WriteString(line)
}

// Read reads from the queued responses, honoring scripted errors.
func (t *TestablePort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++
	if t.Closed {
		return 0, errors.New("port closed")
	}
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	return t.ReadBuffer.Read(p)
}

// Write captures written data, honoring scripted errors and short writes.
func (t *TestablePort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++
	if t.Closed {
		return 0, errors.New("port closed")
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	if t.ShortWrite > 0 && t.ShortWrite < len(p) {
		n := t.ShortWrite
		t.ShortWrite = 0
		t.WriteBuffer.Write(p[:n])
		return n, nil
	}
	return t.WriteBuffer.Write(p)
}

// Close marks the port closed.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	return nil
}

// Written returns everything written to the port so far.
func (t *TestablePort) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.WriteBuffer.String()
}
