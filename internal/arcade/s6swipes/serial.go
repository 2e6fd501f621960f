package s6swipes

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// Bridge device errors.
var (
	// ErrPortWrite reports a short or failed write to the bridge port.
	ErrPortWrite = errors.New("bridge port write failed")

	// ErrBadAck reports a response other than OK to a swipe command.
	ErrBadAck = errors.New("bridge rejected swipe command")
)

// Porter is the minimal serial port surface the bridge needs. The real
// implementation is a go.bug.st/serial port; tests use TestablePort.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// SerialBridge drives a pointer-HID bridge device over a serial line.
//
// The device accepts one swipe per command line, `SW x1 y1 x2 y2 dur_ms`,
// performs the stroke itself, and answers with a single `OK` or `ERR ...`
// line when done. The bridge therefore collapses the step sequence back to
// its endpoints and total stroke time.
type SerialBridge struct {
	mu   sync.Mutex
	port Porter
	rd   *bufio.Reader
}

// NewSerialBridge creates a SerialBridge on an already-open port.
func NewSerialBridge(port Porter) *SerialBridge {
	return &SerialBridge{port: port, rd: bufio.NewReader(port)}
}

// OpenSerialBridge opens the serial device at path and wraps it in a
// SerialBridge. Bridge firmware talks 8N1.
func OpenSerialBridge(path string, baud int) (*SerialBridge, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open bridge port %s: %w", path, err)
	}
	return NewSerialBridge(port), nil
}

// Inject sends the swipe described by steps to the bridge and waits for its
// acknowledgement.
func (b *SerialBridge) Inject(ctx context.Context, steps []Step) error {
	if len(steps) < 2 {
		return fmt.Errorf("swipe needs at least press and release, got %d step(s)", len(steps))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := steps[0].Pos
	end := steps[len(steps)-1].Pos
	cmd := fmt.Sprintf("SW %d %d %d %d %d\n",
		int(start.X), int(start.Y), int(end.X), int(end.Y),
		strokeTime(steps).Milliseconds())

	b.mu.Lock()
	defer b.mu.Unlock()

	n, err := b.port.Write([]byte(cmd))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPortWrite, err)
	}
	if n != len(cmd) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrPortWrite, n, len(cmd))
	}

	line, err := b.rd.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read bridge ack: %w", err)
	}
	if line = strings.TrimSpace(line); line != "OK" {
		return fmt.Errorf("%w: %q", ErrBadAck, line)
	}
	return nil
}

// Close closes the underlying port.
func (b *SerialBridge) Close() error {
	return b.port.Close()
}
