package s6swipes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slicebot/slicebot/internal/arcade/s5targets"
	"github.com/slicebot/slicebot/internal/timeutil"
)

// latencyRing is how many recent per-path execution latencies are retained
// for stats.
const latencyRing = 30

// Injector plays a pointer step sequence against an input device. Inject is
// synchronous: it returns once the final release has been issued.
type Injector interface {
	Inject(ctx context.Context, steps []Step) error
	Close() error
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Dispatched  int           // paths fully executed
	RapidFire   int           // of which were rapid-fire paths
	LastLatency time.Duration // execution time of the most recent path
	MeanLatency time.Duration // mean over the retained window
}

// Dispatcher executes planned swipe paths serially through an Injector,
// honoring each path's NotBefore window start.
type Dispatcher struct {
	inj       Injector
	clock     timeutil.Clock
	moveSteps int

	mu         sync.Mutex
	dispatched int
	rapid      int
	latencies  []time.Duration // newest last, capped at latencyRing
}

// NewDispatcher creates a Dispatcher. moveSteps is the number of
// interpolated pointer positions between press and release; a nil clock
// means wall time.
func NewDispatcher(inj Injector, clock timeutil.Clock, moveSteps int) *Dispatcher {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if moveSteps < 1 {
		moveSteps = 1
	}
	return &Dispatcher{inj: inj, clock: clock, moveSteps: moveSteps}
}

// Dispatch executes paths in order, waiting out each path's NotBefore
// before starting it. A path, once started, always runs to completion;
// cancellation is honored only between paths, in which case the remaining
// paths are dropped and the context error returned.
func (d *Dispatcher) Dispatch(ctx context.Context, paths []s5targets.SwipePath) error {
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			debugf("dispatch interrupted, dropping %d queued path(s)", len(paths)-i)
			return err
		}

		if wait := d.clock.Until(path.NotBefore); wait > 0 {
			d.clock.Sleep(wait)
		}

		start := d.clock.Now()
		steps := BuildSteps(path, d.moveSteps)
		if err := d.inj.Inject(ctx, steps); err != nil {
			return fmt.Errorf("inject %s: %w", path.TrackID, err)
		}
		latency := d.clock.Since(start)
		d.record(path, latency)

		debugf("swiped %s (%.0f,%.0f)->(%.0f,%.0f) in %s",
			path.TrackID, path.Start.X, path.Start.Y, path.End.X, path.End.Y, latency)
	}
	return nil
}

func (d *Dispatcher) record(path s5targets.SwipePath, latency time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dispatched++
	if path.RapidFire {
		d.rapid++
	}
	d.latencies = append(d.latencies, latency)
	if len(d.latencies) > latencyRing {
		d.latencies = d.latencies[len(d.latencies)-latencyRing:]
	}
}

// RecentLatencies returns copies of the newest n per-path execution
// latencies in dispatch order. Fewer are returned when the retained window
// holds fewer.
func (d *Dispatcher) RecentLatencies(n int) []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n > len(d.latencies) {
		n = len(d.latencies)
	}
	if n <= 0 {
		return nil
	}
	out := make([]time.Duration, n)
	copy(out, d.latencies[len(d.latencies)-n:])
	return out
}

// Stats returns a snapshot of the dispatch counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Stats{Dispatched: d.dispatched, RapidFire: d.rapid}
	if n := len(d.latencies); n > 0 {
		s.LastLatency = d.latencies[n-1]
		var total time.Duration
		for _, l := range d.latencies {
			total += l
		}
		s.MeanLatency = total / time.Duration(n)
	}
	return s
}

// Close closes the underlying injector.
func (d *Dispatcher) Close() error {
	return d.inj.Close()
}
