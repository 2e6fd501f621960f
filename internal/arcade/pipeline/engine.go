package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/slicebot/slicebot/internal/arcade/gamestate"
	"github.com/slicebot/slicebot/internal/arcade/s1frames"
	"github.com/slicebot/slicebot/internal/arcade/s2detections"
	"github.com/slicebot/slicebot/internal/arcade/s3tracks"
	"github.com/slicebot/slicebot/internal/arcade/s5targets"
	"github.com/slicebot/slicebot/internal/arcade/s6swipes"
	"github.com/slicebot/slicebot/internal/timeutil"
)

// State identifies where the engine currently is in its cycle.
type State int32

const (
	// StateCapturing means the engine is waiting on the frame source.
	StateCapturing State = iota
	// StateDetecting means the frame's detections are being validated.
	StateDetecting
	// StateTracking means the tracker is being updated.
	StateTracking
	// StateSelecting means targets are being picked and cuts planned.
	StateSelecting
	// StateActing means planned swipes are being dispatched.
	StateActing
	// StateStopped means Run has returned.
	StateStopped
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateCapturing:
		return "capturing"
	case StateDetecting:
		return "detecting"
	case StateTracking:
		return "tracking"
	case StateSelecting:
		return "selecting"
	case StateActing:
		return "acting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Why a session ended. Run reports the cause through EndReason; the values
// match what the session store records.
const (
	ReasonGameOver = "game_over"
	ReasonFeedEnd  = "feed_end"
	ReasonCanceled = "canceled"
	ReasonFault    = "fault"
)

// isNilInterface checks if an interface value is nil or contains a nil pointer.
// This handles the Go interface nil pitfall where interface{} != nil but the
// underlying value is nil.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// CycleRecord summarises one full engine cycle for persistence.
type CycleRecord struct {
	FrameSeq uint64
	Started  time.Time

	Detect time.Duration
	Track  time.Duration
	Select time.Duration
	Act    time.Duration
	Total  time.Duration

	Detections int // validated detections fed to the tracker
	Dropped    int // detections rejected by validation
	LiveTracks int
	Planned    int
	Dispatched int
}

// TrackObservation is one matched track position at one frame, captured for
// persistence. Coasting positions are never recorded as observations.
type TrackObservation struct {
	TrackID    string
	FrameSeq   uint64
	Timestamp  time.Time
	X, Y       float64
	VX, VY     float64
	Confidence float32
}

// SwipeOutcome is one dispatched swipe path together with its measured
// execution time. Latency is zero when no measurement is available.
type SwipeOutcome struct {
	Path    s5targets.SwipePath
	Latency time.Duration
}

// PersistenceSink writes engine outputs to storage. It is an adapter, not a
// stage, so implementations live outside the stage packages (e.g.
// internal/arcade/storage/sqlite). Sink failures are logged and never stop
// the cycle.
type PersistenceSink interface {
	// PersistCycle writes the per-cycle summary record.
	PersistCycle(rec CycleRecord) error
	// PersistTrack writes the lifetime record of a retired track.
	PersistTrack(track *s3tracks.Track) error
	// PersistObservations writes a batch of matched positions for one frame.
	PersistObservations(obs []TrackObservation) error
	// PersistSwipe writes one dispatched swipe.
	PersistSwipe(outcome SwipeOutcome) error
}

// EngineConfig holds the stage dependencies and loop tuning for an Engine.
type EngineConfig struct {
	Source     s1frames.Source
	Validator  *s2detections.Validator
	Tracker    *s3tracks.Tracker
	Strategy   *s5targets.Strategy
	Dispatcher *s6swipes.Dispatcher // nil runs the loop dry: paths planned, nothing injected
	Checker    gamestate.Checker    // nil disables game-over checking
	Sink       PersistenceSink      // nil disables persistence
	Clock      timeutil.Clock       // nil means wall time

	// MaxCycleRate caps the rate at which frames are run through the full
	// cycle, in cycles per second. Frames arriving faster are absorbed after
	// capture: counted, but never fed to the downstream stages. Zero means
	// no cap. Typical value: 60.
	MaxCycleRate float64

	// GameCheckInterval forces a game-over check every this many captured
	// frames, on top of the check that follows any cycle without usable
	// detections. Zero disables the cadence. Typical value: 100.
	GameCheckInterval int

	// FPSWindow is how many recent frame arrivals the rolling capture-rate
	// estimate spans. Zero means 30.
	FPSWindow int

	// StatsLogInterval is how often a one-line session summary goes to the
	// diag stream. Zero disables the summary.
	StatsLogInterval time.Duration
}

// How many recent cycle latencies feed the min/mean/p95 stats.
const latencyWindow = 240

// Engine drives the capture, detect, track, select, act cycle over a frame
// source until the feed ends, the game ends, the context is canceled, or a
// stage fails. The loop is single threaded; Snapshot and EndReason may be
// called from other goroutines while it runs.
type Engine struct {
	cfg       EngineConfig
	clock     timeutil.Clock
	fpsWindow int

	state atomic.Int32

	frames     atomic.Uint64
	cycles     atomic.Uint64
	throttled  atomic.Uint64
	swipes     atomic.Uint64
	fruitsCut  atomic.Uint64
	gameChecks atomic.Uint64

	mu        sync.Mutex
	endReason string
	arrivals  []time.Time     // recent frame arrival times, fpsWindow cap
	latencies []time.Duration // recent cycle totals, latencyWindow cap
	confirmed map[string]bool // track ids seen in the confirmed state
	recorded  map[string]bool // track ids already handled at retirement
}

// NewEngine validates the configuration and builds an Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if isNilInterface(cfg.Source) {
		return nil, errors.New("engine needs a frame source")
	}
	if cfg.Validator == nil {
		return nil, errors.New("engine needs a detection validator")
	}
	if cfg.Tracker == nil {
		return nil, errors.New("engine needs a tracker")
	}
	if cfg.Strategy == nil {
		return nil, errors.New("engine needs a targeting strategy")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	fpsWindow := cfg.FPSWindow
	if fpsWindow <= 0 {
		fpsWindow = 30
	}

	e := &Engine{
		cfg:       cfg,
		clock:     clock,
		fpsWindow: fpsWindow,
		confirmed: make(map[string]bool),
		recorded:  make(map[string]bool),
	}
	e.state.Store(int32(StateStopped))
	return e, nil
}

// Run executes the cycle until the session ends. It returns nil for every
// orderly stop (feed end, cancellation, game over) and an error only when a
// stage fails; EndReason tells the two apart. Run does not close the source
// or the dispatcher, those stay with the caller.
//
// Interruptions take effect at cycle boundaries only: a swipe that has
// started always finishes before the loop stops.
func (e *Engine) Run(ctx context.Context) error {
	var minInterval time.Duration
	if e.cfg.MaxCycleRate > 0 {
		minInterval = time.Duration(float64(time.Second) / e.cfg.MaxCycleRate)
	}

	var lastCycleWall time.Time // wall time the last full cycle started
	var lastTracked time.Time   // frame time the tracker last advanced to
	var lastPrune time.Time
	lastStats := e.clock.Now()
	checkDue := false

	// A throttled stretch or an abrupt stop can leave fresh retirements
	// unswept; catch them on the way out.
	defer func() {
		if !lastTracked.IsZero() {
			e.sweepRetired(lastTracked)
		}
		e.state.Store(int32(StateStopped))
	}()

	for {
		if ctx.Err() != nil {
			e.setEndReason(ReasonCanceled)
			return nil
		}

		e.state.Store(int32(StateCapturing))
		frame, err := e.cfg.Source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				diagf("feed ended after %d frames", e.frames.Load())
				e.setEndReason(ReasonFeedEnd)
				return nil
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				e.setEndReason(ReasonCanceled)
				return nil
			default:
				e.setEndReason(ReasonFault)
				return fmt.Errorf("capturing: %w", err)
			}
		}
		frameN := e.frames.Add(1)
		e.observeArrival(e.clock.Now())

		// Game-over check at the top of the cycle: due when the previous
		// cycle saw no usable detections, and on the fixed frame cadence.
		// The cadence runs even for frames the rate cap will absorb, so a
		// catch-up burst cannot starve end-screen detection.
		cadence := e.cfg.GameCheckInterval > 0 && frameN%uint64(e.cfg.GameCheckInterval) == 0
		if !isNilInterface(e.cfg.Checker) && (checkDue || cadence) {
			checkDue = false
			e.gameChecks.Add(1)
			state, cerr := e.cfg.Checker.Check(ctx, frame)
			if cerr != nil {
				// An undecided check keeps the session cycling.
				diagf("game check failed: %v", cerr)
			}
			if state == gamestate.StateGameOver {
				opsf("game over detected at frame %d", frame.Seq)
				e.setEndReason(ReasonGameOver)
				return nil
			}
		}

		cycleStart := e.clock.Now()

		// Cycle-rate cap: absorb frames arriving faster than MaxCycleRate.
		if minInterval > 0 && !lastCycleWall.IsZero() && cycleStart.Sub(lastCycleWall) < minInterval {
			count := e.throttled.Add(1)
			if count%50 == 0 {
				diagf("throttled %d frames (max %.0f cycles/s)", count, e.cfg.MaxCycleRate)
			}
			// A short burst must not age tracks, but an absorbed stretch of
			// frame time must not keep them alive either. Advance misses
			// only when the frame clock shows a genuine gap since the
			// tracker last advanced.
			if !lastTracked.IsZero() && frame.Timestamp.Sub(lastTracked) >= 2*minInterval {
				diagf("advancing misses: frame-clock gap %v while throttled", frame.Timestamp.Sub(lastTracked))
				e.cfg.Tracker.AdvanceMisses(frame.Timestamp)
				lastTracked = frame.Timestamp
			}
			continue
		}
		lastCycleWall = cycleStart

		// DETECTING
		e.state.Store(int32(StateDetecting))
		valid, drops := e.cfg.Validator.Validate(frame.Detections)
		detectDur := e.clock.Since(cycleStart)

		// TRACKING
		e.state.Store(int32(StateTracking))
		trackStart := e.clock.Now()
		var live []*s3tracks.Track
		if len(valid) == 0 {
			// An empty frame ages every live track by one miss.
			e.cfg.Tracker.AdvanceMisses(frame.Timestamp)
			live = e.cfg.Tracker.GetActiveTracks()
			checkDue = true
		} else {
			live = e.cfg.Tracker.Update(valid, frame.Timestamp)
		}
		lastTracked = frame.Timestamp
		trackDur := e.clock.Since(trackStart)

		// SELECTING
		e.state.Store(int32(StateSelecting))
		selectStart := e.clock.Now()
		paths := e.cfg.Strategy.Select(live, e.clock.Now())
		selectDur := e.clock.Since(selectStart)

		// ACTING
		e.state.Store(int32(StateActing))
		actStart := e.clock.Now()
		var outcomes []SwipeOutcome
		var actErr error
		if len(paths) > 0 && e.cfg.Dispatcher != nil {
			before := e.cfg.Dispatcher.Stats().Dispatched
			actErr = e.cfg.Dispatcher.Dispatch(ctx, paths)
			executed := e.cfg.Dispatcher.Stats().Dispatched - before
			if executed > 0 {
				latencies := e.cfg.Dispatcher.RecentLatencies(executed)
				outcomes = make([]SwipeOutcome, 0, executed)
				for i := 0; i < executed; i++ {
					e.cfg.Tracker.RecordSwipe(paths[i].TrackID)
					outcome := SwipeOutcome{Path: paths[i]}
					if i < len(latencies) {
						outcome.Latency = latencies[i]
					}
					outcomes = append(outcomes, outcome)
				}
				e.swipes.Add(uint64(executed))
			}
		}
		actDur := e.clock.Since(actStart)

		total := e.clock.Since(cycleStart)
		e.cycles.Add(1)
		e.observeCycle(total)

		rec := CycleRecord{
			FrameSeq:   frame.Seq,
			Started:    cycleStart,
			Detect:     detectDur,
			Track:      trackDur,
			Select:     selectDur,
			Act:        actDur,
			Total:      total,
			Detections: len(valid),
			Dropped:    drops.Total(),
			LiveTracks: len(live),
			Planned:    len(paths),
			Dispatched: len(outcomes),
		}
		e.finishCycle(rec, live, outcomes, frame)

		tracef("cycle %d frame %d: %d detections (%d dropped), %d live, %d planned, %d dispatched in %s",
			e.cycles.Load(), frame.Seq, rec.Detections, rec.Dropped, rec.LiveTracks, rec.Planned, rec.Dispatched, total)

		if e.cfg.StatsLogInterval > 0 && e.clock.Since(lastStats) >= e.cfg.StatsLogInterval {
			lastStats = e.clock.Now()
			snap := e.Snapshot()
			diagf("session: %d frames (%.1f fps), %d cycles, %d throttled, %d swipes, %d fruits cut, latency p95 %s",
				snap.Frames, snap.FPS, snap.Cycles, snap.Throttled, snap.Swipes, snap.FruitsCut, snap.LatencyP95)
		}

		if lastPrune.IsZero() || e.clock.Since(lastPrune) >= time.Minute {
			lastPrune = e.clock.Now()
			e.pruneBookkeeping(frame.Timestamp)
		}

		if actErr != nil {
			if errors.Is(actErr, context.Canceled) || errors.Is(actErr, context.DeadlineExceeded) {
				e.setEndReason(ReasonCanceled)
				return nil
			}
			e.setEndReason(ReasonFault)
			return fmt.Errorf("acting: %w", actErr)
		}
	}
}

// finishCycle runs the per-cycle bookkeeping tail: the retirement sweep and
// all persistence writes. Sink failures are logged, never propagated.
func (e *Engine) finishCycle(rec CycleRecord, live []*s3tracks.Track, outcomes []SwipeOutcome, frame s1frames.Frame) {
	e.mu.Lock()
	for _, track := range live {
		if track.State == s3tracks.TrackConfirmed {
			e.confirmed[track.TrackID] = true
		}
	}
	e.mu.Unlock()

	e.sweepRetired(frame.Timestamp)

	if isNilInterface(e.cfg.Sink) {
		return
	}
	sink := e.cfg.Sink

	if err := sink.PersistCycle(rec); err != nil {
		opsf("failed to persist cycle %d: %v", rec.FrameSeq, err)
	}

	// Only matched positions of confirmed tracks become observations.
	// Coasting tracks carry predictions, not measurements; persisting those
	// would draw phantom straight segments through every replay.
	var obs []TrackObservation
	for _, track := range live {
		if track.State != s3tracks.TrackConfirmed || track.Misses != 0 {
			continue
		}
		obs = append(obs, TrackObservation{
			TrackID:    track.TrackID,
			FrameSeq:   frame.Seq,
			Timestamp:  frame.Timestamp,
			X:          track.X,
			Y:          track.Y,
			VX:         track.VX,
			VY:         track.VY,
			Confidence: track.Confidence,
		})
	}
	if len(obs) > 0 {
		if err := sink.PersistObservations(obs); err != nil {
			opsf("failed to persist %d observations: %v", len(obs), err)
		}
	}

	for _, outcome := range outcomes {
		if err := sink.PersistSwipe(outcome); err != nil {
			opsf("failed to persist swipe on %s: %v", outcome.Path.TrackID, err)
		}
	}
}

// sweepRetired handles each retired track exactly once: fruits-cut
// accounting for swiped tracks, and a lifetime record for every track that
// reached the confirmed state. Tentative tracks retire silently as noise.
func (e *Engine) sweepRetired(ts time.Time) {
	retired := e.cfg.Tracker.GetRecentlyRetiredTracks(ts)
	if len(retired) == 0 {
		return
	}

	sink := e.cfg.Sink
	haveSink := !isNilInterface(sink)

	for _, track := range retired {
		e.mu.Lock()
		done := e.recorded[track.TrackID]
		if !done {
			e.recorded[track.TrackID] = true
		}
		wasConfirmed := e.confirmed[track.TrackID]
		e.mu.Unlock()
		if done {
			continue
		}

		if track.SwipeCount > 0 {
			e.fruitsCut.Add(1)
		}
		if !wasConfirmed {
			continue
		}
		diagf("track %s retired: class=%s observations=%d swipes=%d",
			track.TrackID, track.Class, track.ObservationCount, track.SwipeCount)
		if haveSink {
			if err := sink.PersistTrack(track); err != nil {
				opsf("failed to persist track %s: %v", track.TrackID, err)
			}
		}
	}
}

// pruneBookkeeping drops per-track state for tracks the tracker itself has
// already pruned. A pruned id can never retire again, so forgetting it keeps
// the exactly-once guarantee while bounding both maps.
func (e *Engine) pruneBookkeeping(ts time.Time) {
	known := make(map[string]bool)
	for _, track := range e.cfg.Tracker.GetActiveTracks() {
		known[track.TrackID] = true
	}
	for _, track := range e.cfg.Tracker.GetRecentlyRetiredTracks(ts) {
		known[track.TrackID] = true
	}

	e.mu.Lock()
	for id := range e.confirmed {
		if !known[id] {
			delete(e.confirmed, id)
		}
	}
	for id := range e.recorded {
		if !known[id] {
			delete(e.recorded, id)
		}
	}
	e.mu.Unlock()
}

func (e *Engine) observeArrival(at time.Time) {
	e.mu.Lock()
	e.arrivals = append(e.arrivals, at)
	if len(e.arrivals) > e.fpsWindow {
		e.arrivals = e.arrivals[len(e.arrivals)-e.fpsWindow:]
	}
	e.mu.Unlock()
}

func (e *Engine) observeCycle(total time.Duration) {
	e.mu.Lock()
	e.latencies = append(e.latencies, total)
	if len(e.latencies) > latencyWindow {
		e.latencies = e.latencies[len(e.latencies)-latencyWindow:]
	}
	e.mu.Unlock()
}

func (e *Engine) setEndReason(reason string) {
	e.mu.Lock()
	if e.endReason == "" {
		e.endReason = reason
	}
	e.mu.Unlock()
}

// EndReason reports why the loop stopped: one of the Reason constants, or
// empty while Run is still going.
func (e *Engine) EndReason() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.endReason
}

// State returns the engine's current position in the cycle.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Snapshot is a point-in-time view of the running engine.
type Snapshot struct {
	State     State
	EndReason string

	Frames     uint64
	Cycles     uint64
	Throttled  uint64
	Swipes     uint64
	FruitsCut  uint64
	GameChecks uint64

	// FPS is the capture rate over the rolling frame window.
	FPS float64

	// Cycle wall-time stats over the rolling latency window.
	LatencyMin  time.Duration
	LatencyMean time.Duration
	LatencyP95  time.Duration
}

// Snapshot assembles the current counters and rolling stats. Safe to call
// from other goroutines while Run is executing.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		State:      e.State(),
		Frames:     e.frames.Load(),
		Cycles:     e.cycles.Load(),
		Throttled:  e.throttled.Load(),
		Swipes:     e.swipes.Load(),
		FruitsCut:  e.fruitsCut.Load(),
		GameChecks: e.gameChecks.Load(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	snap.EndReason = e.endReason

	if n := len(e.arrivals); n >= 2 {
		span := e.arrivals[n-1].Sub(e.arrivals[0])
		if span > 0 {
			snap.FPS = float64(n-1) / span.Seconds()
		}
	}

	if n := len(e.latencies); n > 0 {
		samples := make([]float64, n)
		min := e.latencies[0]
		var sum time.Duration
		for i, l := range e.latencies {
			samples[i] = l.Seconds()
			sum += l
			if l < min {
				min = l
			}
		}
		sort.Float64s(samples)
		snap.LatencyMin = min
		snap.LatencyMean = sum / time.Duration(n)
		snap.LatencyP95 = time.Duration(stat.Quantile(0.95, stat.Empirical, samples, nil) * float64(time.Second))
	}
	return snap
}
