package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slicebot/slicebot/internal/arcade"
	"github.com/slicebot/slicebot/internal/arcade/gamestate"
	"github.com/slicebot/slicebot/internal/arcade/s1frames"
	"github.com/slicebot/slicebot/internal/arcade/s2detections"
	"github.com/slicebot/slicebot/internal/arcade/s3tracks"
	"github.com/slicebot/slicebot/internal/arcade/s4motion"
	"github.com/slicebot/slicebot/internal/arcade/s5targets"
	"github.com/slicebot/slicebot/internal/arcade/s6swipes"
	"github.com/slicebot/slicebot/internal/timeutil"
)

var engineBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// scriptedSource serves a fixed frame list, advancing the mock clock by one
// step per frame to mimic capture pacing. After the list it returns final,
// or io.EOF when final is nil.
type scriptedSource struct {
	clock  *timeutil.MockClock
	step   time.Duration
	frames []s1frames.Frame
	final  error

	served int
	closed bool
}

func (s *scriptedSource) Next(ctx context.Context) (s1frames.Frame, error) {
	if err := ctx.Err(); err != nil {
		return s1frames.Frame{}, err
	}
	if s.served >= len(s.frames) {
		if s.final != nil {
			return s1frames.Frame{}, s.final
		}
		return s1frames.Frame{}, io.EOF
	}
	frame := s.frames[s.served]
	s.served++
	if s.clock != nil && s.step > 0 {
		s.clock.Advance(s.step)
	}
	return frame, nil
}

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

// countingChecker returns a fixed result and counts how often it is asked.
type countingChecker struct {
	calls int
	state gamestate.State
	err   error
}

func (c *countingChecker) Check(context.Context, s1frames.Frame) (gamestate.State, error) {
	c.calls++
	return c.state, c.err
}

// captureSink records every persistence call. When failWith is set, every
// call still records and then reports that error.
type captureSink struct {
	failWith error

	cycles []CycleRecord
	tracks []*s3tracks.Track
	obs    [][]TrackObservation
	swipes []SwipeOutcome
}

func (s *captureSink) PersistCycle(rec CycleRecord) error {
	s.cycles = append(s.cycles, rec)
	return s.failWith
}

func (s *captureSink) PersistTrack(track *s3tracks.Track) error {
	s.tracks = append(s.tracks, track)
	return s.failWith
}

func (s *captureSink) PersistObservations(obs []TrackObservation) error {
	s.obs = append(s.obs, obs)
	return s.failWith
}

func (s *captureSink) PersistSwipe(outcome SwipeOutcome) error {
	s.swipes = append(s.swipes, outcome)
	return s.failWith
}

func (s *captureSink) observationCount() int {
	n := 0
	for _, batch := range s.obs {
		n += len(batch)
	}
	return n
}

// testTrackerConfig mirrors the pixel-domain defaults as an explicit
// literal so loop tests do not depend on the defaults file.
func testTrackerConfig() s3tracks.TrackerConfig {
	return s3tracks.TrackerConfig{
		MaxTracks:             64,
		MaxMisses:             3,
		MaxMissesConfirmed:    10,
		HitsToConfirm:         2,
		GatingDistanceSquared: 9.21,
		ProcessNoisePos:       10,
		ProcessNoiseVel:       120000,
		MeasurementNoise:      16,
		OcclusionInflation:    1.3,
		MaxStaleness:          time.Second,
		DeletedRetention:      5 * time.Second,
		MaxSpeedPxS:           3000,
		MaxPositionJumpPx:     150,
		MaxPredictDt:          0.25,
		MaxCovarianceDiag:     4e6,
		MaxTrackHistory:       30,
	}
}

// testStrategyConfig keeps the default geometry but zeroes the cooldowns and
// relaxes the action score so a confirmed in-band fruit is cut every cycle.
func testStrategyConfig() s5targets.Config {
	return s5targets.Config{
		RegionW:              1280,
		RegionH:              720,
		TargetClasses:        []string{"fruit"},
		HazardClasses:        []string{"bomb"},
		MinConfidence:        0.45,
		MinSafety:            0.6,
		MinActionScore:       0.3,
		BandLow:              0.4,
		BandHigh:             0.7,
		BandOptimum:          0.55,
		WeightSafety:         1,
		WeightConfidence:     1,
		WeightBand:           1,
		SafetyDistancePx:     60,
		SafetyVerticalPx:     25,
		HazardCorridorXPx:    80,
		HazardCorridorYPx:    30,
		HazardStopShortPx:    25,
		SwipeHalfLengthPx:    60,
		MinSwipeLengthPx:     40,
		SwipeDuration:        20 * time.Millisecond,
		MaxActionsPerCycle:   2,
		DispatchLead:         60 * time.Millisecond,
		RapidFireMinSlices:   2,
		RapidFirePersistence: time.Second,
		RapidFireWindow:      3 * time.Second,
		RapidFireDurScale:    0.8,
		RapidFireCdScale:     0.5,
	}
}

func testValidator() *s2detections.Validator {
	return s2detections.NewValidator(s2detections.ValidatorConfig{
		Region:        arcade.Rect{X: 0, Y: 0, W: 1280, H: 720},
		MinConfidence: 0.3,
		MinBoxAreaPx:  100,
	})
}

func testEngineConfig(clock *timeutil.MockClock, src s1frames.Source) EngineConfig {
	pred := s4motion.NewPredictor(s4motion.Config{GravityEnabled: true, MaxAccelPxS2: 4000})
	return EngineConfig{
		Source:    src,
		Validator: testValidator(),
		Tracker:   s3tracks.NewTracker(testTrackerConfig()),
		Strategy:  s5targets.NewStrategy(testStrategyConfig(), pred),
		Clock:     clock,
	}
}

func fruitFrame(seq uint64, ts time.Time, x, y float64) s1frames.Frame {
	return s1frames.Frame{
		Seq:       seq,
		Timestamp: ts,
		Detections: []s2detections.Detection{{
			Box:        arcade.Rect{X: x - 20, Y: y - 20, W: 40, H: 40},
			Class:      "fruit",
			Confidence: 0.9,
			Timestamp:  ts,
			FrameSeq:   seq,
		}},
	}
}

func emptyFrame(seq uint64, ts time.Time) s1frames.Frame {
	return s1frames.Frame{Seq: seq, Timestamp: ts}
}

// frameStep is the capture cadence scripted sources run at.
const frameStep = 100 * time.Millisecond

func frameTS(i int) time.Time {
	return engineBase.Add(time.Duration(i) * frameStep)
}

// --- construction ---

func TestNewEngine_RequiresCoreStages(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(engineBase)
	src := &scriptedSource{clock: clock}

	valid := testEngineConfig(clock, src)
	_, err := NewEngine(valid)
	require.NoError(t, err)

	for name, breakCfg := range map[string]func(*EngineConfig){
		"source":    func(c *EngineConfig) { c.Source = nil },
		"validator": func(c *EngineConfig) { c.Validator = nil },
		"tracker":   func(c *EngineConfig) { c.Tracker = nil },
		"strategy":  func(c *EngineConfig) { c.Strategy = nil },
	} {
		cfg := testEngineConfig(clock, src)
		breakCfg(&cfg)
		_, err := NewEngine(cfg)
		assert.Error(t, err, "missing %s must be rejected", name)
	}

	// The typed-nil-in-interface form of a missing source is caught too.
	cfg := testEngineConfig(clock, src)
	cfg.Source = (*scriptedSource)(nil)
	_, err = NewEngine(cfg)
	assert.Error(t, err)
}

func TestEngineState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "capturing", StateCapturing.String())
	assert.Equal(t, "detecting", StateDetecting.String())
	assert.Equal(t, "tracking", StateTracking.String())
	assert.Equal(t, "selecting", StateSelecting.String())
	assert.Equal(t, "acting", StateActing.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestEngineSnapshot_BeforeRun(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(engineBase)
	e, err := NewEngine(testEngineConfig(clock, &scriptedSource{clock: clock}))
	require.NoError(t, err)

	snap := e.Snapshot()
	assert.Equal(t, StateStopped, snap.State)
	assert.Empty(t, snap.EndReason)
	assert.Zero(t, snap.Frames)
	assert.Zero(t, snap.FPS)
	assert.Zero(t, snap.LatencyP95)
}

// --- orderly stops ---

func TestEngineRun_FeedEndStopsCleanly(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(engineBase)
	src := &scriptedSource{
		clock:  clock,
		step:   frameStep,
		frames: []s1frames.Frame{emptyFrame(1, frameTS(0)), emptyFrame(2, frameTS(1))},
	}
	checker := &countingChecker{state: gamestate.StatePlaying}

	cfg := testEngineConfig(clock, src)
	cfg.Checker = checker
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, ReasonFeedEnd, e.EndReason())
	assert.Equal(t, StateStopped, e.State())

	snap := e.Snapshot()
	assert.Equal(t, uint64(2), snap.Frames)
	assert.Equal(t, uint64(2), snap.Cycles)

	// The first empty cycle makes a check due at the top of the second.
	assert.Equal(t, 1, checker.calls)

	// The loop never owns the source's lifetime.
	assert.False(t, src.closed)
}

func TestEngineRun_SlicesRisingFruit(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(engineBase)
	frames := make([]s1frames.Frame, 0, 5)
	for i := 0; i < 5; i++ {
		// A fruit drifting up through the cut band at 80 px/s.
		frames = append(frames, fruitFrame(uint64(i+1), frameTS(i), 300, 460-8*float64(i)))
	}
	src := &scriptedSource{clock: clock, step: frameStep, frames: frames}

	inj := s6swipes.NewMockInjector()
	sink := &captureSink{}

	cfg := testEngineConfig(clock, src)
	cfg.Dispatcher = s6swipes.NewDispatcher(inj, clock, 4)
	cfg.Sink = sink
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	require.NoError(t, e.Run(context.Background()))
	require.Equal(t, ReasonFeedEnd, e.EndReason())

	// Confirmed on the second sighting, cut on every cycle after that.
	require.GreaterOrEqual(t, inj.InjectCalls, 1)

	snap := e.Snapshot()
	assert.Equal(t, uint64(5), snap.Frames)
	assert.Equal(t, uint64(5), snap.Cycles)
	assert.Equal(t, uint64(inj.InjectCalls), snap.Swipes)
	assert.InDelta(t, 10.0, snap.FPS, 0.2)

	confirmed := cfg.Tracker.GetConfirmedTracks()
	require.Len(t, confirmed, 1)
	assert.Equal(t, inj.InjectCalls, confirmed[0].SwipeCount)

	// Every cycle left a record; the fruit entered them once tracked.
	require.Len(t, sink.cycles, 5)
	assert.Equal(t, 1, sink.cycles[0].Detections)
	assert.Equal(t, uint64(1), sink.cycles[0].FrameSeq)
	dispatched := 0
	for _, rec := range sink.cycles {
		dispatched += rec.Dispatched
	}
	assert.Equal(t, inj.InjectCalls, dispatched)

	// Observations start with confirmation, one per matched cycle.
	assert.Equal(t, 4, sink.observationCount())
	require.Len(t, sink.swipes, inj.InjectCalls)
	for _, outcome := range sink.swipes {
		assert.Equal(t, confirmed[0].TrackID, outcome.Path.TrackID)
	}

	// The track is still live, so nothing retired.
	assert.Empty(t, sink.tracks)
}

func TestEngineRun_GameOverHaltsAtCycleTop(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(engineBase)
	gameOver := emptyFrame(4, frameTS(3))
	gameOver.Hint = s1frames.HintGameOver
	src := &scriptedSource{
		clock: clock,
		step:  frameStep,
		frames: []s1frames.Frame{
			fruitFrame(1, frameTS(0), 300, 460),
			fruitFrame(2, frameTS(1), 300, 452),
			emptyFrame(3, frameTS(2)),
			gameOver,
			fruitFrame(5, frameTS(4), 300, 436),
			fruitFrame(6, frameTS(5), 300, 428),
		},
	}

	inj := s6swipes.NewMockInjector()
	cfg := testEngineConfig(clock, src)
	cfg.Dispatcher = s6swipes.NewDispatcher(inj, clock, 4)
	cfg.Checker = gamestate.HintChecker{}
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, ReasonGameOver, e.EndReason())

	// The empty third cycle made a check due; the fourth frame's hint ended
	// the session before its stages ran, and nothing later was captured.
	assert.Equal(t, 4, src.served)
	snap := e.Snapshot()
	assert.Equal(t, uint64(4), snap.Frames)
	assert.Equal(t, uint64(3), snap.Cycles)
	assert.Equal(t, uint64(1), snap.GameChecks)

	// The swipe planned before the end screen ran to completion.
	assert.GreaterOrEqual(t, inj.InjectCalls, 1)
	assert.Equal(t, uint64(inj.InjectCalls), snap.Swipes)
}

func TestEngineRun_GameCheckCadence(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(engineBase)
	frames := make([]s1frames.Frame, 0, 6)
	for i := 0; i < 6; i++ {
		// Out-of-band fruit: detections every cycle, so only the frame
		// cadence can trigger checks.
		frames = append(frames, fruitFrame(uint64(i+1), frameTS(i), 300, 620))
	}
	src := &scriptedSource{clock: clock, step: frameStep, frames: frames}
	checker := &countingChecker{state: gamestate.StatePlaying}

	cfg := testEngineConfig(clock, src)
	cfg.Checker = checker
	cfg.GameCheckInterval = 2
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, ReasonFeedEnd, e.EndReason())
	assert.Equal(t, 3, checker.calls)
	assert.Equal(t, uint64(3), e.Snapshot().GameChecks)
}

func TestEngineRun_CheckerErrorKeepsCycling(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(engineBase)
	frames := []s1frames.Frame{
		fruitFrame(1, frameTS(0), 300, 620),
		fruitFrame(2, frameTS(1), 300, 620),
		fruitFrame(3, frameTS(2), 300, 620),
	}
	src := &scriptedSource{clock: clock, step: frameStep, frames: frames}
	checker := &countingChecker{state: gamestate.StateUnknown, err: errors.New("screen grab failed")}

	cfg := testEngineConfig(clock, src)
	cfg.Checker = checker
	cfg.GameCheckInterval = 1
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	// An undecided checker never ends the session.
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, ReasonFeedEnd, e.EndReason())
	assert.Equal(t, 3, checker.calls)
	assert.Equal(t, uint64(3), e.Snapshot().Cycles)
}

// --- cycle-rate cap ---

func TestEngineRun_ThrottleAbsorbsFastFrames(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(engineBase)
	frames := make([]s1frames.Frame, 0, 12)
	for i := 0; i < 12; i++ {
		// A hovering fruit captured at 100 fps against a 10 Hz cycle cap.
		frames = append(frames, fruitFrame(uint64(i+1), engineBase.Add(time.Duration(i)*10*time.Millisecond), 300, 450))
	}
	src := &scriptedSource{clock: clock, step: 10 * time.Millisecond, frames: frames}

	cfg := testEngineConfig(clock, src)
	cfg.MaxCycleRate = 10
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	require.NoError(t, e.Run(context.Background()))

	snap := e.Snapshot()
	assert.Equal(t, uint64(12), snap.Frames)
	assert.Equal(t, uint64(2), snap.Cycles)
	assert.Equal(t, uint64(10), snap.Throttled)

	// A short burst never ages tracks: the hovering fruit survives.
	assert.Equal(t, 0, cfg.Tracker.TracksRetired)
	total, _, _, _ := cfg.Tracker.GetTrackCount()
	assert.Equal(t, 1, total)
}

func TestEngineRun_ThrottleGenuineGapAgesTracks(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(engineBase)
	frames := make([]s1frames.Frame, 0, 5)
	for i := 0; i < 5; i++ {
		// Replay catch-up: half a second of frame time between frames that
		// arrive 5 ms apart on the wall clock.
		frames = append(frames, fruitFrame(uint64(i+1), engineBase.Add(time.Duration(i)*500*time.Millisecond), 300, 450))
	}
	src := &scriptedSource{clock: clock, step: 5 * time.Millisecond, frames: frames}

	sink := &captureSink{}
	cfg := testEngineConfig(clock, src)
	cfg.MaxCycleRate = 10
	cfg.Sink = sink
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	require.NoError(t, e.Run(context.Background()))

	snap := e.Snapshot()
	assert.Equal(t, uint64(5), snap.Frames)
	assert.Equal(t, uint64(1), snap.Cycles)
	assert.Equal(t, uint64(4), snap.Throttled)

	// Each absorbed frame carried a genuine frame-time gap, so the
	// tentative track aged out instead of being kept alive.
	assert.Equal(t, 1, cfg.Tracker.TracksRetired)

	// Never confirmed, so it retired silently as noise.
	assert.Empty(t, sink.tracks)
	assert.Zero(t, snap.FruitsCut)
}

// --- retirement persistence ---

func TestEngineRun_EmptyFramesRetireAndPersistOnce(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(engineBase)
	frames := []s1frames.Frame{
		// Out of band so no swipes muddy the retirement accounting.
		fruitFrame(1, frameTS(0), 300, 620),
		fruitFrame(2, frameTS(1), 300, 620),
	}
	for i := 2; i < 9; i++ {
		frames = append(frames, emptyFrame(uint64(i+1), frameTS(i)))
	}
	src := &scriptedSource{clock: clock, step: frameStep, frames: frames}

	sink := &captureSink{}
	cfg := testEngineConfig(clock, src)
	trackerCfg := testTrackerConfig()
	trackerCfg.MaxMissesConfirmed = 4
	cfg.Tracker = s3tracks.NewTracker(trackerCfg)
	cfg.Sink = sink
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, ReasonFeedEnd, e.EndReason())

	// Confirmed on frame 2, starved of detections after, retired on the
	// fourth miss. Repeated sweeps record the lifetime exactly once.
	require.Len(t, sink.tracks, 1)
	assert.Equal(t, "fruit", sink.tracks[0].Class)
	_, _, _, deleted := cfg.Tracker.GetTrackCount()
	assert.Equal(t, 1, deleted)

	// The only matched confirmed cycle is frame 2.
	assert.Equal(t, 1, sink.observationCount())
	assert.Equal(t, sink.tracks[0].TrackID, sink.obs[0][0].TrackID)
	assert.Equal(t, uint64(2), sink.obs[0][0].FrameSeq)

	assert.Len(t, sink.cycles, 9)
	assert.Zero(t, e.Snapshot().FruitsCut)
}

// --- faults ---

func TestEngineRun_SourceFaultWrapsError(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(engineBase)
	src := &scriptedSource{
		clock:  clock,
		step:   frameStep,
		frames: []s1frames.Frame{emptyFrame(1, frameTS(0))},
		final:  errors.New("socket gone"),
	}
	e, err := NewEngine(testEngineConfig(clock, src))
	require.NoError(t, err)

	err = e.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "capturing:")
	assert.ErrorContains(t, err, "socket gone")
	assert.Equal(t, ReasonFault, e.EndReason())
	assert.Equal(t, StateStopped, e.State())
}

func TestEngineRun_InjectorFaultWrapsError(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(engineBase)
	frames := []s1frames.Frame{
		fruitFrame(1, frameTS(0), 300, 460),
		fruitFrame(2, frameTS(1), 300, 452),
		fruitFrame(3, frameTS(2), 300, 444),
	}
	src := &scriptedSource{clock: clock, step: frameStep, frames: frames}

	inj := s6swipes.NewMockInjector()
	inj.InjectError = errors.New("device wedged")
	sink := &captureSink{}

	cfg := testEngineConfig(clock, src)
	cfg.Dispatcher = s6swipes.NewDispatcher(inj, clock, 4)
	cfg.Sink = sink
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	err = e.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "acting:")
	assert.ErrorContains(t, err, "device wedged")
	assert.Equal(t, ReasonFault, e.EndReason())

	// The first cut attempt comes with confirmation on frame 2; the failing
	// cycle still left its record before the loop stopped.
	assert.Equal(t, 2, src.served)
	assert.Len(t, sink.cycles, 2)
	assert.Zero(t, e.Snapshot().Swipes)
}

func TestEngineRun_CancelCompletesInFlightSwipe(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := timeutil.NewMockClock(engineBase)
	frames := make([]s1frames.Frame, 0, 5)
	for i := 0; i < 5; i++ {
		frames = append(frames, fruitFrame(uint64(i+1), frameTS(i), 300, 460-8*float64(i)))
	}
	src := &scriptedSource{clock: clock, step: frameStep, frames: frames}

	inj := s6swipes.NewMockInjector()
	inj.InjectFunc = func(context.Context, []s6swipes.Step) error {
		// Stop request lands while the gesture is on the wire.
		cancel()
		return nil
	}
	sink := &captureSink{}

	cfg := testEngineConfig(clock, src)
	cfg.Dispatcher = s6swipes.NewDispatcher(inj, clock, 4)
	cfg.Sink = sink
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	require.NoError(t, e.Run(ctx))

	// The in-flight swipe finished and was accounted; the loop stopped at
	// the next cycle boundary.
	assert.Equal(t, ReasonCanceled, e.EndReason())
	assert.Equal(t, 1, inj.InjectCalls)
	assert.Equal(t, uint64(1), e.Snapshot().Swipes)
	assert.Len(t, sink.swipes, 1)
	assert.Equal(t, 2, src.served)
}

func TestEngineRun_SinkFailuresAreNonFatal(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(engineBase)
	frames := []s1frames.Frame{
		fruitFrame(1, frameTS(0), 300, 460),
		fruitFrame(2, frameTS(1), 300, 452),
		fruitFrame(3, frameTS(2), 300, 444),
	}
	src := &scriptedSource{clock: clock, step: frameStep, frames: frames}

	inj := s6swipes.NewMockInjector()
	sink := &captureSink{failWith: errors.New("disk full")}

	cfg := testEngineConfig(clock, src)
	cfg.Dispatcher = s6swipes.NewDispatcher(inj, clock, 4)
	cfg.Sink = sink
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	// Storage trouble degrades to logging; the session keeps playing.
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, ReasonFeedEnd, e.EndReason())
	assert.Len(t, sink.cycles, 3)
}
