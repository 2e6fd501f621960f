package s5targets

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slicebot/slicebot/internal/arcade"
	"github.com/slicebot/slicebot/internal/arcade/s3tracks"
	"github.com/slicebot/slicebot/internal/arcade/s4motion"
	"github.com/slicebot/slicebot/internal/config"
)

var selBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// holdPredictor pins every track to its current state estimate regardless
// of the asked instant, which keeps cut geometry exact in tests.
type holdPredictor struct{}

func (holdPredictor) Predict(track *s3tracks.Track, _ time.Time) arcade.Point {
	return track.Center()
}

func testStrategyConfig() Config {
	return Config{
		RegionW:              1280,
		RegionH:              720,
		TargetClasses:        []string{"fruit"},
		HazardClasses:        []string{"bomb"},
		MinConfidence:        0.45,
		MinSafety:            0.6,
		MinActionScore:       0.5,
		BandLow:              0.40,
		BandHigh:             0.70,
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
		MaxActionsPerCycle:   3,
		DispatchLead:         60 * time.Millisecond,
		SwipeCooldown:        100 * time.Millisecond,
		TrackCooldown:        400 * time.Millisecond,
		RapidFireMinSlices:   2,
		RapidFirePersistence: time.Second,
		RapidFireWindow:      3 * time.Second,
		RapidFireDurScale:    0.8,
		RapidFireCdScale:     0.5,
	}
}

func confirmedTrack(seq uint64, class string, x, y float64, conf float32) *s3tracks.Track {
	return &s3tracks.Track{
		TrackID:    fmt.Sprintf("trk_%06d", seq),
		State:      s3tracks.TrackConfirmed,
		Class:      class,
		CreatedSeq: seq,
		X:          x,
		Y:          y,
		Confidence: conf,
		CreatedAt:  selBase.Add(-500 * time.Millisecond),
		LastSeen:   selBase,
	}
}

// bandY converts a region-height fraction into pixels for the test region.
func bandY(frac float64) float64 { return frac * 720 }

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

func TestConfigFromBot(t *testing.T) {
	t.Parallel()
	cfg := ConfigFromBot(config.EmptyBotConfig())

	assert.InDelta(t, 1280, cfg.RegionW, 0.001)
	assert.InDelta(t, 720, cfg.RegionH, 0.001)
	assert.Equal(t, []string{"fruit"}, cfg.TargetClasses)
	assert.Equal(t, []string{"bomb"}, cfg.HazardClasses)
	assert.InDelta(t, 0.6, cfg.MinSafety, 0.001)
	assert.InDelta(t, 0.5, cfg.MinActionScore, 0.001)
	assert.Equal(t, 3, cfg.MaxActionsPerCycle)
	assert.Equal(t, 60*time.Millisecond, cfg.DispatchLead)
	assert.Equal(t, 100*time.Millisecond, cfg.SwipeCooldown)
	assert.InDelta(t, 0.8, cfg.RapidFireDurScale, 0.001)
}

// ---------------------------------------------------------------------------
// Candidate filtering
// ---------------------------------------------------------------------------

func TestSelect_NoTracks(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), holdPredictor{})
	assert.Empty(t, s.Select(nil, selBase))
}

func TestSelect_SingleFruit(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), holdPredictor{})
	fruit := confirmedTrack(1, "fruit", 400, bandY(0.55), 0.9)

	paths := s.Select([]*s3tracks.Track{fruit}, selBase)
	require.Len(t, paths, 1)

	p := paths[0]
	assert.Equal(t, fruit.TrackID, p.TrackID)
	assert.InDelta(t, 340, p.Start.X, 1e-9)
	assert.InDelta(t, 460, p.End.X, 1e-9)
	assert.InDelta(t, bandY(0.55), p.Start.Y, 1e-9)
	assert.InDelta(t, bandY(0.55), p.End.Y, 1e-9)
	assert.Equal(t, 20*time.Millisecond, p.Duration)
	assert.True(t, p.NotBefore.Equal(selBase.Add(60*time.Millisecond)))
	assert.False(t, p.RapidFire)
}

func TestSelect_HazardNeverTargeted(t *testing.T) {
	t.Parallel()

	t.Run("hazard class alone", func(t *testing.T) {
		t.Parallel()
		s := NewStrategy(testStrategyConfig(), holdPredictor{})
		bomb := confirmedTrack(1, "bomb", 400, bandY(0.55), 0.99)
		assert.Empty(t, s.Select([]*s3tracks.Track{bomb}, selBase))
	})

	t.Run("hazard membership beats target membership", func(t *testing.T) {
		t.Parallel()
		cfg := testStrategyConfig()
		cfg.TargetClasses = []string{"fruit", "bomb"}
		s := NewStrategy(cfg, holdPredictor{})
		bomb := confirmedTrack(1, "bomb", 400, bandY(0.55), 0.99)
		assert.Empty(t, s.Select([]*s3tracks.Track{bomb}, selBase))
	})
}

func TestSelect_TentativeExcluded(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), holdPredictor{})
	fruit := confirmedTrack(1, "fruit", 400, bandY(0.55), 0.9)
	fruit.State = s3tracks.TrackTentative
	assert.Empty(t, s.Select([]*s3tracks.Track{fruit}, selBase))
}

func TestSelect_LowConfidenceExcluded(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), holdPredictor{})
	fruit := confirmedTrack(1, "fruit", 400, bandY(0.55), 0.30)
	assert.Empty(t, s.Select([]*s3tracks.Track{fruit}, selBase))
}

func TestSelect_HeightBandGate(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), holdPredictor{})
	tooHigh := confirmedTrack(1, "fruit", 400, bandY(0.20), 0.9)
	tooLow := confirmedTrack(2, "fruit", 700, bandY(0.90), 0.9)
	assert.Empty(t, s.Select([]*s3tracks.Track{tooHigh, tooLow}, selBase))
}

// ---------------------------------------------------------------------------
// Safety
// ---------------------------------------------------------------------------

func TestSelect_HazardInsideHardZeroBox(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), holdPredictor{})
	fruit := confirmedTrack(1, "fruit", 400, bandY(0.55), 0.9)
	// 45 px across, 14 px down: inside the 60x25 hard-zero box.
	bomb := confirmedTrack(2, "bomb", 445, bandY(0.55)+14, 0.9)
	assert.Empty(t, s.Select([]*s3tracks.Track{fruit, bomb}, selBase))
}

func TestSelect_HazardProximityDegradesSafety(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), holdPredictor{})
	fruit := confirmedTrack(1, "fruit", 400, bandY(0.55), 0.9)
	// Directly below, outside the hard-zero box, 40 px away: safety 0.4
	// falls under the 0.6 floor.
	bomb := confirmedTrack(2, "bomb", 400, bandY(0.55)+40, 0.9)
	assert.Empty(t, s.Select([]*s3tracks.Track{fruit, bomb}, selBase))
}

func TestSelect_CorridorShortensCut(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), holdPredictor{})
	fruit := confirmedTrack(1, "fruit", 400, bandY(0.55), 0.9)
	// 70 px to the right: outside the hard-zero box, inside the 80 px
	// corridor. The cut's right end pulls back to 25 px short of the bomb.
	bomb := confirmedTrack(2, "bomb", 470, bandY(0.55)+4, 0.9)

	paths := s.Select([]*s3tracks.Track{fruit, bomb}, selBase)
	require.Len(t, paths, 1)
	assert.Equal(t, fruit.TrackID, paths[0].TrackID)
	assert.InDelta(t, 340, paths[0].Start.X, 1e-9)
	assert.InDelta(t, 445, paths[0].End.X, 1e-9)
}

func TestSelect_OverShortenedCutRejected(t *testing.T) {
	t.Parallel()
	cfg := testStrategyConfig()
	cfg.MinSwipeLengthPx = 110
	s := NewStrategy(cfg, holdPredictor{})
	fruit := confirmedTrack(1, "fruit", 400, bandY(0.55), 0.9)
	// Shortening leaves a 105 px cut, under the configured minimum: the
	// path is rejected, not clamped.
	bomb := confirmedTrack(2, "bomb", 470, bandY(0.55)+4, 0.9)
	assert.Empty(t, s.Select([]*s3tracks.Track{fruit, bomb}, selBase))
}

func TestSelect_CutLeavingRegionRejected(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), holdPredictor{})
	nearLeft := confirmedTrack(1, "fruit", 30, bandY(0.55), 0.9)
	nearRight := confirmedTrack(2, "fruit", 1250, bandY(0.55), 0.9)
	assert.Empty(t, s.Select([]*s3tracks.Track{nearLeft, nearRight}, selBase))
}

// ---------------------------------------------------------------------------
// Ranking and scheduling
// ---------------------------------------------------------------------------

func TestSelect_RanksByScore(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), holdPredictor{})
	weaker := confirmedTrack(1, "fruit", 300, bandY(0.55), 0.7)
	stronger := confirmedTrack(2, "fruit", 800, bandY(0.55), 0.95)

	paths := s.Select([]*s3tracks.Track{weaker, stronger}, selBase)
	require.Len(t, paths, 2)
	assert.Equal(t, stronger.TrackID, paths[0].TrackID)
	assert.Equal(t, weaker.TrackID, paths[1].TrackID)
}

func TestSelect_MaxActionsAndSerializedWindows(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), holdPredictor{})
	var tracks []*s3tracks.Track
	for i := 0; i < 5; i++ {
		tracks = append(tracks, confirmedTrack(uint64(i+1), "fruit", 150+250*float64(i), bandY(0.55), 0.9))
	}

	paths := s.Select(tracks, selBase)
	require.Len(t, paths, 3)

	// Equal scores resolve in creation order.
	for i := 0; i < 3; i++ {
		assert.Equal(t, tracks[i].TrackID, paths[i].TrackID)
	}

	// Windows never overlap and run in NotBefore order.
	assert.False(t, paths[0].NotBefore.Before(selBase.Add(60*time.Millisecond)))
	for i := 1; i < len(paths); i++ {
		_, prevEnd := paths[i-1].Window()
		assert.False(t, paths[i].NotBefore.Before(prevEnd),
			"path %d starts before path %d finishes", i, i-1)
	}
}

func TestSelect_DeterministicOrder(t *testing.T) {
	t.Parallel()
	for run := 0; run < 20; run++ {
		s := NewStrategy(testStrategyConfig(), holdPredictor{})
		a := confirmedTrack(1, "fruit", 500, bandY(0.55), 0.9)
		b := confirmedTrack(2, "fruit", 800, bandY(0.55), 0.9)

		paths := s.Select([]*s3tracks.Track{a, b}, selBase)
		require.Len(t, paths, 2)
		assert.Equal(t, a.TrackID, paths[0].TrackID, "run %d", run)
		assert.Equal(t, b.TrackID, paths[1].TrackID, "run %d", run)
	}
}

// ---------------------------------------------------------------------------
// Cooldowns
// ---------------------------------------------------------------------------

func TestSelect_GlobalCooldown(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), holdPredictor{})
	first := confirmedTrack(1, "fruit", 400, bandY(0.55), 0.9)
	second := confirmedTrack(2, "fruit", 900, bandY(0.55), 0.9)

	require.Len(t, s.Select([]*s3tracks.Track{first}, selBase), 1)

	// The planned window ends 80 ms after base; 10 ms in, everything is
	// still inside the 100 ms global cooldown, fresh tracks included.
	assert.Empty(t, s.Select([]*s3tracks.Track{first, second}, selBase.Add(10*time.Millisecond)))
	assert.Empty(t, s.Select([]*s3tracks.Track{first, second}, selBase.Add(170*time.Millisecond)))

	// Past the cooldown only the fresh track is eligible; the first is
	// still held by its per-track cooldown.
	paths := s.Select([]*s3tracks.Track{first, second}, selBase.Add(190*time.Millisecond))
	require.Len(t, paths, 1)
	assert.Equal(t, second.TrackID, paths[0].TrackID)
}

func TestSelect_TrackCooldown(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), holdPredictor{})
	fruit := confirmedTrack(1, "fruit", 400, bandY(0.55), 0.9)

	require.Len(t, s.Select([]*s3tracks.Track{fruit}, selBase), 1)

	// Global cooldown has passed, per-track has not.
	assert.Empty(t, s.Select([]*s3tracks.Track{fruit}, selBase.Add(200*time.Millisecond)))

	// 500 ms after base is 420 ms past the planned window end.
	require.Len(t, s.Select([]*s3tracks.Track{fruit}, selBase.Add(500*time.Millisecond)), 1)
}

// ---------------------------------------------------------------------------
// Rapid fire
// ---------------------------------------------------------------------------

func TestSelect_RapidFire(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), holdPredictor{})
	fruit := confirmedTrack(1, "fruit", 400, bandY(0.55), 0.9)
	fruit.SwipeCount = 2
	fruit.CreatedAt = selBase.Add(-2 * time.Second)

	paths := s.Select([]*s3tracks.Track{fruit}, selBase)
	require.Len(t, paths, 1)
	assert.True(t, paths[0].RapidFire)
	assert.Equal(t, 16*time.Millisecond, paths[0].Duration, "duration scales by 0.8")
	assert.True(t, s.RapidFireActive(selBase))
	assert.False(t, s.RapidFireActive(selBase.Add(4*time.Second)))

	// Halved cooldowns let the same object be re-sliced quickly while the
	// window is open.
	again := s.Select([]*s3tracks.Track{fruit}, selBase.Add(300*time.Millisecond))
	require.Len(t, again, 1)
	assert.True(t, again[0].RapidFire)
}

func TestSelect_RapidFireNeedsPersistence(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), holdPredictor{})
	fruit := confirmedTrack(1, "fruit", 400, bandY(0.55), 0.9)
	fruit.SwipeCount = 5
	fruit.CreatedAt = selBase.Add(-200 * time.Millisecond)

	paths := s.Select([]*s3tracks.Track{fruit}, selBase)
	require.Len(t, paths, 1)
	assert.False(t, paths[0].RapidFire, "young track must not open the window")
	assert.False(t, s.RapidFireActive(selBase))
}

// ---------------------------------------------------------------------------
// Prediction integration
// ---------------------------------------------------------------------------

func TestSelect_CutCentersOnPredictedPosition(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), s4motion.NewPredictor(s4motion.Config{}))
	fruit := confirmedTrack(1, "fruit", 400, bandY(0.55), 0.9)
	fruit.History = []s3tracks.TrackPoint{
		{X: 370, Y: bandY(0.55), Timestamp: selBase.Add(-100 * time.Millisecond)},
		{X: 400, Y: bandY(0.55), Timestamp: selBase},
	}

	paths := s.Select([]*s3tracks.Track{fruit}, selBase)
	require.Len(t, paths, 1)

	// 300 px/s rightward, cut crossing 70 ms out: center 421.
	center := (paths[0].Start.X + paths[0].End.X) / 2
	assert.InDelta(t, 421, center, 1e-6)
}

func TestSelect_HazardJudgedAtArrival(t *testing.T) {
	t.Parallel()
	s := NewStrategy(testStrategyConfig(), s4motion.NewPredictor(s4motion.Config{}))
	fruit := confirmedTrack(1, "fruit", 400, bandY(0.55), 0.9)
	fruit.History = []s3tracks.TrackPoint{
		{X: 400, Y: bandY(0.55), Timestamp: selBase.Add(-100 * time.Millisecond)},
		{X: 400, Y: bandY(0.55), Timestamp: selBase},
	}
	// The bomb is 300 px away right now but inbound at 4000 px/s; by the
	// time the cut lands it sits on top of the target. Tentative hazards
	// count: a bomb does not need confirmation to be dangerous.
	bomb := confirmedTrack(2, "bomb", 700, bandY(0.55), 0.9)
	bomb.State = s3tracks.TrackTentative
	bomb.History = []s3tracks.TrackPoint{
		{X: 1100, Y: bandY(0.55), Timestamp: selBase.Add(-100 * time.Millisecond)},
		{X: 700, Y: bandY(0.55), Timestamp: selBase},
	}

	assert.Empty(t, s.Select([]*s3tracks.Track{fruit, bomb}, selBase))
}

// ---------------------------------------------------------------------------
// SwipePath
// ---------------------------------------------------------------------------

func TestSwipePathWindowAndLength(t *testing.T) {
	t.Parallel()
	p := SwipePath{
		Start:     arcade.Point{X: 100, Y: 400},
		End:       arcade.Point{X: 220, Y: 400},
		Duration:  20 * time.Millisecond,
		NotBefore: selBase,
	}
	start, end := p.Window()
	assert.True(t, start.Equal(selBase))
	assert.True(t, end.Equal(selBase.Add(20*time.Millisecond)))
	assert.InDelta(t, 120, p.Length(), 1e-9)
}
