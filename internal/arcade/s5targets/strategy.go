package s5targets

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/slicebot/slicebot/internal/arcade"
	"github.com/slicebot/slicebot/internal/arcade/s3tracks"
	"github.com/slicebot/slicebot/internal/config"
)

// hazardFalloffPx is the radius inside which safety degrades linearly with
// hazard distance. Beyond it a hazard has no influence on a candidate's
// score (the corridor check still applies to the planned cut).
const hazardFalloffPx = 100.0

// Predictor yields a position estimate for a track at a future instant.
// s4motion.Predictor satisfies it.
type Predictor interface {
	Predict(track *s3tracks.Track, at time.Time) arcade.Point
}

// Config holds the targeting policy. Weights and thresholds are policy,
// not logic: the selection order can be retuned entirely from here.
type Config struct {
	// Play region extent in pixels. Cuts must stay inside it.
	RegionW float64
	RegionH float64

	// Class policy. Hazard membership always wins over target membership.
	TargetClasses []string
	HazardClasses []string

	// Candidate gates.
	MinConfidence  float64
	MinSafety      float64
	MinActionScore float64

	// Height band: fractions of region height, y growing downward.
	BandLow     float64
	BandHigh    float64
	BandOptimum float64

	// Priority weights, applied as exponents over [0,1] factor scores.
	WeightSafety     float64
	WeightConfidence float64
	WeightBand       float64

	// Hazard geometry in pixels.
	SafetyDistancePx  float64 // hard-zero box, horizontal half-extent
	SafetyVerticalPx  float64 // hard-zero box, vertical half-extent
	HazardCorridorXPx float64 // cut-shortening corridor, horizontal
	HazardCorridorYPx float64 // cut-shortening corridor, vertical
	HazardStopShortPx float64 // berth kept between cut end and hazard

	// Cut geometry.
	SwipeHalfLengthPx float64
	MinSwipeLengthPx  float64
	SwipeDuration     time.Duration

	// Scheduling.
	MaxActionsPerCycle int
	DispatchLead       time.Duration
	SwipeCooldown      time.Duration // between cycles, measured from last window end
	TrackCooldown      time.Duration // between cuts on the same track

	// Rapid-fire mode for multi-slice bonus objects.
	RapidFireMinSlices   int
	RapidFirePersistence time.Duration
	RapidFireWindow      time.Duration
	RapidFireDurScale    float64
	RapidFireCdScale     float64
}

// DefaultConfig returns the targeting configuration from the shipped
// tuning defaults.
func DefaultConfig() Config {
	return ConfigFromBot(config.MustLoadDefaultConfig())
}

// ConfigFromBot maps the bot tuning file onto a targeting Config.
func ConfigFromBot(cfg *config.BotConfig) Config {
	return Config{
		RegionW:              cfg.GetRegionWidth(),
		RegionH:              cfg.GetRegionHeight(),
		TargetClasses:        cfg.GetTargetClasses(),
		HazardClasses:        cfg.GetHazardClasses(),
		MinConfidence:        cfg.GetMinConfidence(),
		MinSafety:            cfg.GetMinSafety(),
		MinActionScore:       cfg.GetMinActionScore(),
		BandLow:              cfg.GetBandLow(),
		BandHigh:             cfg.GetBandHigh(),
		BandOptimum:          cfg.GetBandOptimum(),
		WeightSafety:         cfg.GetWeightSafety(),
		WeightConfidence:     cfg.GetWeightConfidence(),
		WeightBand:           cfg.GetWeightBand(),
		SafetyDistancePx:     cfg.GetSafetyDistancePx(),
		SafetyVerticalPx:     cfg.GetSafetyVerticalPx(),
		HazardCorridorXPx:    cfg.GetHazardCorridorXPx(),
		HazardCorridorYPx:    cfg.GetHazardCorridorYPx(),
		HazardStopShortPx:    cfg.GetHazardStopShortPx(),
		SwipeHalfLengthPx:    cfg.GetSwipeHalfLengthPx(),
		MinSwipeLengthPx:     cfg.GetMinSwipeLengthPx(),
		SwipeDuration:        cfg.GetSwipeDuration(),
		MaxActionsPerCycle:   cfg.GetMaxActionsPerCycle(),
		DispatchLead:         cfg.GetDispatchLead(),
		SwipeCooldown:        cfg.GetSwipeCooldown(),
		TrackCooldown:        cfg.GetTrackCooldown(),
		RapidFireMinSlices:   cfg.GetRapidFireMinSlices(),
		RapidFirePersistence: cfg.GetRapidFirePersistence(),
		RapidFireWindow:      cfg.GetRapidFireWindow(),
		RapidFireDurScale:    cfg.GetRapidFireDurScale(),
		RapidFireCdScale:     cfg.GetRapidFireCdScale(),
	}
}

// Strategy plans swipe paths from the current track set. It owns the
// cooldown and rapid-fire state that persists between cycles; everything
// else is recomputed per call. Safe for concurrent use.
type Strategy struct {
	mu        sync.Mutex
	cfg       Config
	predictor Predictor

	targetSet map[string]struct{}
	hazardSet map[string]struct{}

	lastSwipeAt    time.Time            // end of the last planned window, zero until the first
	lastTrackSwipe map[string]time.Time // track id -> end of its last planned window
	rapidUntil     time.Time            // rapid-fire window end, zero when closed
}

// NewStrategy builds a Strategy over the given predictor.
func NewStrategy(cfg Config, pred Predictor) *Strategy {
	s := &Strategy{
		cfg:            cfg,
		predictor:      pred,
		targetSet:      make(map[string]struct{}, len(cfg.TargetClasses)),
		hazardSet:      make(map[string]struct{}, len(cfg.HazardClasses)),
		lastTrackSwipe: make(map[string]time.Time),
	}
	for _, c := range cfg.TargetClasses {
		s.targetSet[c] = struct{}{}
	}
	for _, c := range cfg.HazardClasses {
		s.hazardSet[c] = struct{}{}
	}
	return s
}

// Config returns a copy of the strategy configuration.
func (s *Strategy) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// RapidFireActive reports whether the rapid-fire window is open at now.
func (s *Strategy) RapidFireActive(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.rapidUntil.IsZero() && now.Before(s.rapidUntil)
}

type candidate struct {
	track *s3tracks.Track
	score float64
}

// Select picks the targets for this cycle and plans one cut per target.
//
// Scoring ranks actionable tracks by safety x confidence x band under the
// configured weights; planning walks the ranking, assigns each surviving
// candidate the next execution slot, and lays a horizontal cut through the
// position the target is predicted to occupy when that slot's cut crosses
// its center. Windows are serialized: each NotBefore is at or after the
// previous window's end. At most MaxActionsPerCycle paths are returned.
//
// No actionable tracks, or a cycle landing inside the global cooldown,
// yields an empty result; that is a no-op cycle, not an error.
func (s *Strategy) Select(tracks []*s3tracks.Track, now time.Time) []SwipePath {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneCooldownsLocked(now)
	s.updateRapidFireLocked(tracks, now)
	rapid := !s.rapidUntil.IsZero() && now.Before(s.rapidUntil)

	dur := s.cfg.SwipeDuration
	globalCd := s.cfg.SwipeCooldown
	trackCd := s.cfg.TrackCooldown
	if rapid {
		dur = time.Duration(float64(dur) * s.cfg.RapidFireDurScale)
		globalCd = time.Duration(float64(globalCd) * s.cfg.RapidFireCdScale)
		trackCd = time.Duration(float64(trackCd) * s.cfg.RapidFireCdScale)
	}

	if !s.lastSwipeAt.IsZero() && now.Sub(s.lastSwipeAt) < globalCd {
		return nil
	}

	var hazards []*s3tracks.Track
	for _, track := range tracks {
		if _, ok := s.hazardSet[track.Class]; ok {
			hazards = append(hazards, track)
		}
	}

	// Score against a common nominal arrival; per-slot arrival shifts are
	// small compared to the factor scales.
	nominal := now.Add(s.cfg.DispatchLead + dur/2)
	hazardPts := s.hazardPositions(hazards, nominal)

	var cands []candidate
	for _, track := range tracks {
		if !s.actionableLocked(track, now, trackCd) {
			continue
		}
		pt := s.predictor.Predict(track, nominal)
		band, ok := s.bandScore(pt.Y)
		if !ok {
			debugf("track %s: outside height band (y=%.0f)", track.TrackID, pt.Y)
			continue
		}
		safety := s.safetyScore(pt, hazardPts)
		if safety < s.cfg.MinSafety {
			debugf("track %s: safety %.2f below %.2f", track.TrackID, safety, s.cfg.MinSafety)
			continue
		}
		score := s.priorityScore(safety, float64(track.Confidence), band)
		if score < s.cfg.MinActionScore {
			debugf("track %s: score %.2f below %.2f", track.TrackID, score, s.cfg.MinActionScore)
			continue
		}
		cands = append(cands, candidate{track: track, score: score})
	}

	// Equal scores fall back to creation order so the plan is reproducible
	// for identical input.
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].track.CreatedSeq < cands[j].track.CreatedSeq
	})

	paths := make([]SwipePath, 0, s.cfg.MaxActionsPerCycle)
	slot := now.Add(s.cfg.DispatchLead)
	for _, cand := range cands {
		if len(paths) == s.cfg.MaxActionsPerCycle {
			break
		}
		arrival := slot.Add(dur / 2)
		pt := s.predictor.Predict(cand.track, arrival)
		path, ok := s.planPath(cand.track, pt, s.hazardPositions(hazards, arrival), slot, dur, rapid)
		if !ok {
			debugf("track %s: cut rejected at planning (score %.2f)", cand.track.TrackID, cand.score)
			continue
		}
		paths = append(paths, path)
		_, winEnd := path.Window()
		s.lastTrackSwipe[path.TrackID] = winEnd
		slot = winEnd
	}

	if len(paths) > 0 {
		_, end := paths[len(paths)-1].Window()
		s.lastSwipeAt = end
	}
	return paths
}

// actionableLocked reports whether a track may be considered for targeting
// at all: confirmed, a target class and not a hazard class, confident
// enough, and off its per-track cooldown.
func (s *Strategy) actionableLocked(track *s3tracks.Track, now time.Time, trackCd time.Duration) bool {
	if track.State != s3tracks.TrackConfirmed {
		return false
	}
	if _, ok := s.hazardSet[track.Class]; ok {
		return false
	}
	if _, ok := s.targetSet[track.Class]; !ok {
		return false
	}
	if float64(track.Confidence) < s.cfg.MinConfidence {
		return false
	}
	if last, ok := s.lastTrackSwipe[track.TrackID]; ok && now.Sub(last) < trackCd {
		return false
	}
	return true
}

// bandScore rates a vertical position inside the height band, peaking at
// the configured optimum. ok is false outside [BandLow, BandHigh].
func (s *Strategy) bandScore(y float64) (score float64, ok bool) {
	h := y / s.cfg.RegionH
	if h < s.cfg.BandLow || h > s.cfg.BandHigh {
		return 0, false
	}
	return 1 - math.Abs(h-s.cfg.BandOptimum), true
}

// safetyScore rates how dangerous it is to cut through pt. A hazard inside
// the hard-zero box kills the candidate outright; otherwise the nearest
// hazard degrades safety linearly within hazardFalloffPx.
func (s *Strategy) safetyScore(pt arcade.Point, hazards []arcade.Point) float64 {
	safety := 1.0
	for _, hz := range hazards {
		if math.Abs(pt.X-hz.X) < s.cfg.SafetyDistancePx &&
			math.Abs(pt.Y-hz.Y) < s.cfg.SafetyVerticalPx {
			return 0
		}
		if d := pt.DistTo(hz) / hazardFalloffPx; d < safety {
			safety = d
		}
	}
	return safety
}

// priorityScore combines the factor scores under the configured weights.
// Factors live in [0,1], so exponent weights keep products comparable
// across configurations.
func (s *Strategy) priorityScore(safety, confidence, band float64) float64 {
	return math.Pow(safety, s.cfg.WeightSafety) *
		math.Pow(confidence, s.cfg.WeightConfidence) *
		math.Pow(band, s.cfg.WeightBand)
}

// planPath lays a horizontal cut through pt, pulled short of any hazard
// inside the corridor. ok is false when the remaining cut is too short or
// would leave the play region; rejected cuts are never clamped back inside.
func (s *Strategy) planPath(track *s3tracks.Track, pt arcade.Point, hazards []arcade.Point, notBefore time.Time, dur time.Duration, rapid bool) (SwipePath, bool) {
	startX := pt.X - s.cfg.SwipeHalfLengthPx
	endX := pt.X + s.cfg.SwipeHalfLengthPx
	for _, hz := range hazards {
		if math.Abs(hz.Y-pt.Y) >= s.cfg.HazardCorridorYPx {
			continue
		}
		dx := hz.X - pt.X
		if math.Abs(dx) >= s.cfg.HazardCorridorXPx {
			continue
		}
		if dx <= 0 {
			if lim := hz.X + s.cfg.HazardStopShortPx; lim > startX {
				startX = lim
			}
		} else {
			if lim := hz.X - s.cfg.HazardStopShortPx; lim < endX {
				endX = lim
			}
		}
	}
	if endX-startX < s.cfg.MinSwipeLengthPx {
		return SwipePath{}, false
	}
	if startX < 0 || endX > s.cfg.RegionW || pt.Y < 0 || pt.Y > s.cfg.RegionH {
		return SwipePath{}, false
	}
	return SwipePath{
		TrackID:   track.TrackID,
		Start:     arcade.Point{X: startX, Y: pt.Y},
		End:       arcade.Point{X: endX, Y: pt.Y},
		Duration:  dur,
		NotBefore: notBefore,
		RapidFire: rapid,
	}, true
}

// hazardPositions predicts every hazard track's position at the given
// instant. Hazards move too; safety is judged where they will be when the
// cut lands, not where they were last seen.
func (s *Strategy) hazardPositions(hazards []*s3tracks.Track, at time.Time) []arcade.Point {
	if len(hazards) == 0 {
		return nil
	}
	pts := make([]arcade.Point, len(hazards))
	for i, hz := range hazards {
		pts[i] = s.predictor.Predict(hz, at)
	}
	return pts
}

// updateRapidFireLocked opens or closes the rapid-fire window. An object
// that has been sliced several times yet persists on screen is a
// multi-slice bonus target; while the window is open, cooldowns shrink by
// RapidFireCdScale and cut durations by RapidFireDurScale.
func (s *Strategy) updateRapidFireLocked(tracks []*s3tracks.Track, now time.Time) {
	if !s.rapidUntil.IsZero() && now.After(s.rapidUntil) {
		debugf("rapid-fire window closed")
		s.rapidUntil = time.Time{}
	}
	if !s.rapidUntil.IsZero() {
		return
	}
	for _, track := range tracks {
		if _, ok := s.targetSet[track.Class]; !ok {
			continue
		}
		if track.SwipeCount < s.cfg.RapidFireMinSlices {
			continue
		}
		if now.Sub(track.CreatedAt) <= s.cfg.RapidFirePersistence {
			continue
		}
		s.rapidUntil = now.Add(s.cfg.RapidFireWindow)
		debugf("rapid-fire window opened by %s (%d slices, alive %s)",
			track.TrackID, track.SwipeCount, now.Sub(track.CreatedAt).Round(time.Millisecond))
		return
	}
}

// pruneCooldownsLocked drops per-track cooldown entries old enough that
// they can no longer gate anything; without it the map would grow by one
// entry per retired track.
func (s *Strategy) pruneCooldownsLocked(now time.Time) {
	for id, t := range s.lastTrackSwipe {
		if now.Sub(t) > s.cfg.TrackCooldown {
			delete(s.lastTrackSwipe, id)
		}
	}
}
