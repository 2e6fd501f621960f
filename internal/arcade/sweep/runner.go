package sweep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/slicebot/slicebot/internal/arcade"
	"github.com/slicebot/slicebot/internal/arcade/s1frames"
	"github.com/slicebot/slicebot/internal/arcade/s2detections"
	"github.com/slicebot/slicebot/internal/arcade/s3tracks"
	"github.com/slicebot/slicebot/internal/arcade/s4motion"
	"github.com/slicebot/slicebot/internal/arcade/s5targets"
	"github.com/slicebot/slicebot/internal/db"
)

// minHitRadiusPx floors the slice hit test for tracks whose smoothed
// extent has not settled yet.
const minHitRadiusPx = 16.0

// RunnerConfig configures a sweep over one recorded feed.
type RunnerConfig struct {
	// ReplayPath is the JSONL feed recording every combination replays.
	// ExtraDirs widens the directories the path may live in beyond the
	// working and temp directories.
	ReplayPath string
	ExtraDirs  []string

	// Region is the play region detections are validated against.
	Region arcade.Rect

	// BaseTracker supplies every tracker field a ParamSet does not vary.
	BaseTracker s3tracks.TrackerConfig

	// Strategy and Predictor configure the targeting half of the replay.
	// They stay fixed across combinations so score differences isolate
	// the tracker parameters.
	Strategy  s5targets.Config
	Predictor s4motion.Config

	// Validator gates. Zero values accept every in-region detection.
	MinConfidence float64
	MinBoxAreaPx  float64

	// Weights scores each run; the zero value means default weights.
	Weights ObjectiveWeights

	// SweepName groups this sweep's rows in the param_runs table.
	SweepName string

	// DB receives one param_runs row per combination when set.
	DB *db.DB

	// Progress, when set, is called after each combination completes.
	Progress func(done, total int, res ScoredResult)
}

// Report is the outcome of a sweep: every combination scored and ranked
// best first, with distribution statistics across the grid.
type Report struct {
	SweepName  string           `json:"sweep_name"`
	ReplayPath string           `json:"replay_path"`
	Weights    ObjectiveWeights `json:"weights"`
	Results    []ScoredResult   `json:"results"`
	Summary    Summary          `json:"summary"`
}

// Best returns the top-ranked result, or nil for an empty report.
func (r *Report) Best() *ScoredResult {
	if len(r.Results) == 0 {
		return nil
	}
	return &r.Results[0]
}

// Runner replays a recorded feed once per parameter combination and
// scores the outcomes. A Runner is single-use state-free: all state
// lives in the per-combination replay.
type Runner struct {
	cfg RunnerConfig
}

// NewRunner creates a sweep runner. Zero weights become the defaults and
// an empty sweep name becomes "adhoc".
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Weights == (ObjectiveWeights{}) {
		cfg.Weights = DefaultObjectiveWeights()
	}
	if cfg.SweepName == "" {
		cfg.SweepName = "adhoc"
	}
	return &Runner{cfg: cfg}
}

// Run expands the grid around the baseline tracker configuration,
// replays every combination, and returns the ranked report. The context
// is honoured between frames, so cancellation aborts mid-replay.
func (r *Runner) Run(ctx context.Context, grid Grid) (*Report, error) {
	if r.cfg.ReplayPath == "" {
		return nil, errors.New("replay path required")
	}
	if r.cfg.Region.W <= 0 || r.cfg.Region.H <= 0 {
		return nil, errors.New("play region required")
	}

	combos, err := grid.Combos(ParamSetFromTracker(r.cfg.BaseTracker))
	if err != nil {
		return nil, fmt.Errorf("expand grid: %w", err)
	}
	debugf("sweep %q: %d combinations over %s", r.cfg.SweepName, len(combos), r.cfg.ReplayPath)

	results := make([]RunResult, 0, len(combos))
	for i, params := range combos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var runID int64
		if r.cfg.DB != nil {
			paramsJSON, err := json.Marshal(params)
			if err != nil {
				return nil, fmt.Errorf("encode params: %w", err)
			}
			run := &db.ParamRun{
				SweepName:   r.cfg.SweepName,
				ReplayPath:  r.cfg.ReplayPath,
				ParamsJSON:  string(paramsJSON),
				StartedUnix: unixSeconds(time.Now()),
			}
			if err := r.cfg.DB.CreateParamRun(run); err != nil {
				return nil, fmt.Errorf("record combo %d: %w", i+1, err)
			}
			runID = run.ID
		}

		res, err := r.runCombo(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("combo %d/%d (%s): %w", i+1, len(combos), params, err)
		}
		score := ScoreResult(res, r.cfg.Weights)
		debugf("combo %d/%d (%s): score=%.3f cut=%d hazards=%d frag=%.2f",
			i+1, len(combos), params, score, res.FruitsCut, res.HazardsHit, res.FragmentationRatio)

		if r.cfg.DB != nil {
			// id_switches carries the identity-churn proxy: tracks that
			// spawned without ever confirming.
			churn := int64(res.TracksCreated - res.TracksConfirmed)
			err := r.cfg.DB.CompleteParamRun(runID, unixSeconds(time.Now()),
				res.Frames, int64(res.TracksConfirmed), churn, res.UnmatchedDetections, score)
			if err != nil {
				return nil, fmt.Errorf("complete combo %d: %w", i+1, err)
			}
		}

		results = append(results, res)
		if r.cfg.Progress != nil {
			r.cfg.Progress(i+1, len(combos), ScoredResult{RunResult: res, Score: score})
		}
	}

	ranked := RankResults(results, r.cfg.Weights)
	return &Report{
		SweepName:  r.cfg.SweepName,
		ReplayPath: r.cfg.ReplayPath,
		Weights:    r.cfg.Weights,
		Results:    ranked,
		Summary:    Summarize(ranked),
	}, nil
}

// runCombo replays the full recording through a fresh validator, tracker
// and strategy built for one parameter set. Planned swipes execute when
// frame time passes their window: each one credits the targeted track's
// swipe count and hit-tests every live track against the stroke, so a
// mis-tuned tracker whose forecasts drift loses cuts it planned.
func (r *Runner) runCombo(ctx context.Context, params ParamSet) (RunResult, error) {
	src, err := s1frames.NewReplaySource(r.cfg.ReplayPath, nil, 0, r.cfg.ExtraDirs...)
	if err != nil {
		return RunResult{}, err
	}
	defer src.Close()

	tracker := s3tracks.NewTracker(params.Apply(r.cfg.BaseTracker))
	validator := s2detections.NewValidator(s2detections.ValidatorConfig{
		Region:        r.cfg.Region,
		MinConfidence: r.cfg.MinConfidence,
		MinBoxAreaPx:  r.cfg.MinBoxAreaPx,
	})
	strategy := s5targets.NewStrategy(r.cfg.Strategy, s4motion.NewPredictor(r.cfg.Predictor))
	policy := s2detections.NewClassPolicy(r.cfg.Strategy.TargetClasses, r.cfg.Strategy.HazardClasses)

	res := RunResult{Params: params}
	cut := make(map[string]bool)
	var pending []s5targets.SwipePath

	for {
		frame, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return RunResult{}, fmt.Errorf("replay: %w", err)
		}

		pending = r.executeDue(pending, frame.Timestamp, tracker, policy, cut, &res)

		valid, _ := validator.Validate(frame.Detections)
		live := tracker.Update(valid, frame.Timestamp)
		paths := strategy.Select(live, frame.Timestamp)

		pending = append(pending, paths...)
		res.PlannedSwipes += len(paths)
		res.Frames++
		res.Detections += int64(len(valid))
	}

	// The live engine dispatches planned paths within their own cycle, so
	// paths still pending at feed end execute against the final state.
	for _, path := range pending {
		r.executePath(path, tracker, policy, cut, &res)
	}

	m := tracker.GetTrackingMetrics()
	res.TracksCreated = m.TracksCreated
	res.TracksConfirmed = m.TracksConfirmed
	res.TracksRetired = m.TracksRetired
	res.FragmentationRatio = m.FragmentationRatio
	res.AssociationRatio = m.AssociationRatio
	res.UnmatchedDetections = m.TotalDetections - m.MatchedDetections
	return res, nil
}

// executeDue runs every pending path whose execution window has closed
// by now and returns the paths still waiting.
func (r *Runner) executeDue(pending []s5targets.SwipePath, now time.Time, tracker *s3tracks.Tracker, policy s2detections.ClassPolicy, cut map[string]bool, res *RunResult) []s5targets.SwipePath {
	kept := pending[:0]
	for _, path := range pending {
		if _, end := path.Window(); end.After(now) {
			kept = append(kept, path)
			continue
		}
		r.executePath(path, tracker, policy, cut, res)
	}
	return kept
}

// executePath simulates one stroke: the targeted track takes the swipe,
// and every live track lying within its own half-extent of the stroke
// segment counts as sliced. Targets are credited once per track life;
// hazard contacts count every time.
func (r *Runner) executePath(path s5targets.SwipePath, tracker *s3tracks.Tracker, policy s2detections.ClassPolicy, cut map[string]bool, res *RunResult) {
	tracker.RecordSwipe(path.TrackID)

	for _, track := range tracker.GetActiveTracks() {
		radius := math.Max(track.W, track.H) / 2
		if radius < minHitRadiusPx {
			radius = minHitRadiusPx
		}
		pos := arcade.Point{X: track.X, Y: track.Y}
		if pointSegmentDistance(pos, path.Start, path.End) > radius {
			continue
		}
		switch {
		case policy.IsHazard(track.Class):
			res.HazardsHit++
		case policy.IsTarget(track.Class):
			if !cut[track.TrackID] {
				cut[track.TrackID] = true
				res.FruitsCut++
			}
		}
	}
}

// pointSegmentDistance returns the distance from pt to the closest point
// on segment ab.
func pointSegmentDistance(pt, a, b arcade.Point) float64 {
	abx := b.X - a.X
	aby := b.Y - a.Y
	lenSq := abx*abx + aby*aby
	if lenSq == 0 {
		return pt.DistTo(a)
	}
	t := ((pt.X-a.X)*abx + (pt.Y-a.Y)*aby) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return pt.DistTo(arcade.Point{X: a.X + t*abx, Y: a.Y + t*aby})
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
