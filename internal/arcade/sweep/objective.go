package sweep

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// RunResult holds the counters collected from replaying one parameter
// combination. Cut and hazard counts come from simulated swipe execution
// against the live track state; the tracking ratios come straight from
// the tracker's own metrics.
type RunResult struct {
	Params ParamSet `json:"params"`

	Frames     int64 `json:"frames"`
	Detections int64 `json:"detections"`

	TracksCreated       int     `json:"tracks_created"`
	TracksConfirmed     int     `json:"tracks_confirmed"`
	TracksRetired       int     `json:"tracks_retired"`
	FragmentationRatio  float64 `json:"fragmentation_ratio"`
	AssociationRatio    float64 `json:"association_ratio"`
	UnmatchedDetections int64   `json:"unmatched_detections"`

	PlannedSwipes int `json:"planned_swipes"`
	FruitsCut     int `json:"fruits_cut"`
	HazardsHit    int `json:"hazards_hit"`
}

// ObjectiveWeights defines weights for scoring a run. Minimisation terms
// (hazards, fragmentation, swipe spend) carry negative weights.
type ObjectiveWeights struct {
	FruitsCut     float64 `json:"fruits_cut"`
	HazardsHit    float64 `json:"hazards_hit"`
	Fragmentation float64 `json:"fragmentation"`
	Association   float64 `json:"association"`
	SwipeBudget   float64 `json:"swipe_budget"`
}

// DefaultObjectiveWeights returns the default scoring weights: cuts
// dominate, a hazard graze costs ten cuts, identity churn and swipe
// spam drag the score down.
func DefaultObjectiveWeights() ObjectiveWeights {
	return ObjectiveWeights{
		FruitsCut:     1.0,
		HazardsHit:    -10.0,
		Fragmentation: -3.0,
		Association:   2.0,
		SwipeBudget:   -0.05,
	}
}

// ScoreResult computes the scalar objective for one run.
func ScoreResult(r RunResult, w ObjectiveWeights) float64 {
	score := w.FruitsCut * float64(r.FruitsCut)
	score += w.HazardsHit * float64(r.HazardsHit)
	score += w.Fragmentation * r.FragmentationRatio
	score += w.Association * r.AssociationRatio
	score += w.SwipeBudget * float64(r.PlannedSwipes)
	return score
}

// ScoredResult pairs a RunResult with its objective score.
type ScoredResult struct {
	RunResult
	Score float64 `json:"score"`
}

// RankResults scores every result and returns them sorted best first.
// Equal scores keep their input order, so rankings are reproducible.
func RankResults(results []RunResult, w ObjectiveWeights) []ScoredResult {
	scored := make([]ScoredResult, len(results))
	for i, r := range results {
		scored[i] = ScoredResult{RunResult: r, Score: ScoreResult(r, w)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// Summary describes the score distribution across a sweep's combinations.
type Summary struct {
	Combos      int     `json:"combos"`
	ScoreMean   float64 `json:"score_mean"`
	ScoreStddev float64 `json:"score_stddev"`
	ScoreMedian float64 `json:"score_median"`
	ScoreP90    float64 `json:"score_p90"`
	BestScore   float64 `json:"best_score"`
	WorstScore  float64 `json:"worst_score"`
}

// Summarize computes distribution statistics over scored results.
func Summarize(results []ScoredResult) Summary {
	if len(results) == 0 {
		return Summary{}
	}

	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score
	}
	sort.Float64s(scores)

	s := Summary{
		Combos:      len(results),
		ScoreMean:   stat.Mean(scores, nil),
		ScoreMedian: stat.Quantile(0.5, stat.Empirical, scores, nil),
		ScoreP90:    stat.Quantile(0.9, stat.Empirical, scores, nil),
		BestScore:   scores[len(scores)-1],
		WorstScore:  scores[0],
	}
	if len(scores) > 1 {
		s.ScoreStddev = stat.StdDev(scores, nil)
	}
	return s
}
