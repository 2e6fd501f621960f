package sweep

import (
	"fmt"

	"github.com/slicebot/slicebot/internal/arcade/s3tracks"
)

// maxCombos caps the size of a parameter grid's cartesian product.
const maxCombos = 10000

// ParamSet is one tracker parameter combination under evaluation. The
// fields cover the association and lifecycle knobs that dominate tracking
// quality; everything else stays at the baseline configuration.
type ParamSet struct {
	GatingDistanceSquared float64 `json:"gating_distance_squared"`
	ProcessNoisePos       float64 `json:"process_noise_pos"`
	ProcessNoiseVel       float64 `json:"process_noise_vel"`
	MeasurementNoise      float64 `json:"measurement_noise"`
	HitsToConfirm         int     `json:"hits_to_confirm"`
	MaxMisses             int     `json:"max_misses"`
}

// ParamSetFromTracker extracts the swept fields of a tracker
// configuration as the sweep baseline.
func ParamSetFromTracker(cfg s3tracks.TrackerConfig) ParamSet {
	return ParamSet{
		GatingDistanceSquared: cfg.GatingDistanceSquared,
		ProcessNoisePos:       cfg.ProcessNoisePos,
		ProcessNoiseVel:       cfg.ProcessNoiseVel,
		MeasurementNoise:      cfg.MeasurementNoise,
		HitsToConfirm:         cfg.HitsToConfirm,
		MaxMisses:             cfg.MaxMisses,
	}
}

// Apply returns a copy of base with the swept fields replaced by this
// parameter set.
func (p ParamSet) Apply(base s3tracks.TrackerConfig) s3tracks.TrackerConfig {
	base.GatingDistanceSquared = p.GatingDistanceSquared
	base.ProcessNoisePos = p.ProcessNoisePos
	base.ProcessNoiseVel = p.ProcessNoiseVel
	base.MeasurementNoise = p.MeasurementNoise
	base.HitsToConfirm = p.HitsToConfirm
	base.MaxMisses = p.MaxMisses
	return base
}

// String renders the set compactly for progress lines and error context.
func (p ParamSet) String() string {
	return fmt.Sprintf("gate=%.1f qpos=%.1f qvel=%.1f r=%.1f confirm=%d misses=%d",
		p.GatingDistanceSquared, p.ProcessNoisePos, p.ProcessNoiseVel,
		p.MeasurementNoise, p.HitsToConfirm, p.MaxMisses)
}

// Grid defines the value axes of a sweep. An empty axis pins that field
// to its baseline value, so the zero Grid evaluates the baseline alone.
type Grid struct {
	Gate             []float64
	ProcessNoisePos  []float64
	ProcessNoiseVel  []float64
	MeasurementNoise []float64
	HitsToConfirm    []int
	MaxMisses        []int
}

// Combos expands the grid into the cartesian product of its axes around
// the given baseline. Combination order is deterministic: axes vary in
// declaration order with the last axis fastest. Errors when the product
// would exceed the combination cap.
func (g Grid) Combos(base ParamSet) ([]ParamSet, error) {
	gates := axisValues(g.Gate, base.GatingDistanceSquared)
	qpos := axisValues(g.ProcessNoisePos, base.ProcessNoisePos)
	qvel := axisValues(g.ProcessNoiseVel, base.ProcessNoiseVel)
	rs := axisValues(g.MeasurementNoise, base.MeasurementNoise)
	confirms := axisIntValues(g.HitsToConfirm, base.HitsToConfirm)
	misses := axisIntValues(g.MaxMisses, base.MaxMisses)

	total := len(gates) * len(qpos) * len(qvel) * len(rs) * len(confirms) * len(misses)
	if total > maxCombos {
		return nil, fmt.Errorf("grid expands to %d combinations, limit is %d", total, maxCombos)
	}

	combos := make([]ParamSet, 0, total)
	for _, gate := range gates {
		for _, qp := range qpos {
			for _, qv := range qvel {
				for _, r := range rs {
					for _, confirm := range confirms {
						for _, miss := range misses {
							combos = append(combos, ParamSet{
								GatingDistanceSquared: gate,
								ProcessNoisePos:       qp,
								ProcessNoiseVel:       qv,
								MeasurementNoise:      r,
								HitsToConfirm:         confirm,
								MaxMisses:             miss,
							})
						}
					}
				}
			}
		}
	}
	return combos, nil
}

func axisValues(values []float64, base float64) []float64 {
	if len(values) == 0 {
		return []float64{base}
	}
	return values
}

func axisIntValues(values []int, base int) []int {
	if len(values) == 0 {
		return []int{base}
	}
	return values
}
