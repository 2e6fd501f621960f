package sweep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slicebot/slicebot/internal/arcade/s3tracks"
)

func baseParams() ParamSet {
	return ParamSet{
		GatingDistanceSquared: 9.21,
		ProcessNoisePos:       10,
		ProcessNoiseVel:       120000,
		MeasurementNoise:      16,
		HitsToConfirm:         2,
		MaxMisses:             3,
	}
}

func TestGridCombos_EmptyGridYieldsBaseline(t *testing.T) {
	t.Parallel()

	combos, err := Grid{}.Combos(baseParams())
	require.NoError(t, err)
	require.Len(t, combos, 1)
	assert.Equal(t, baseParams(), combos[0])
}

func TestGridCombos_CartesianOrderDeterministic(t *testing.T) {
	t.Parallel()

	grid := Grid{
		Gate:          []float64{16, 25},
		HitsToConfirm: []int{2, 3},
	}
	combos, err := grid.Combos(baseParams())
	require.NoError(t, err)
	require.Len(t, combos, 4)

	// Gate varies slowest, hits fastest; unswept axes stay at baseline.
	want := []struct {
		gate    float64
		confirm int
	}{
		{16, 2}, {16, 3}, {25, 2}, {25, 3},
	}
	for i, w := range want {
		assert.Equal(t, w.gate, combos[i].GatingDistanceSquared, "combo %d", i)
		assert.Equal(t, w.confirm, combos[i].HitsToConfirm, "combo %d", i)
		assert.Equal(t, baseParams().MeasurementNoise, combos[i].MeasurementNoise, "combo %d", i)
		assert.Equal(t, baseParams().MaxMisses, combos[i].MaxMisses, "combo %d", i)
	}
}

func TestGridCombos_CapExceeded(t *testing.T) {
	t.Parallel()

	grid := Grid{
		Gate:            GenerateRange(1, 22, 1),
		ProcessNoisePos: GenerateRange(1, 22, 1),
		ProcessNoiseVel: GenerateRange(1, 22, 1),
	}
	_, err := grid.Combos(baseParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit is 10000")
}

func TestParamSetApply_PreservesUntouchedFields(t *testing.T) {
	t.Parallel()

	base := s3tracks.TrackerConfig{
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
		MaxTrackHistory:       30,
	}
	params := ParamSet{
		GatingDistanceSquared: 25,
		ProcessNoisePos:       50,
		ProcessNoiseVel:       90000,
		MeasurementNoise:      9,
		HitsToConfirm:         4,
		MaxMisses:             6,
	}

	got := params.Apply(base)
	assert.Equal(t, 25.0, got.GatingDistanceSquared)
	assert.Equal(t, 50.0, got.ProcessNoisePos)
	assert.Equal(t, 90000.0, got.ProcessNoiseVel)
	assert.Equal(t, 9.0, got.MeasurementNoise)
	assert.Equal(t, 4, got.HitsToConfirm)
	assert.Equal(t, 6, got.MaxMisses)

	assert.Equal(t, 64, got.MaxTracks)
	assert.Equal(t, 10, got.MaxMissesConfirmed)
	assert.Equal(t, 1.3, got.OcclusionInflation)
	assert.Equal(t, time.Second, got.MaxStaleness)
	assert.Equal(t, 30, got.MaxTrackHistory)
}

func TestParamSetFromTracker_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := s3tracks.DefaultTrackerConfig()
	params := ParamSetFromTracker(cfg)
	assert.Equal(t, cfg, params.Apply(cfg))
}

func TestParamSetString(t *testing.T) {
	t.Parallel()

	s := baseParams().String()
	assert.Contains(t, s, "gate=9.2")
	assert.Contains(t, s, "confirm=2")
	assert.Contains(t, s, "misses=3")
}
