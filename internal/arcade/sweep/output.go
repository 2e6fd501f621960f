package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// csvHeader is the column layout WriteReportCSV emits, one row per
// ranked combination.
var csvHeader = []string{
	"rank", "score",
	"gating_distance_squared", "process_noise_pos", "process_noise_vel",
	"measurement_noise", "hits_to_confirm", "max_misses",
	"frames", "detections",
	"tracks_created", "tracks_confirmed", "tracks_retired",
	"fragmentation_ratio", "association_ratio", "unmatched_detections",
	"planned_swipes", "fruits_cut", "hazards_hit",
}

// WriteReportCSV writes the report's ranked results as CSV.
func WriteReportCSV(w io.Writer, report *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range report.Results {
		row := []string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%.6f", r.Score),
			fmt.Sprintf("%.6f", r.Params.GatingDistanceSquared),
			fmt.Sprintf("%.6f", r.Params.ProcessNoisePos),
			fmt.Sprintf("%.6f", r.Params.ProcessNoiseVel),
			fmt.Sprintf("%.6f", r.Params.MeasurementNoise),
			strconv.Itoa(r.Params.HitsToConfirm),
			strconv.Itoa(r.Params.MaxMisses),
			strconv.FormatInt(r.Frames, 10),
			strconv.FormatInt(r.Detections, 10),
			strconv.Itoa(r.TracksCreated),
			strconv.Itoa(r.TracksConfirmed),
			strconv.Itoa(r.TracksRetired),
			fmt.Sprintf("%.6f", r.FragmentationRatio),
			fmt.Sprintf("%.6f", r.AssociationRatio),
			strconv.FormatInt(r.UnmatchedDetections, 10),
			strconv.Itoa(r.PlannedSwipes),
			strconv.Itoa(r.FruitsCut),
			strconv.Itoa(r.HazardsHit),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
