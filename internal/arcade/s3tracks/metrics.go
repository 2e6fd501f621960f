package s3tracks

// TrackingMetrics summarises tracker health for stats logging and the
// parameter sweep objective.
type TrackingMetrics struct {
	ActiveTracks    int `json:"active_tracks"`
	TentativeTracks int `json:"tentative_tracks"`
	ConfirmedTracks int `json:"confirmed_tracks"`

	TracksCreated   int `json:"tracks_created"`
	TracksConfirmed int `json:"tracks_confirmed"`
	TracksRetired   int `json:"tracks_retired"`

	// FragmentationRatio is the fraction of created tracks that never
	// confirmed. High values mean the tracker is spawning short-lived
	// duplicates instead of holding identity.
	FragmentationRatio float64 `json:"fragmentation_ratio"`

	TotalDetections   int64 `json:"total_detections"`
	MatchedDetections int64 `json:"matched_detections"`

	// AssociationRatio is the fraction of validated detections matched to
	// an existing track rather than spawning a new one.
	AssociationRatio float64 `json:"association_ratio"`
}

// GetTrackingMetrics computes aggregate tracker metrics across all tracks.
// Used by the stats logger and the sweep tool to evaluate tracking
// parameter configurations.
func (t *Tracker) GetTrackingMetrics() TrackingMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	metrics := TrackingMetrics{
		TracksCreated:     t.TracksCreated,
		TracksConfirmed:   t.TracksConfirmed,
		TracksRetired:     t.TracksRetired,
		TotalDetections:   t.TotalDetections,
		MatchedDetections: t.MatchedDetections,
	}

	for _, track := range t.tracks {
		switch track.State {
		case TrackTentative:
			metrics.ActiveTracks++
			metrics.TentativeTracks++
		case TrackConfirmed:
			metrics.ActiveTracks++
			metrics.ConfirmedTracks++
		}
	}

	if t.TracksCreated > 0 {
		metrics.FragmentationRatio = 1.0 - float64(t.TracksConfirmed)/float64(t.TracksCreated)
	}
	if t.TotalDetections > 0 {
		metrics.AssociationRatio = float64(t.MatchedDetections) / float64(t.TotalDetections)
	}

	return metrics
}
