package db

import (
	"fmt"
)

// CycleRecord captures the stage timing breakdown of one perception cycle
type CycleRecord struct {
	ID          int64   `json:"id"`
	SessionID   int64   `json:"session_id"`
	FrameSeq    uint64  `json:"frame_seq"`
	StartedUnix float64 `json:"started_unix"`
	DetectMs    float64 `json:"detect_ms"`
	TrackMs     float64 `json:"track_ms"`
	SelectMs    float64 `json:"select_ms"`
	ActMs       float64 `json:"act_ms"`
	TotalMs     float64 `json:"total_ms"`
	Detections  int64   `json:"detections"`
	LiveTracks  int64   `json:"live_tracks"`
	Planned     int64   `json:"planned"`
	Dispatched  int64   `json:"dispatched"`
}

// CycleStats aggregates cycle timings across a session
type CycleStats struct {
	Cycles      int64   `json:"cycles"`
	AvgTotalMs  float64 `json:"avg_total_ms"`
	MaxTotalMs  float64 `json:"max_total_ms"`
	AvgDetectMs float64 `json:"avg_detect_ms"`
	AvgTrackMs  float64 `json:"avg_track_ms"`
	AvgSelectMs float64 `json:"avg_select_ms"`
	AvgActMs    float64 `json:"avg_act_ms"`
	Detections  int64   `json:"detections"`
	Dispatched  int64   `json:"dispatched"`
}

// RecordCycle persists one cycle's timing record and fills in its ID
func (db *DB) RecordCycle(cycle *CycleRecord) error {
	query := `
		INSERT INTO cycles (
			session_id, frame_seq, started_unix,
			detect_ms, track_ms, select_ms, act_ms, total_ms,
			detections, live_tracks, planned, dispatched
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.DB.Exec(
		query,
		cycle.SessionID,
		cycle.FrameSeq,
		cycle.StartedUnix,
		cycle.DetectMs,
		cycle.TrackMs,
		cycle.SelectMs,
		cycle.ActMs,
		cycle.TotalMs,
		cycle.Detections,
		cycle.LiveTracks,
		cycle.Planned,
		cycle.Dispatched,
	)
	if err != nil {
		return fmt.Errorf("failed to record cycle: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	cycle.ID = id
	return nil
}

// RecentCycles retrieves the latest cycles for a session, newest first
func (db *DB) RecentCycles(sessionID int64, limit int) ([]CycleRecord, error) {
	query := `
		SELECT
			id, session_id, frame_seq, started_unix,
			detect_ms, track_ms, select_ms, act_ms, total_ms,
			detections, live_tracks, planned, dispatched
		FROM cycles
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := db.DB.Query(query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []CycleRecord
	for rows.Next() {
		var cycle CycleRecord
		err := rows.Scan(
			&cycle.ID,
			&cycle.SessionID,
			&cycle.FrameSeq,
			&cycle.StartedUnix,
			&cycle.DetectMs,
			&cycle.TrackMs,
			&cycle.SelectMs,
			&cycle.ActMs,
			&cycle.TotalMs,
			&cycle.Detections,
			&cycle.LiveTracks,
			&cycle.Planned,
			&cycle.Dispatched,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}

		cycles = append(cycles, cycle)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycles: %w", err)
	}

	return cycles, nil
}

// SessionCycleStats rolls up cycle timings for a session
func (db *DB) SessionCycleStats(sessionID int64) (*CycleStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(AVG(total_ms), 0),
			COALESCE(MAX(total_ms), 0),
			COALESCE(AVG(detect_ms), 0),
			COALESCE(AVG(track_ms), 0),
			COALESCE(AVG(select_ms), 0),
			COALESCE(AVG(act_ms), 0),
			COALESCE(SUM(detections), 0),
			COALESCE(SUM(dispatched), 0)
		FROM cycles
		WHERE session_id = ?
	`

	var stats CycleStats
	err := db.DB.QueryRow(query, sessionID).Scan(
		&stats.Cycles,
		&stats.AvgTotalMs,
		&stats.MaxTotalMs,
		&stats.AvgDetectMs,
		&stats.AvgTrackMs,
		&stats.AvgSelectMs,
		&stats.AvgActMs,
		&stats.Detections,
		&stats.Dispatched,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle stats: %w", err)
	}

	return &stats, nil
}
