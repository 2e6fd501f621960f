package db

import (
	"fmt"
)

// SwipeRecord is one dispatched swipe as persisted for later analysis.
// LatencyMs is the plan-to-dispatch delay and is nil for swipes recorded
// before dispatch confirmation.
type SwipeRecord struct {
	ID          int64    `json:"id"`
	SessionID   int64    `json:"session_id"`
	TrackID     string   `json:"track_id"`
	StartX      float64  `json:"start_x"`
	StartY      float64  `json:"start_y"`
	EndX        float64  `json:"end_x"`
	EndY        float64  `json:"end_y"`
	DurationMs  float64  `json:"duration_ms"`
	RapidFire   bool     `json:"rapid_fire"`
	PlannedUnix float64  `json:"planned_unix"`
	LatencyMs   *float64 `json:"latency_ms"`
}

// RecordSwipe persists a dispatched swipe and fills in its ID
func (db *DB) RecordSwipe(swipe *SwipeRecord) error {
	query := `
		INSERT INTO swipes (
			session_id, track_id, start_x, start_y, end_x, end_y,
			duration_ms, rapid_fire, planned_unix, latency_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	rapidFireInt := 0
	if swipe.RapidFire {
		rapidFireInt = 1
	}

	result, err := db.DB.Exec(
		query,
		swipe.SessionID,
		swipe.TrackID,
		swipe.StartX,
		swipe.StartY,
		swipe.EndX,
		swipe.EndY,
		swipe.DurationMs,
		rapidFireInt,
		swipe.PlannedUnix,
		swipe.LatencyMs,
	)
	if err != nil {
		return fmt.Errorf("failed to record swipe: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	swipe.ID = id
	return nil
}

// SessionSwipes retrieves all swipes for a session in dispatch order
func (db *DB) SessionSwipes(sessionID int64) ([]SwipeRecord, error) {
	query := `
		SELECT
			id, session_id, track_id, start_x, start_y, end_x, end_y,
			duration_ms, rapid_fire, planned_unix, latency_ms
		FROM swipes
		WHERE session_id = ?
		ORDER BY id ASC
	`

	rows, err := db.DB.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query swipes: %w", err)
	}
	defer rows.Close()

	var swipes []SwipeRecord
	for rows.Next() {
		var swipe SwipeRecord
		var rapidFireInt int

		err := rows.Scan(
			&swipe.ID,
			&swipe.SessionID,
			&swipe.TrackID,
			&swipe.StartX,
			&swipe.StartY,
			&swipe.EndX,
			&swipe.EndY,
			&swipe.DurationMs,
			&rapidFireInt,
			&swipe.PlannedUnix,
			&swipe.LatencyMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan swipe: %w", err)
		}

		swipe.RapidFire = rapidFireInt == 1
		swipes = append(swipes, swipe)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating swipes: %w", err)
	}

	return swipes, nil
}

// SwipeLatencyStats returns the count of latency-confirmed swipes for a
// session and their mean plan-to-dispatch latency in milliseconds
func (db *DB) SwipeLatencyStats(sessionID int64) (int64, float64, error) {
	query := `
		SELECT COUNT(latency_ms), COALESCE(AVG(latency_ms), 0)
		FROM swipes
		WHERE session_id = ?
	`

	var count int64
	var avgMs float64
	if err := db.DB.QueryRow(query, sessionID).Scan(&count, &avgMs); err != nil {
		return 0, 0, fmt.Errorf("failed to get swipe latency stats: %w", err)
	}

	return count, avgMs, nil
}
