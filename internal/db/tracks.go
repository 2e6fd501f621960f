package db

import (
	"fmt"
)

// TrackRecord is the persisted summary of one track's lifetime,
// written when the tracker retires the track.
type TrackRecord struct {
	ID            int64   `json:"id"`
	SessionID     int64   `json:"session_id"`
	TrackID       string  `json:"track_id"`
	Class         string  `json:"class"`
	FirstSeenUnix float64 `json:"first_seen_unix"`
	LastSeenUnix  float64 `json:"last_seen_unix"`
	Observations  int64   `json:"observations"`
	MaxConfidence float64 `json:"max_confidence"`
	Sliced        bool    `json:"sliced"`
}

// Observation is one smoothed track state at one frame
type Observation struct {
	ID         int64   `json:"id"`
	SessionID  int64   `json:"session_id"`
	TrackID    string  `json:"track_id"`
	FrameSeq   uint64  `json:"frame_seq"`
	TsUnix     float64 `json:"ts_unix"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	VX         float64 `json:"vx"`
	VY         float64 `json:"vy"`
	Confidence float64 `json:"confidence"`
}

// CreateTrackRecord persists a retired track's summary and fills in its ID
func (db *DB) CreateTrackRecord(track *TrackRecord) error {
	query := `
		INSERT INTO tracks (
			session_id, track_id, class,
			first_seen_unix, last_seen_unix, observations, max_confidence, sliced
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	slicedInt := 0
	if track.Sliced {
		slicedInt = 1
	}

	result, err := db.DB.Exec(
		query,
		track.SessionID,
		track.TrackID,
		track.Class,
		track.FirstSeenUnix,
		track.LastSeenUnix,
		track.Observations,
		track.MaxConfidence,
		slicedInt,
	)
	if err != nil {
		return fmt.Errorf("failed to create track record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	track.ID = id
	return nil
}

// SessionTracks retrieves all track records for a session in retirement order
func (db *DB) SessionTracks(sessionID int64) ([]TrackRecord, error) {
	query := `
		SELECT
			id, session_id, track_id, class,
			first_seen_unix, last_seen_unix, observations, max_confidence, sliced
		FROM tracks
		WHERE session_id = ?
		ORDER BY id ASC
	`

	rows, err := db.DB.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []TrackRecord
	for rows.Next() {
		var track TrackRecord
		var slicedInt int

		err := rows.Scan(
			&track.ID,
			&track.SessionID,
			&track.TrackID,
			&track.Class,
			&track.FirstSeenUnix,
			&track.LastSeenUnix,
			&track.Observations,
			&track.MaxConfidence,
			&slicedInt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}

		track.Sliced = slicedInt == 1
		tracks = append(tracks, track)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracks: %w", err)
	}

	return tracks, nil
}

// InsertObservations writes a batch of observations in a single transaction.
// IDs are not filled in; observations are only ever read back in bulk.
func (db *DB) InsertObservations(observations []Observation) error {
	if len(observations) == 0 {
		return nil
	}

	tx, err := db.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO observations (
			session_id, track_id, frame_seq, ts_unix,
			x, y, vx, vy, confidence
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare observation insert: %w", err)
	}
	defer stmt.Close()

	for _, obs := range observations {
		_, err := stmt.Exec(
			obs.SessionID,
			obs.TrackID,
			obs.FrameSeq,
			obs.TsUnix,
			obs.X,
			obs.Y,
			obs.VX,
			obs.VY,
			obs.Confidence,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit observations: %w", err)
	}

	return nil
}

// TrackObservations retrieves one track's observations in frame order
func (db *DB) TrackObservations(sessionID int64, trackID string) ([]Observation, error) {
	query := `
		SELECT
			id, session_id, track_id, frame_seq, ts_unix,
			x, y, vx, vy, confidence
		FROM observations
		WHERE session_id = ? AND track_id = ?
		ORDER BY frame_seq ASC
	`

	rows, err := db.DB.Query(query, sessionID, trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var observations []Observation
	for rows.Next() {
		var obs Observation
		err := rows.Scan(
			&obs.ID,
			&obs.SessionID,
			&obs.TrackID,
			&obs.FrameSeq,
			&obs.TsUnix,
			&obs.X,
			&obs.Y,
			&obs.VX,
			&obs.VY,
			&obs.Confidence,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}

		observations = append(observations, obs)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observations: %w", err)
	}

	return observations, nil
}

// SessionObservationCount returns the number of observations stored for a session
func (db *DB) SessionObservationCount(sessionID int64) (int64, error) {
	var count int64
	err := db.DB.QueryRow(
		`SELECT COUNT(*) FROM observations WHERE session_id = ?`, sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return count, nil
}
