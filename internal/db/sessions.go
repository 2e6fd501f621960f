package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned by GetSession for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// Session end reasons recorded in sessions.end_reason.
const (
	EndReasonGameOver = "game_over"
	EndReasonFeedEnd  = "feed_end"
	EndReasonCanceled = "canceled"
	EndReasonFault    = "fault"
)

// Session represents one bot run from start to termination
type Session struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Feed        string   `json:"feed"`
	Injector    string   `json:"injector"`
	RegionW     float64  `json:"region_w"`
	RegionH     float64  `json:"region_h"`
	StartedUnix float64  `json:"started_unix"`
	EndedUnix   *float64 `json:"ended_unix"`
	EndReason   *string  `json:"end_reason"`
	Frames      int64    `json:"frames"`
	Cycles      int64    `json:"cycles"`
	Swipes      int64    `json:"swipes"`
}

// CreateSession inserts a new session row and fills in its ID
func (db *DB) CreateSession(session *Session) error {
	query := `
		INSERT INTO sessions (
			name, feed, injector, region_w, region_h, started_unix
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := db.DB.Exec(
		query,
		session.Name,
		session.Feed,
		session.Injector,
		session.RegionW,
		session.RegionH,
		session.StartedUnix,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	session.ID = id
	return nil
}

// EndSession closes out a session with its termination reason and final counters
func (db *DB) EndSession(id int64, endedUnix float64, reason string, frames, cycles, swipes int64) error {
	query := `
		UPDATE sessions SET
			ended_unix = ?,
			end_reason = ?,
			frames = ?,
			cycles = ?,
			swipes = ?
		WHERE id = ?
	`

	result, err := db.DB.Exec(query, endedUnix, reason, frames, cycles, swipes, id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session not found")
	}

	return nil
}

// GetSession retrieves a session by ID
func (db *DB) GetSession(id int64) (*Session, error) {
	query := `
		SELECT
			id, name, feed, injector, region_w, region_h,
			started_unix, ended_unix, end_reason, frames, cycles, swipes
		FROM sessions
		WHERE id = ?
	`

	var session Session
	err := db.DB.QueryRow(query, id).Scan(
		&session.ID,
		&session.Name,
		&session.Feed,
		&session.Injector,
		&session.RegionW,
		&session.RegionH,
		&session.StartedUnix,
		&session.EndedUnix,
		&session.EndReason,
		&session.Frames,
		&session.Cycles,
		&session.Swipes,
	)

	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

// ListSessions retrieves the most recent sessions, newest first
func (db *DB) ListSessions(limit int) ([]Session, error) {
	query := `
		SELECT
			id, name, feed, injector, region_w, region_h,
			started_unix, ended_unix, end_reason, frames, cycles, swipes
		FROM sessions
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := db.DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var session Session
		err := rows.Scan(
			&session.ID,
			&session.Name,
			&session.Feed,
			&session.Injector,
			&session.RegionW,
			&session.RegionH,
			&session.StartedUnix,
			&session.EndedUnix,
			&session.EndReason,
			&session.Frames,
			&session.Cycles,
			&session.Swipes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		sessions = append(sessions, session)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}
