package db

import (
	"database/sql"
	"fmt"
)

// ParamRun is one tracker parameter evaluation over a recorded feed.
// ParamsJSON holds the parameter set as serialized by the sweep runner;
// EndedUnix and Objective stay nil until the run completes.
type ParamRun struct {
	ID              int64    `json:"id"`
	SweepName       string   `json:"sweep_name"`
	ReplayPath      string   `json:"replay_path"`
	ParamsJSON      string   `json:"params_json"`
	StartedUnix     float64  `json:"started_unix"`
	EndedUnix       *float64 `json:"ended_unix"`
	Frames          int64    `json:"frames"`
	TracksConfirmed int64    `json:"tracks_confirmed"`
	IDSwitches      int64    `json:"id_switches"`
	Misses          int64    `json:"misses"`
	Objective       *float64 `json:"objective"`
}

// CreateParamRun inserts a new parameter run and fills in its ID
func (db *DB) CreateParamRun(run *ParamRun) error {
	query := `
		INSERT INTO param_runs (
			sweep_name, replay_path, params_json, started_unix
		) VALUES (?, ?, ?, ?)
	`

	result, err := db.DB.Exec(
		query,
		run.SweepName,
		run.ReplayPath,
		run.ParamsJSON,
		run.StartedUnix,
	)
	if err != nil {
		return fmt.Errorf("failed to create param run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	run.ID = id
	return nil
}

// CompleteParamRun records a finished run's counters and objective score
func (db *DB) CompleteParamRun(id int64, endedUnix float64, frames, tracksConfirmed, idSwitches, misses int64, objective float64) error {
	query := `
		UPDATE param_runs SET
			ended_unix = ?,
			frames = ?,
			tracks_confirmed = ?,
			id_switches = ?,
			misses = ?,
			objective = ?
		WHERE id = ?
	`

	result, err := db.DB.Exec(query, endedUnix, frames, tracksConfirmed, idSwitches, misses, objective, id)
	if err != nil {
		return fmt.Errorf("failed to complete param run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("param run not found")
	}

	return nil
}

// GetParamRun retrieves a parameter run by ID
func (db *DB) GetParamRun(id int64) (*ParamRun, error) {
	query := `
		SELECT
			id, sweep_name, replay_path, params_json, started_unix,
			ended_unix, frames, tracks_confirmed, id_switches, misses, objective
		FROM param_runs
		WHERE id = ?
	`

	var run ParamRun
	err := db.DB.QueryRow(query, id).Scan(
		&run.ID,
		&run.SweepName,
		&run.ReplayPath,
		&run.ParamsJSON,
		&run.StartedUnix,
		&run.EndedUnix,
		&run.Frames,
		&run.TracksConfirmed,
		&run.IDSwitches,
		&run.Misses,
		&run.Objective,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("param run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get param run: %w", err)
	}

	return &run, nil
}

// BestParamRuns retrieves a sweep's completed runs ranked by objective,
// best first
func (db *DB) BestParamRuns(sweepName string, limit int) ([]ParamRun, error) {
	query := `
		SELECT
			id, sweep_name, replay_path, params_json, started_unix,
			ended_unix, frames, tracks_confirmed, id_switches, misses, objective
		FROM param_runs
		WHERE sweep_name = ? AND objective IS NOT NULL
		ORDER BY objective DESC
		LIMIT ?
	`

	rows, err := db.DB.Query(query, sweepName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query param runs: %w", err)
	}
	defer rows.Close()

	var runs []ParamRun
	for rows.Next() {
		var run ParamRun
		err := rows.Scan(
			&run.ID,
			&run.SweepName,
			&run.ReplayPath,
			&run.ParamsJSON,
			&run.StartedUnix,
			&run.EndedUnix,
			&run.Frames,
			&run.TracksConfirmed,
			&run.IDSwitches,
			&run.Misses,
			&run.Objective,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan param run: %w", err)
		}

		runs = append(runs, run)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating param runs: %w", err)
	}

	return runs, nil
}
