package sqlite

import (
	"fmt"
	"time"

	"github.com/slicebot/slicebot/internal/arcade/pipeline"
	"github.com/slicebot/slicebot/internal/arcade/s3tracks"
	"github.com/slicebot/slicebot/internal/db"
)

// SessionSink implements pipeline.PersistenceSink over the session database.
// Every record it writes carries the id of the session row it was bound to
// at construction. Methods are safe for use from the engine's run loop; the
// underlying handle serializes writers.
type SessionSink struct {
	db        *db.DB
	sessionID int64
}

var _ pipeline.PersistenceSink = (*SessionSink)(nil)

// StartSession inserts the given session row and returns a sink bound to it.
// The row's ID is filled in by the insert.
func StartSession(database *db.DB, session *db.Session) (*SessionSink, error) {
	if err := database.CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return &SessionSink{db: database, sessionID: session.ID}, nil
}

// NewSessionSink binds a sink to an existing session row.
func NewSessionSink(database *db.DB, sessionID int64) *SessionSink {
	return &SessionSink{db: database, sessionID: sessionID}
}

// SessionID returns the id of the bound session row.
func (s *SessionSink) SessionID() int64 {
	return s.sessionID
}

// Finish closes out the bound session row with its end time, end reason and
// final counters. Call it once, after the engine's Run has returned.
func (s *SessionSink) Finish(at time.Time, reason string, frames, cycles, swipes uint64) error {
	return s.db.EndSession(s.sessionID, unixSeconds(at), reason, int64(frames), int64(cycles), int64(swipes))
}

// PersistCycle writes one cycle's stage timing breakdown.
func (s *SessionSink) PersistCycle(rec pipeline.CycleRecord) error {
	return s.db.RecordCycle(&db.CycleRecord{
		SessionID:   s.sessionID,
		FrameSeq:    rec.FrameSeq,
		StartedUnix: unixSeconds(rec.Started),
		DetectMs:    millis(rec.Detect),
		TrackMs:     millis(rec.Track),
		SelectMs:    millis(rec.Select),
		ActMs:       millis(rec.Act),
		TotalMs:     millis(rec.Total),
		Detections:  int64(rec.Detections),
		LiveTracks:  int64(rec.LiveTracks),
		Planned:     int64(rec.Planned),
		Dispatched:  int64(rec.Dispatched),
	})
}

// PersistTrack writes the lifetime summary of a retired track.
func (s *SessionSink) PersistTrack(track *s3tracks.Track) error {
	return s.db.CreateTrackRecord(&db.TrackRecord{
		SessionID:     s.sessionID,
		TrackID:       track.TrackID,
		Class:         track.Class,
		FirstSeenUnix: unixSeconds(track.CreatedAt),
		LastSeenUnix:  unixSeconds(track.LastSeen),
		Observations:  int64(track.ObservationCount),
		MaxConfidence: float64(track.MaxConfidence),
		Sliced:        track.SwipeCount > 0,
	})
}

// PersistObservations writes one frame's batch of matched track positions.
func (s *SessionSink) PersistObservations(obs []pipeline.TrackObservation) error {
	if len(obs) == 0 {
		return nil
	}
	rows := make([]db.Observation, len(obs))
	for i, o := range obs {
		rows[i] = db.Observation{
			SessionID:  s.sessionID,
			TrackID:    o.TrackID,
			FrameSeq:   o.FrameSeq,
			TsUnix:     unixSeconds(o.Timestamp),
			X:          o.X,
			Y:          o.Y,
			VX:         o.VX,
			VY:         o.VY,
			Confidence: float64(o.Confidence),
		}
	}
	return s.db.InsertObservations(rows)
}

// PersistSwipe writes one dispatched swipe. A zero latency means no
// measurement was taken and is stored as NULL.
func (s *SessionSink) PersistSwipe(outcome pipeline.SwipeOutcome) error {
	path := outcome.Path
	rec := &db.SwipeRecord{
		SessionID:   s.sessionID,
		TrackID:     path.TrackID,
		StartX:      path.Start.X,
		StartY:      path.Start.Y,
		EndX:        path.End.X,
		EndY:        path.End.Y,
		DurationMs:  millis(path.Duration),
		RapidFire:   path.RapidFire,
		PlannedUnix: unixSeconds(path.NotBefore),
	}
	if outcome.Latency > 0 {
		latency := millis(outcome.Latency)
		rec.LatencyMs = &latency
	}
	return s.db.RecordSwipe(rec)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
