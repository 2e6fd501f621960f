package db

import (
	"testing"
)

// TestCreateTrackRecord_Success tests persisting and reading back one track summary
func TestCreateTrackRecord_Success(t *testing.T) {
	db := newTestDB(t)
	session := createTestSession(t, db, "track run")

	track := &TrackRecord{
		SessionID:     session.ID,
		TrackID:       "t-0007",
		Class:         "fruit",
		FirstSeenUnix: 1748779201.0,
		LastSeenUnix:  1748779202.4,
		Observations:  42,
		MaxConfidence: 0.97,
		Sliced:        true,
	}

	err := db.CreateTrackRecord(track)
	if err != nil {
		t.Fatalf("CreateTrackRecord failed: %v", err)
	}
	if track.ID == 0 {
		t.Error("Expected track record ID to be set after creation")
	}

	tracks, err := db.SessionTracks(session.ID)
	if err != nil {
		t.Fatalf("SessionTracks failed: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("Expected 1 track, got %d", len(tracks))
	}
	if tracks[0] != *track {
		t.Errorf("Retrieved track does not match: got %+v, want %+v", tracks[0], *track)
	}
}

// TestSessionTracks_Order tests that tracks come back in retirement order
func TestSessionTracks_Order(t *testing.T) {
	db := newTestDB(t)
	session := createTestSession(t, db, "track order run")

	for _, id := range []string{"t-0001", "t-0002", "t-0003"} {
		track := &TrackRecord{
			SessionID:     session.ID,
			TrackID:       id,
			Class:         "fruit",
			FirstSeenUnix: 1748779201.0,
			LastSeenUnix:  1748779202.0,
			Observations:  10,
			MaxConfidence: 0.9,
		}
		if err := db.CreateTrackRecord(track); err != nil {
			t.Fatalf("CreateTrackRecord failed: %v", err)
		}
	}

	tracks, err := db.SessionTracks(session.ID)
	if err != nil {
		t.Fatalf("SessionTracks failed: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("Expected 3 tracks, got %d", len(tracks))
	}
	for i, want := range []string{"t-0001", "t-0002", "t-0003"} {
		if tracks[i].TrackID != want {
			t.Errorf("Expected track %s at position %d, got %s", want, i, tracks[i].TrackID)
		}
	}
}

// TestInsertObservations_Batch tests the transactional batch insert
func TestInsertObservations_Batch(t *testing.T) {
	db := newTestDB(t)
	session := createTestSession(t, db, "obs run")

	observations := []Observation{
		{
			SessionID: session.ID, TrackID: "t-0001", FrameSeq: 1, TsUnix: 1748779201.0,
			X: 100, Y: 500, VX: 40, VY: -600, Confidence: 0.9,
		},
		{
			SessionID: session.ID, TrackID: "t-0001", FrameSeq: 2, TsUnix: 1748779201.033,
			X: 101.3, Y: 480.2, VX: 40, VY: -580, Confidence: 0.92,
		},
		{
			SessionID: session.ID, TrackID: "t-0001", FrameSeq: 3, TsUnix: 1748779201.066,
			X: 102.7, Y: 461.1, VX: 40, VY: -560, Confidence: 0.91,
		},
	}

	if err := db.InsertObservations(observations); err != nil {
		t.Fatalf("InsertObservations failed: %v", err)
	}

	got, err := db.TrackObservations(session.ID, "t-0001")
	if err != nil {
		t.Fatalf("TrackObservations failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 observations, got %d", len(got))
	}
	for i := range got {
		got[i].ID = 0 // IDs are assigned by the database
		if got[i] != observations[i] {
			t.Errorf("Observation %d does not match: got %+v, want %+v", i, got[i], observations[i])
		}
	}

	count, err := db.SessionObservationCount(session.ID)
	if err != nil {
		t.Fatalf("SessionObservationCount failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected observation count 3, got %d", count)
	}
}

// TestInsertObservations_Empty tests that an empty batch is a no-op
func TestInsertObservations_Empty(t *testing.T) {
	db := newTestDB(t)
	session := createTestSession(t, db, "empty obs run")

	if err := db.InsertObservations(nil); err != nil {
		t.Fatalf("InsertObservations(nil) failed: %v", err)
	}

	count, err := db.SessionObservationCount(session.ID)
	if err != nil {
		t.Fatalf("SessionObservationCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected observation count 0, got %d", count)
	}
}

// TestTrackObservations_FiltersByTrack tests that only the requested track's
// observations come back
func TestTrackObservations_FiltersByTrack(t *testing.T) {
	db := newTestDB(t)
	session := createTestSession(t, db, "filter run")

	observations := []Observation{
		{SessionID: session.ID, TrackID: "t-0001", FrameSeq: 1, TsUnix: 1748779201.0, X: 100, Y: 500, Confidence: 0.9},
		{SessionID: session.ID, TrackID: "t-0002", FrameSeq: 1, TsUnix: 1748779201.0, X: 800, Y: 400, Confidence: 0.85},
		{SessionID: session.ID, TrackID: "t-0001", FrameSeq: 2, TsUnix: 1748779201.033, X: 102, Y: 480, Confidence: 0.91},
	}
	if err := db.InsertObservations(observations); err != nil {
		t.Fatalf("InsertObservations failed: %v", err)
	}

	got, err := db.TrackObservations(session.ID, "t-0002")
	if err != nil {
		t.Fatalf("TrackObservations failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 observation for t-0002, got %d", len(got))
	}
	if got[0].X != 800 || got[0].Y != 400 {
		t.Errorf("Expected t-0002 observation at (800,400), got (%v,%v)", got[0].X, got[0].Y)
	}
}
