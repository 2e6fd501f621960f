package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/slicebot/slicebot/internal/arcade/s3tracks"
	"github.com/slicebot/slicebot/internal/db"
	"github.com/slicebot/slicebot/internal/version"
)

// trackSummary is the wire shape of one live track on /api/tracks.
type trackSummary struct {
	TrackID      string  `json:"track_id"`
	State        string  `json:"state"`
	Class        string  `json:"class"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	VX           float64 `json:"vx"`
	VY           float64 `json:"vy"`
	Confidence   float32 `json:"confidence"`
	Hits         int     `json:"hits"`
	Misses       int     `json:"misses"`
	Observations int     `json:"observations"`
	SwipeCount   int     `json:"swipe_count"`
	AgeSeconds   float64 `json:"age_seconds"`
}

// handleStatusAPI returns the live engine snapshot and tracker metrics as JSON.
func (ws *WebServer) handleStatusAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.engine == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no engine attached")
		return
	}

	snap := ws.engine.Snapshot()
	body := map[string]interface{}{
		"version":         version.String(),
		"session_id":      ws.sessionID,
		"state":           snap.State.String(),
		"end_reason":      snap.EndReason,
		"frames":          snap.Frames,
		"cycles":          snap.Cycles,
		"throttled":       snap.Throttled,
		"swipes":          snap.Swipes,
		"fruits_cut":      snap.FruitsCut,
		"game_checks":     snap.GameChecks,
		"fps":             snap.FPS,
		"latency_min_ms":  float64(snap.LatencyMin) / float64(time.Millisecond),
		"latency_mean_ms": float64(snap.LatencyMean) / float64(time.Millisecond),
		"latency_p95_ms":  float64(snap.LatencyP95) / float64(time.Millisecond),
	}
	if ws.tracker != nil {
		body["tracking"] = ws.tracker.GetTrackingMetrics()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

// handleTracksAPI returns the current live tracks as JSON.
// Query params:
//
//	state (optional) - "tentative" or "confirmed" to filter
func (ws *WebServer) handleTracksAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.tracker == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no tracker attached")
		return
	}

	stateFilter := r.URL.Query().Get("state")
	now := time.Now()

	var tracks []*s3tracks.Track
	switch stateFilter {
	case "confirmed":
		tracks = ws.tracker.GetConfirmedTracks()
	case "":
		tracks = ws.tracker.GetActiveTracks()
	case "tentative":
		for _, track := range ws.tracker.GetActiveTracks() {
			if track.State == s3tracks.TrackTentative {
				tracks = append(tracks, track)
			}
		}
	default:
		ws.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown state filter %q", stateFilter))
		return
	}

	summaries := make([]trackSummary, 0, len(tracks))
	for _, track := range tracks {
		summaries = append(summaries, trackSummary{
			TrackID:      track.TrackID,
			State:        string(track.State),
			Class:        track.Class,
			X:            track.X,
			Y:            track.Y,
			VX:           track.VX,
			VY:           track.VY,
			Confidence:   track.Confidence,
			Hits:         track.Hits,
			Misses:       track.Misses,
			Observations: track.ObservationCount,
			SwipeCount:   track.SwipeCount,
			AgeSeconds:   now.Sub(track.CreatedAt).Seconds(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

// handleSessionsAPI returns recent session rows as JSON.
// Query params:
//
//	limit (optional, default 20)
func (ws *WebServer) handleSessionsAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.db == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	sessions, err := ws.db.ListSessions(limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list sessions: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

// handleSessionDetailAPI returns one session with its rollups as JSON.
// Query params:
//
//	id (required) - session id; "current" uses the bound session
func (ws *WebServer) handleSessionDetailAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.db == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}

	sessionID, ok := ws.sessionIDParam(w, r)
	if !ok {
		return
	}

	session, err := ws.db.GetSession(sessionID)
	if errors.Is(err, db.ErrSessionNotFound) {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no session %d", sessionID))
		return
	}
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get session: %v", err))
		return
	}

	body := map[string]interface{}{"session": session}

	if stats, err := ws.db.SessionCycleStats(sessionID); err == nil {
		body["cycle_stats"] = stats
	}
	if tracks, err := ws.db.SessionTracks(sessionID); err == nil {
		sliced := 0
		for _, track := range tracks {
			if track.Sliced {
				sliced++
			}
		}
		body["tracks"] = len(tracks)
		body["tracks_sliced"] = sliced
	}
	if count, meanMs, err := ws.db.SwipeLatencyStats(sessionID); err == nil {
		body["swipes_measured"] = count
		body["swipe_latency_mean_ms"] = meanMs
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

// handlePlotsAPI generates trajectory and latency plots for a session into
// the configured plot directory.
// Query params:
//
//	id (required) - session id; "current" uses the bound session
func (ws *WebServer) handlePlotsAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.db == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}
	if ws.plotDir == "" {
		ws.writeJSONError(w, http.StatusNotImplemented, "no plot directory configured")
		return
	}

	sessionID, ok := ws.sessionIDParam(w, r)
	if !ok {
		return
	}

	plotter := NewTrailPlotter(ws.db, ws.region)
	written, err := plotter.PlotSession(sessionID, ws.plotDir)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("plot session: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     "ok",
		"session_id": sessionID,
		"plots":      written,
		"dir":        ws.plotDir,
	})
}

// sessionIDParam parses the id query parameter, resolving "current" and the
// empty value to the bound session. Writes the error response itself.
func (ws *WebServer) sessionIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("id")
	if raw == "" || raw == "current" {
		if ws.sessionID == 0 {
			ws.writeJSONError(w, http.StatusBadRequest, "missing 'id' parameter and no bound session")
			return 0, false
		}
		return ws.sessionID, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		ws.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("bad 'id' parameter %q", raw))
		return 0, false
	}
	return id, true
}
