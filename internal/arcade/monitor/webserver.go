// Package monitor provides the HTTP interface for watching a bot run:
// a status page, JSON endpoints for live engine and tracker state, session
// history from the database, and debugging charts.
package monitor

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/slicebot/slicebot/internal/arcade"
	"github.com/slicebot/slicebot/internal/arcade/pipeline"
	"github.com/slicebot/slicebot/internal/arcade/s3tracks"
	"github.com/slicebot/slicebot/internal/db"
)

//go:embed status.html
var StatusHTML embed.FS

// WebServer handles the HTTP interface for monitoring a bot session.
// It provides endpoints for health checks and real-time status information.
type WebServer struct {
	address   string
	engine    *pipeline.Engine
	tracker   *s3tracks.Tracker
	db        *db.DB
	sessionID int64
	feed      string
	injector  string
	region    arcade.Rect
	plotDir   string
	startTime time.Time
	server    *http.Server
}

// WebServerConfig contains configuration options for the web server.
// Engine, Tracker and DB may each be nil; the routes that need them
// respond with an error instead.
type WebServerConfig struct {
	Address   string
	Engine    *pipeline.Engine
	Tracker   *s3tracks.Tracker
	DB        *db.DB
	SessionID int64
	Feed      string
	Injector  string
	Region    arcade.Rect
	PlotDir   string
}

// NewWebServer creates a new web server with the provided configuration
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:   config.Address,
		engine:    config.Engine,
		tracker:   config.Tracker,
		db:        config.DB,
		sessionID: config.SessionID,
		feed:      config.Feed,
		injector:  config.Injector,
		region:    config.Region,
		plotDir:   config.PlotDir,
		startTime: time.Now(),
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown
func (ws *WebServer) Start(ctx context.Context) error {
	// Start server in a goroutine so it doesn't block
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for context cancellation to shut down server
	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	// Create a shutdown context with a shorter timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)
	mux.HandleFunc("/api/status", ws.handleStatusAPI)
	mux.HandleFunc("/api/tracks", ws.handleTracksAPI)
	mux.HandleFunc("/api/sessions", ws.handleSessionsAPI)
	mux.HandleFunc("/api/session", ws.handleSessionDetailAPI)
	mux.HandleFunc("/api/plots", ws.handlePlotsAPI)
	mux.HandleFunc("/debug/charts", ws.handleDebugDashboard)
	mux.HandleFunc("/debug/charts/latency", ws.handleLatencyChart)
	mux.HandleFunc("/debug/charts/tracks", ws.handleTracksChart)
	mux.HandleFunc("/debug/charts/session", ws.handleSessionChart)

	// SQL console and backup download live under /debug/ next to the charts.
	if ws.db != nil {
		ws.db.AttachAdminRoutes(mux)
	}

	return mux
}

// handleHealth handles the health check endpoint
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "slicebot", "timestamp": "%s"}`, time.Now().UTC().Format(time.RFC3339))
}

// handleStatus handles the main status page endpoint
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	var snap pipeline.Snapshot
	if ws.engine != nil {
		snap = ws.engine.Snapshot()
	}
	var metrics s3tracks.TrackingMetrics
	if ws.tracker != nil {
		metrics = ws.tracker.GetTrackingMetrics()
	}

	// Load and parse the HTML template from embedded filesystem
	tmpl, err := template.ParseFS(StatusHTML, "status.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Template data
	data := struct {
		HTTPAddress string
		SessionID   int64
		Feed        string
		Injector    string
		Region      string
		Uptime      string
		State       string
		EndReason   string
		Snap        pipeline.Snapshot
		LatencyMean string
		LatencyP95  string
		Metrics     s3tracks.TrackingMetrics
	}{
		HTTPAddress: ws.address,
		SessionID:   ws.sessionID,
		Feed:        ws.feed,
		Injector:    ws.injector,
		Region:      fmt.Sprintf("%.0fx%.0f", ws.region.W, ws.region.H),
		Uptime:      time.Since(ws.startTime).Round(time.Second).String(),
		State:       snap.State.String(),
		EndReason:   snap.EndReason,
		Snap:        snap,
		LatencyMean: fmt.Sprintf("%.2fms", float64(snap.LatencyMean)/float64(time.Millisecond)),
		LatencyP95:  fmt.Sprintf("%.2fms", float64(snap.LatencyP95)/float64(time.Millisecond)),
		Metrics:     metrics,
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// Close shuts down the web server
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}
