package monitor

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// echartsAssetsPrefix points chart pages at the published echarts runtime.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// viridisColors is the shared visual-map palette for the debug charts.
var viridisColors = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
<title>SliceBot Debug Charts — %s</title>
<style>
body { background: #1e1e1e; color: #ddd; font-family: sans-serif; margin: 12px; }
h1 { font-size: 18px; }
iframe { border: 1px solid #444; background: #111; margin: 6px; }
</style>
</head>
<body>
<h1>SliceBot Debug Charts — %s</h1>
<iframe src="/debug/charts/tracks%s" width="920" height="940"></iframe>
<iframe src="/debug/charts/latency%s" width="920" height="460"></iframe>
<iframe src="/debug/charts/session%s" width="920" height="460"></iframe>
</body>
</html>
`

// handleDebugDashboard renders a simple dashboard with iframes to the debug charts.
func (ws *WebServer) handleDebugDashboard(w http.ResponseWriter, r *http.Request) {
	label := fmt.Sprintf("session %d", ws.sessionID)
	if ws.sessionID == 0 {
		label = "dry run"
	}
	safeLabel := html.EscapeString(label)

	qs := ""
	if id := r.URL.Query().Get("id"); id != "" {
		qs = "?id=" + url.QueryEscape(id)
	}
	safeQs := html.EscapeString(qs)

	doc := fmt.Sprintf(dashboardHTML, safeLabel, safeLabel, safeQs, safeQs, safeQs)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(doc))
}

// handleTracksChart renders current track positions as a scatter overlay,
// colored by observation count. The vertical axis is flipped so up on the
// screen is up on the chart.
func (ws *WebServer) handleTracksChart(w http.ResponseWriter, r *http.Request) {
	if ws.tracker == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no tracker attached")
		return
	}

	tracks := ws.tracker.GetActiveTracks()

	pts := make([]opts.ScatterData, 0, len(tracks))
	maxObs := 0
	for _, t := range tracks {
		if t.ObservationCount > maxObs {
			maxObs = t.ObservationCount
		}
		pts = append(pts, opts.ScatterData{
			Value: []interface{}{t.X, ws.region.H - t.Y, t.ObservationCount},
		})
	}
	if maxObs == 0 {
		maxObs = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "SliceBot Tracks", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Live Tracks", Subtitle: fmt.Sprintf("count=%d region=%.0fx%.0f", len(pts), ws.region.W, ws.region.H)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: ws.region.W, Name: "X (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: ws.region.H, Name: "Y (px, up)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxObs),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridisColors},
		}),
	)
	scatter.AddSeries("tracks", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render tracks chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleLatencyChart renders cycle stage timings for a session as lines.
// Query params:
//
//	id (optional) - session id, defaults to the bound session
//	limit (optional, default 240) - newest cycles to include
func (ws *WebServer) handleLatencyChart(w http.ResponseWriter, r *http.Request) {
	if ws.db == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}

	sessionID, ok := ws.sessionIDParam(w, r)
	if !ok {
		return
	}

	limit := 240
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 5000 {
			limit = v
		}
	}

	cycles, err := ws.db.RecentCycles(sessionID, limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get cycles: %v", err))
		return
	}
	if len(cycles) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no cycles recorded for session %d", sessionID))
		return
	}

	// RecentCycles returns newest first; plot oldest to newest.
	x := make([]string, 0, len(cycles))
	total := make([]opts.LineData, 0, len(cycles))
	detect := make([]opts.LineData, 0, len(cycles))
	act := make([]opts.LineData, 0, len(cycles))
	for i := len(cycles) - 1; i >= 0; i-- {
		c := cycles[i]
		x = append(x, strconv.FormatUint(c.FrameSeq, 10))
		total = append(total, opts.LineData{Value: c.TotalMs})
		detect = append(detect, opts.LineData{Value: c.DetectMs})
		act = append(act, opts.LineData{Value: c.ActMs})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "SliceBot Cycle Latency", Theme: "dark", Width: "900px", Height: "420px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Cycle Latency", Subtitle: fmt.Sprintf("session=%d cycles=%d", sessionID, len(x))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	line.SetXAxis(x).
		AddSeries("total", total).
		AddSeries("detect", detect).
		AddSeries("act", act)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render latency chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleSessionChart renders the live session counters as a bar chart.
func (ws *WebServer) handleSessionChart(w http.ResponseWriter, r *http.Request) {
	if ws.engine == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no engine attached")
		return
	}

	snap := ws.engine.Snapshot()

	x := []string{"Frames", "Cycles", "Throttled", "Swipes", "Fruits cut", "Game checks"}
	y := []opts.BarData{
		{Value: snap.Frames},
		{Value: snap.Cycles},
		{Value: snap.Throttled},
		{Value: snap.Swipes},
		{Value: snap.FruitsCut},
		{Value: snap.GameChecks},
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Session Counters", Subtitle: fmt.Sprintf("state=%s fps=%.1f", snap.State, snap.FPS)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("session", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
