package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/slicebot/slicebot/internal/arcade"
	"github.com/slicebot/slicebot/internal/db"
)

// latencyPlotLimit bounds how many cycles the latency plot reads back.
const latencyPlotLimit = 10000

// trailLegendLimit caps the trails legend; beyond it the lines stay but the
// legend would cover the plot.
const trailLegendLimit = 12

// TrailPlotter generates PNG plots for a recorded session: one plot of every
// track's observed trajectory over the play region, and one of the cycle
// stage timings. Both read from the session database, so plots can be
// produced long after the run.
type TrailPlotter struct {
	db     *db.DB
	region arcade.Rect
}

// NewTrailPlotter creates a plotter reading from the given database. The
// region sets the trajectory plot bounds.
func NewTrailPlotter(database *db.DB, region arcade.Rect) *TrailPlotter {
	return &TrailPlotter{db: database, region: region}
}

// PlotSession writes the session's plots into outputDir and returns the
// number of files written. A session with no recorded tracks still gets a
// latency plot, and vice versa.
func (tp *TrailPlotter) PlotSession(sessionID int64, outputDir string) (int, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}

	written := 0

	n, err := tp.plotTrails(sessionID, outputDir)
	if err != nil {
		return written, err
	}
	written += n

	n, err = tp.plotLatency(sessionID, outputDir)
	if err != nil {
		return written, err
	}
	written += n

	if written == 0 {
		return 0, fmt.Errorf("session %d has no recorded tracks or cycles", sessionID)
	}
	return written, nil
}

// plotTrails draws every persisted track's observation trail. The vertical
// axis is flipped so up on the screen is up on the plot.
func (tp *TrailPlotter) plotTrails(sessionID int64, outputDir string) (int, error) {
	tracks, err := tp.db.SessionTracks(sessionID)
	if err != nil {
		return 0, fmt.Errorf("session tracks: %w", err)
	}
	if len(tracks) == 0 {
		return 0, nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Session %d - Track Trails", sessionID)
	p.X.Label.Text = "X (px)"
	p.Y.Label.Text = "Y (px, up)"
	p.X.Min = 0
	p.X.Max = tp.region.W
	p.Y.Min = 0
	p.Y.Max = tp.region.H

	colors := generateColors(len(tracks))
	plotted := 0
	for i, track := range tracks {
		observations, err := tp.db.TrackObservations(sessionID, track.TrackID)
		if err != nil {
			return 0, fmt.Errorf("observations for %s: %w", track.TrackID, err)
		}
		if len(observations) == 0 {
			continue
		}

		pts := make(plotter.XYs, 0, len(observations))
		for _, o := range observations {
			pts = append(pts, plotter.XY{X: o.X, Y: tp.region.H - o.Y})
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return 0, err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		if track.Sliced {
			line.Width = vg.Points(2)
		}
		p.Add(line)
		if len(tracks) <= trailLegendLimit {
			p.Legend.Add(trailLabel(track), line)
		}
		plotted++
	}
	if plotted == 0 {
		return 0, nil
	}

	// Keep the plot aspect close to the play region's.
	width := 10 * vg.Inch
	height := vg.Length(float64(width) * tp.region.H / tp.region.W)

	file := filepath.Join(outputDir, fmt.Sprintf("session_%04d_trails.png", sessionID))
	if err := p.Save(width, height, file); err != nil {
		return 0, fmt.Errorf("save trails plot: %w", err)
	}
	return 1, nil
}

// plotLatency draws the cycle timing breakdown over the session.
func (tp *TrailPlotter) plotLatency(sessionID int64, outputDir string) (int, error) {
	cycles, err := tp.db.RecentCycles(sessionID, latencyPlotLimit)
	if err != nil {
		return 0, fmt.Errorf("recent cycles: %w", err)
	}
	if len(cycles) == 0 {
		return 0, nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Session %d - Cycle Latency", sessionID)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "ms"

	// RecentCycles returns newest first; plot oldest to newest.
	totalPts := make(plotter.XYs, 0, len(cycles))
	detectPts := make(plotter.XYs, 0, len(cycles))
	actPts := make(plotter.XYs, 0, len(cycles))
	for i := len(cycles) - 1; i >= 0; i-- {
		c := cycles[i]
		x := float64(c.FrameSeq)
		totalPts = append(totalPts, plotter.XY{X: x, Y: c.TotalMs})
		detectPts = append(detectPts, plotter.XY{X: x, Y: c.DetectMs})
		actPts = append(actPts, plotter.XY{X: x, Y: c.ActMs})
	}

	series := []struct {
		label string
		pts   plotter.XYs
		color color.Color
	}{
		{"total", totalPts, color.RGBA{R: 31, G: 158, B: 137, A: 255}},
		{"detect", detectPts, color.RGBA{R: 62, G: 73, B: 137, A: 255}},
		{"act", actPts, color.RGBA{R: 253, G: 231, B: 37, A: 255}},
	}
	for _, s := range series {
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return 0, err
		}
		line.Color = s.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.label, line)
	}

	file := filepath.Join(outputDir, fmt.Sprintf("session_%04d_latency.png", sessionID))
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return 0, fmt.Errorf("save latency plot: %w", err)
	}
	return 1, nil
}

// trailLabel builds a short legend label from a track record.
func trailLabel(track db.TrackRecord) string {
	id := track.TrackID
	if len(id) > 8 {
		id = id[len(id)-4:]
	}
	label := fmt.Sprintf("%s %s", track.Class, id)
	if track.Sliced {
		label += " *"
	}
	return label
}

// generateColors creates a palette of distinct colors for trail lines
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
