// Command param-sweep replays a recorded detection feed once per tracker
// parameter combination, scores each run, and writes the ranked results to
// CSV. Axes accept either comma-separated values (9.21,16,25) or a range
// spec (5:30:5); axes left empty stay at the tuning-file baseline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slicebot/slicebot/internal/arcade"
	"github.com/slicebot/slicebot/internal/arcade/s3tracks"
	"github.com/slicebot/slicebot/internal/arcade/s4motion"
	"github.com/slicebot/slicebot/internal/arcade/s5targets"
	"github.com/slicebot/slicebot/internal/arcade/sweep"
	"github.com/slicebot/slicebot/internal/config"
	"github.com/slicebot/slicebot/internal/db"
)

var (
	replayPath = flag.String("replay", "", "JSONL feed recording to sweep over (required)")
	output     = flag.String("output", "", "Output CSV filename (defaults to sweep-<timestamp>.csv)")
	configPath = flag.String("config", "", "Tuning file supplying the baseline (default: bundled defaults)")
	dbFile     = flag.String("db", "", "SQLite database to record param_runs rows in; empty skips persistence")
	sweepName  = flag.String("name", "", "Sweep name grouping the database rows")

	gateList    = flag.String("gate", "", "Association gate values (squared Mahalanobis distance)")
	qposList    = flag.String("qpos", "", "Position process noise values")
	qvelList    = flag.String("qvel", "", "Velocity process noise values")
	rnoiseList  = flag.String("rnoise", "", "Measurement noise values (px)")
	confirmList = flag.String("confirm", "", "Hits-to-confirm values")
	missesList  = flag.String("misses", "", "Max-misses values")

	wFruits  = flag.Float64("w-fruits", 0, "Fruits-cut weight override (0 keeps the default)")
	wHazards = flag.Float64("w-hazards", 0, "Hazards-hit weight override")
)

func main() {
	flag.Parse()

	if *replayPath == "" {
		log.Fatal("Error: -replay flag is required")
	}

	var bot *config.BotConfig
	var err error
	if *configPath != "" {
		bot, err = config.LoadBotConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	} else {
		bot = config.MustLoadDefaultConfig()
	}

	grid, err := parseGrid()
	if err != nil {
		log.Fatalf("Invalid parameter axis: %v", err)
	}

	var database *db.DB
	if *dbFile != "" {
		database, err = db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer database.Close()
	}

	weights := sweep.DefaultObjectiveWeights()
	if *wFruits != 0 {
		weights.FruitsCut = *wFruits
	}
	if *wHazards != 0 {
		weights.HazardsHit = *wHazards
	}

	runner := sweep.NewRunner(sweep.RunnerConfig{
		ReplayPath:    *replayPath,
		Region:        arcade.Rect{W: bot.GetRegionWidth(), H: bot.GetRegionHeight()},
		BaseTracker:   s3tracks.TrackerConfigFromBot(bot),
		Strategy:      s5targets.ConfigFromBot(bot),
		Predictor:     s4motion.ConfigFromBot(bot),
		MinConfidence: bot.GetMinConfidence(),
		MinBoxAreaPx:  bot.GetMinBoxAreaPx(),
		Weights:       weights,
		SweepName:     *sweepName,
		DB:            database,
		Progress: func(done, total int, res sweep.ScoredResult) {
			log.Printf("[%d/%d] %s score=%.3f fruits=%d hazards=%d",
				done, total, res.Params.String(), res.Score, res.FruitsCut, res.HazardsHit)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	report, err := runner.Run(ctx, grid)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	log.Printf("Swept %d combination(s) in %s", report.Summary.Combos, time.Since(started).Round(time.Millisecond))
	log.Printf("Score mean %.3f ± %.3f, median %.3f, p90 %.3f",
		report.Summary.ScoreMean, report.Summary.ScoreStddev,
		report.Summary.ScoreMedian, report.Summary.ScoreP90)
	if best := report.Best(); best != nil {
		log.Printf("Best: %s score=%.3f", best.Params.String(), best.Score)
	}

	filename := *output
	if filename == "" {
		filename = fmt.Sprintf("sweep-%s.csv", time.Now().Format("20060102-150405"))
	}
	f, err := os.Create(filename)
	if err != nil {
		log.Fatalf("Could not create output file %s: %v", filename, err)
	}
	defer f.Close()
	if err := sweep.WriteReportCSV(f, report); err != nil {
		log.Fatalf("Write CSV: %v", err)
	}
	log.Printf("✓ Results written to %s", filename)
}

// parseGrid reads the six axis flags into a sweep grid.
func parseGrid() (sweep.Grid, error) {
	var grid sweep.Grid
	var err error

	if grid.Gate, err = sweep.ParseParamList(*gateList); err != nil {
		return grid, fmt.Errorf("-gate: %w", err)
	}
	if grid.ProcessNoisePos, err = sweep.ParseParamList(*qposList); err != nil {
		return grid, fmt.Errorf("-qpos: %w", err)
	}
	if grid.ProcessNoiseVel, err = sweep.ParseParamList(*qvelList); err != nil {
		return grid, fmt.Errorf("-qvel: %w", err)
	}
	if grid.MeasurementNoise, err = sweep.ParseParamList(*rnoiseList); err != nil {
		return grid, fmt.Errorf("-rnoise: %w", err)
	}
	if grid.HitsToConfirm, err = sweep.ParseIntParamList(*confirmList); err != nil {
		return grid, fmt.Errorf("-confirm: %w", err)
	}
	if grid.MaxMisses, err = sweep.ParseIntParamList(*missesList); err != nil {
		return grid, fmt.Errorf("-misses: %w", err)
	}
	return grid, nil
}
