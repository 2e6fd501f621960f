// Command slicebot runs the arcade bot end to end: it consumes a detector
// feed, tracks thrown objects, plans swipes, injects them, and serves a
// status page while recording the session to SQLite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slicebot/slicebot/internal/arcade"
	"github.com/slicebot/slicebot/internal/arcade/gamestate"
	"github.com/slicebot/slicebot/internal/arcade/monitor"
	"github.com/slicebot/slicebot/internal/arcade/pipeline"
	"github.com/slicebot/slicebot/internal/arcade/s1frames"
	"github.com/slicebot/slicebot/internal/arcade/s2detections"
	"github.com/slicebot/slicebot/internal/arcade/s3tracks"
	"github.com/slicebot/slicebot/internal/arcade/s4motion"
	"github.com/slicebot/slicebot/internal/arcade/s5targets"
	"github.com/slicebot/slicebot/internal/arcade/s6swipes"
	"github.com/slicebot/slicebot/internal/arcade/storage/sqlite"
	"github.com/slicebot/slicebot/internal/config"
	"github.com/slicebot/slicebot/internal/db"
	"github.com/slicebot/slicebot/internal/version"
)

var (
	listen = flag.String("listen", ":8080", "HTTP status listen address")

	feedKind   = flag.String("feed", "udp", "Detection feed: udp, http, replay, pcap or synthetic")
	feedAddr   = flag.String("feed-addr", ":9901", "UDP bind address for the udp feed")
	feedURL    = flag.String("feed-url", "http://127.0.0.1:9901", "Sidecar base URL for the http feed")
	feedPoll   = flag.Duration("feed-poll", 10*time.Millisecond, "Poll interval for the http feed")
	replayPath = flag.String("replay", "", "Recording to play back (JSONL for -feed replay, capture file for -feed pcap)")
	replayRate = flag.Float64("replay-rate", 1.0, "Playback speed multiplier; 0 replays as fast as the loop pulls")
	seed       = flag.Int64("seed", 1, "Synthetic feed seed")
	rcvBuf     = flag.Int("rcvbuf", 1<<20, "UDP receive buffer size in bytes")

	recordPath = flag.String("record", "", "Tee received frames into this JSONL file")
	recordPcap = flag.String("record-pcap", "", "Tee received datagrams into this pcap file (udp feed only)")

	injectorKind   = flag.String("injector", "mock", "Swipe injector: mock, serial, adb or none (plan without injecting)")
	serialDevice   = flag.String("serial-port", "/dev/ttyACM0", "Serial device for the serial injector")
	serialBaud     = flag.Int("serial-baud", 115200, "Baud rate for the serial injector")
	adbBin         = flag.String("adb", "", "adb binary for the adb injector (default: adb from PATH)")
	adbSerial      = flag.String("adb-serial", "", "Device serial for the adb injector")
	deviceProfiles = flag.String("device-profiles", "", "INI file with device profiles for the adb injector")
	deviceName     = flag.String("device", "", "Profile section to use from -device-profiles")

	configPath  = flag.String("config", "", "Tuning file (default: bundled config/slicebot.defaults.json)")
	dbFile      = flag.String("db", "slicebot.db", "Path to the SQLite session database")
	sessionName = flag.String("session", "", "Session name (default: derived from the start time)")

	endTemplate  = flag.String("gameover-template", "", "End-screen banner PNG for template matching (needs the adb injector)")
	endThreshold = flag.Float64("gameover-threshold", 0, "Banner match threshold; 0 uses the tuning file value")

	logDir   = flag.String("log-dir", "", "Directory for rotated ops/diag/trace log files")
	traceLog = flag.Bool("trace", false, "Enable the per-cycle trace stream")
	plotDir  = flag.String("plot-dir", "plots", "Directory the monitor writes trajectory plots to")

	showVersion = flag.Bool("version", false, "Print the build version and exit")
)

// loadTuning reads the tuning file named by -config, or falls back to the
// bundled defaults.
func loadTuning() (*config.BotConfig, error) {
	if *configPath != "" {
		return config.LoadBotConfig(*configPath)
	}
	return config.MustLoadDefaultConfig(), nil
}

// buildSource opens the detection feed selected by -feed and wraps it in
// the requested record tees. The returned string describes the feed for
// the session row and status page.
func buildSource() (s1frames.Source, string, error) {
	var (
		src  s1frames.Source
		desc string
	)

	switch *feedKind {
	case "udp":
		udp, err := s1frames.NewUDPSource(*feedAddr, *rcvBuf)
		if err != nil {
			return nil, "", err
		}
		if *recordPcap != "" {
			pl, err := s1frames.NewPacketLog(*recordPcap, feedPort(*feedAddr))
			if err != nil {
				udp.Close()
				return nil, "", err
			}
			udp.SetPacketLog(pl)
		}
		src, desc = udp, "udp:"+*feedAddr
	case "http":
		if *feedURL == "" {
			return nil, "", errors.New("-feed http needs -feed-url")
		}
		src, desc = s1frames.NewHTTPSource(*feedURL, nil, nil, *feedPoll), "http:"+*feedURL
	case "replay":
		if *replayPath == "" {
			return nil, "", errors.New("-feed replay needs -replay <file>")
		}
		rs, err := s1frames.NewReplaySource(*replayPath, nil, *replayRate)
		if err != nil {
			return nil, "", err
		}
		src, desc = rs, "replay:"+*replayPath
	case "pcap":
		if *replayPath == "" {
			return nil, "", errors.New("-feed pcap needs -replay <file>")
		}
		ps, err := s1frames.NewPCAPSource(*replayPath, 0, nil, *replayRate)
		if err != nil {
			return nil, "", err
		}
		src, desc = ps, "pcap:"+*replayPath
	case "synthetic":
		src, desc = s1frames.NewSyntheticSource(*seed), fmt.Sprintf("synthetic:%d", *seed)
	default:
		return nil, "", fmt.Errorf("unknown feed %q", *feedKind)
	}

	if *recordPath != "" {
		rec, err := s1frames.NewRecordingSource(src, *recordPath)
		if err != nil {
			src.Close()
			return nil, "", err
		}
		src = rec
	}
	return src, desc, nil
}

// feedPort extracts the port number from a bind address for the pcap
// record headers. Unparseable addresses fall back to 0.
func feedPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

// buildDispatcher constructs the swipe dispatcher around the injector
// selected by -injector. A nil dispatcher (injector "none") runs the
// engine dry: paths are planned and recorded but nothing is injected.
func buildDispatcher(bot *config.BotConfig, region arcade.Rect) (*s6swipes.Dispatcher, string, error) {
	var (
		inj  s6swipes.Injector
		desc string
	)

	switch *injectorKind {
	case "none":
		return nil, "none", nil
	case "mock":
		inj, desc = s6swipes.NewMockInjector(), "mock"
	case "serial":
		bridge, err := s6swipes.OpenSerialBridge(*serialDevice, *serialBaud)
		if err != nil {
			return nil, "", err
		}
		inj, desc = bridge, "serial:"+*serialDevice
	case "adb":
		// Without a profile the device panel is assumed to match the
		// capture region, so coordinates pass through unscaled.
		profile := s6swipes.DeviceProfile{
			Name:    "region",
			ScreenW: int(region.W),
			ScreenH: int(region.H),
		}
		if *deviceProfiles != "" {
			if *deviceName == "" {
				return nil, "", errors.New("-device-profiles needs -device <name>")
			}
			var err error
			profile, err = s6swipes.LoadDeviceProfile(*deviceProfiles, *deviceName)
			if err != nil {
				return nil, "", err
			}
		}
		inj = s6swipes.NewADBInjector(*adbBin, *adbSerial, profile, region.W, region.H)
		desc = "adb:" + *adbSerial
	default:
		return nil, "", fmt.Errorf("unknown injector %q", *injectorKind)
	}

	return s6swipes.NewDispatcher(inj, nil, bot.GetSwipeSteps()), desc, nil
}

// buildChecker assembles the game-over checker chain. The feed-hint
// checker always runs first; feeds without hints report unknown and fall
// through to the template checker when one is configured.
func buildChecker(bot *config.BotConfig) (gamestate.Checker, error) {
	if *endTemplate == "" {
		return gamestate.HintChecker{}, nil
	}
	if *injectorKind != "adb" {
		return nil, errors.New("-gameover-template needs the adb injector for screen grabs")
	}
	threshold := *endThreshold
	if threshold <= 0 {
		threshold = bot.GetTemplateThreshold()
	}
	tmpl, err := gamestate.NewTemplateChecker(adbGrabber(*adbBin, *adbSerial), *endTemplate, threshold)
	if err != nil {
		return nil, err
	}
	return gamestate.Chain(gamestate.HintChecker{}, tmpl), nil
}

// Main
func main() {
	// The migrate subcommand manages the schema explicitly and never
	// starts the bot.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		migrateFlags := flag.NewFlagSet("migrate", flag.ExitOnError)
		migrateDB := migrateFlags.String("db", "slicebot.db", "Path to the SQLite database file")
		migrateFlags.Parse(os.Args[2:])
		db.RunMigrateCommand(migrateFlags.Args(), *migrateDB)
		return
	}

	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listen == "" {
		log.Fatal("HTTP listen address is required")
	}
	log.Printf("Starting %s", version.String())

	bot, err := loadTuning()
	if err != nil {
		log.Fatalf("Failed to load tuning config: %v", err)
	}
	region := arcade.Rect{W: bot.GetRegionWidth(), H: bot.GetRegionHeight()}

	streams, err := openLogStreams(*logDir, *traceLog)
	if err != nil {
		log.Fatalf("Failed to open log streams: %v", err)
	}
	defer streams.Close()
	streams.apply()

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to session database: %v", err)
	}
	defer database.Close()

	source, feedDesc, err := buildSource()
	if err != nil {
		log.Fatalf("Failed to open detection feed: %v", err)
	}
	defer source.Close()

	dispatcher, injDesc, err := buildDispatcher(bot, region)
	if err != nil {
		log.Fatalf("Failed to build injector: %v", err)
	}
	if dispatcher != nil {
		defer dispatcher.Close()
	}

	checker, err := buildChecker(bot)
	if err != nil {
		log.Fatalf("Failed to build game-over checker: %v", err)
	}

	validator := s2detections.NewValidator(s2detections.ValidatorConfig{
		Region:        region,
		MinConfidence: bot.GetMinConfidence(),
		MinBoxAreaPx:  bot.GetMinBoxAreaPx(),
	})
	tracker := s3tracks.NewTracker(s3tracks.TrackerConfigFromBot(bot))
	strategy := s5targets.NewStrategy(s5targets.ConfigFromBot(bot), s4motion.NewPredictor(s4motion.ConfigFromBot(bot)))

	name := *sessionName
	if name == "" {
		name = time.Now().Format("session-20060102-150405")
	}
	sink, err := sqlite.StartSession(database, &db.Session{
		Name:        name,
		Feed:        feedDesc,
		Injector:    injDesc,
		RegionW:     region.W,
		RegionH:     region.H,
		StartedUnix: float64(time.Now().UnixNano()) / 1e9,
	})
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	engine, err := pipeline.NewEngine(pipeline.EngineConfig{
		Source:            source,
		Validator:         validator,
		Tracker:           tracker,
		Strategy:          strategy,
		Dispatcher:        dispatcher,
		Checker:           checker,
		Sink:              sink,
		MaxCycleRate:      bot.GetMaxCycleRateHz(),
		GameCheckInterval: bot.GetGameCheckInterval(),
		FPSWindow:         bot.GetFPSWindow(),
		StatsLogInterval:  bot.GetStatsLogInterval(),
	})
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	log.Printf("Session %q (id %d): feed %s, injector %s, region %.0fx%.0f",
		name, sink.SessionID(), feedDesc, injDesc, region.W, region.H)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Engine goroutine. When the session ends for any reason the whole
	// process comes down with it; the status server does not outlive the
	// session it reports on.
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stop()

		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Engine error: %v", err)
		}

		reason := engine.EndReason()
		if reason == "" {
			reason = pipeline.ReasonFault
		}
		snap := engine.Snapshot()
		if err := sink.Finish(time.Now(), reason, snap.Frames, snap.Cycles, snap.Swipes); err != nil {
			log.Printf("Failed to close session row: %v", err)
		}
		log.Printf("Session over (%s): %d frames, %d cycles, %d swipes, %d fruits cut",
			reason, snap.Frames, snap.Cycles, snap.Swipes, snap.FruitsCut)
	}()

	// HTTP status server goroutine
	ws := monitor.NewWebServer(monitor.WebServerConfig{
		Address:   *listen,
		Engine:    engine,
		Tracker:   tracker,
		DB:        database,
		SessionID: sink.SessionID(),
		Feed:      feedDesc,
		Injector:  injDesc,
		Region:    region,
		PlotDir:   *plotDir,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ws.Start(ctx); err != nil {
			log.Printf("Web server error: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
