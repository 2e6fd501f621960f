// Command session-report summarises a recorded bot session and renders its
// trajectory and latency plots. Without -session it lists the most recent
// sessions instead.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slicebot/slicebot/internal/arcade"
	"github.com/slicebot/slicebot/internal/arcade/monitor"
	"github.com/slicebot/slicebot/internal/db"
)

var (
	dbFile    = flag.String("db", "slicebot.db", "Path to the SQLite session database")
	sessionID = flag.Int64("session", 0, "Session id to report on; 0 lists recent sessions")
	plotDir   = flag.String("plots", "", "Directory to render plots into; empty skips plotting")
	limit     = flag.Int("limit", 20, "How many sessions the list shows")
)

func main() {
	flag.Parse()

	database, err := db.OpenDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if *sessionID == 0 {
		if err := listSessions(database); err != nil {
			log.Fatalf("List sessions: %v", err)
		}
		return
	}

	if err := report(database, *sessionID); err != nil {
		log.Fatalf("Report failed: %v", err)
	}
}

func listSessions(database *db.DB) error {
	sessions, err := database.ListSessions(*limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tNAME\tFEED\tEND\tFRAMES\tSWIPES")
	for _, s := range sessions {
		end := "running"
		if s.EndReason != nil {
			end = *s.EndReason
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\n",
			s.ID, unixTime(s.StartedUnix).Format("2006-01-02 15:04:05"),
			s.Name, s.Feed, end, s.Frames, s.Swipes)
	}
	return w.Flush()
}

func report(database *db.DB, id int64) error {
	session, err := database.GetSession(id)
	if err != nil {
		return err
	}

	fmt.Printf("Session %d %q\n", session.ID, session.Name)
	fmt.Printf("  feed %s, injector %s, region %.0fx%.0f\n",
		session.Feed, session.Injector, session.RegionW, session.RegionH)

	started := unixTime(session.StartedUnix)
	if session.EndedUnix != nil {
		reason := "unknown"
		if session.EndReason != nil {
			reason = *session.EndReason
		}
		fmt.Printf("  ran %s, ended %s\n",
			unixTime(*session.EndedUnix).Sub(started).Round(time.Millisecond), reason)
	} else {
		fmt.Printf("  started %s, no end recorded\n", started.Format(time.RFC3339))
	}
	fmt.Printf("  %d frames, %d cycles, %d swipes\n", session.Frames, session.Cycles, session.Swipes)

	tracks, err := database.SessionTracks(id)
	if err != nil {
		return err
	}
	byClass := map[string]int{}
	sliced := 0
	for _, tr := range tracks {
		byClass[tr.Class]++
		if tr.Sliced {
			sliced++
		}
	}
	classes := make([]string, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	fmt.Printf("  %d tracks (%d sliced)", len(tracks), sliced)
	for _, class := range classes {
		fmt.Printf(", %d %s", byClass[class], class)
	}
	fmt.Println()

	if stats, err := database.SessionCycleStats(id); err == nil && stats.Cycles > 0 {
		fmt.Printf("  cycle time avg %.2fms max %.2fms (detect %.2f, track %.2f, select %.2f, act %.2f)\n",
			stats.AvgTotalMs, stats.MaxTotalMs,
			stats.AvgDetectMs, stats.AvgTrackMs, stats.AvgSelectMs, stats.AvgActMs)
	}
	if n, avgMs, err := database.SwipeLatencyStats(id); err == nil && n > 0 {
		fmt.Printf("  swipe latency avg %.2fms over %d measured\n", avgMs, n)
	}

	if *plotDir == "" {
		return nil
	}
	plotter := monitor.NewTrailPlotter(database, arcade.Rect{W: session.RegionW, H: session.RegionH})
	written, err := plotter.PlotSession(id, *plotDir)
	if err != nil {
		return err
	}
	fmt.Printf("  ✓ %d plot(s) written to %s\n", written, *plotDir)
	return nil
}

func unixTime(sec float64) time.Time {
	return time.Unix(0, int64(sec*1e9))
}
