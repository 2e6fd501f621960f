// Package sqlite adapts the engine's persistence boundary onto the session
// database in internal/db.
//
// All write traffic coming out of the perception-action cycle lands here:
// cycle timings, retired track summaries, per-frame observations and
// dispatched swipes, each bound to one session row. Keeping the record
// mapping in a single adapter keeps the stage packages free of SQL noise
// and makes the sink easy to substitute in tests.
package sqlite
