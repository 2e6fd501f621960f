// Package s5targets decides which tracked objects to cut each cycle and
// plans the swipe paths for them.
//
// Selection runs in two phases. Scoring filters the live track set down to
// actionable candidates (confirmed, target class, confident, inside the
// height band, clear of hazards) and ranks them by a weighted product of
// safety, detector confidence, and height-band position. Planning then
// turns the ranked candidates into horizontal cuts through each target's
// predicted position at that path's arrival time, shortens cuts that run
// into a hazard corridor, and rejects any cut that would leave the play
// region or fall below the minimum useful length. Execution windows within
// a cycle are serialized so the dispatcher never has to interleave swipes.
//
// The strategy carries a little state between cycles: global and per-track
// swipe cooldowns, and the rapid-fire window that opens when a multi-slice
// object is recognised. Everything else is recomputed from the track
// snapshots passed in.
package s5targets
