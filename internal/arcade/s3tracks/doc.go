// Package s3tracks maintains object identity across frames. It associates
// validated detections to live tracks with a gated Hungarian assignment over
// squared Mahalanobis distances, runs a constant-velocity Kalman filter per
// track, and manages the tentative -> confirmed -> deleted lifecycle.
//
// The tracker is the sole owner of Track records. Callers receive deep
// copies ordered by creation sequence, so association results are
// reproducible for identical input ordering and safe to read without
// holding the tracker lock.
package s3tracks
