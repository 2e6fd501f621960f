package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/slicebot.defaults.json"

// BotConfig represents the root configuration for bot tuning parameters.
// All fields are optional pointers so a partial JSON file only overrides
// what it names; the Get* methods supply defaults for everything else.
// The same schema backs the /api/params endpoint, so a file written from
// a live session can be fed straight back in at startup.
type BotConfig struct {
	// Detection boundary params
	MinConfidence *float64 `json:"min_confidence,omitempty"`
	MinBoxAreaPx  *float64 `json:"min_box_area_px,omitempty"`
	RegionWidth   *float64 `json:"region_width,omitempty"`
	RegionHeight  *float64 `json:"region_height,omitempty"`

	// Tracker params
	MaxTracks          *int     `json:"max_tracks,omitempty"`
	DistanceGate       *float64 `json:"distance_gate,omitempty"`
	MaxPositionJumpPx  *float64 `json:"max_position_jump_px,omitempty"`
	MaxSpeedPxS        *float64 `json:"max_speed_px_s,omitempty"`
	ProcessNoisePos    *float64 `json:"process_noise_pos,omitempty"`
	ProcessNoiseVel    *float64 `json:"process_noise_vel,omitempty"`
	MeasurementNoisePx *float64 `json:"measurement_noise_px,omitempty"`
	OcclusionInflation *float64 `json:"occlusion_inflation,omitempty"`
	MaxCovarianceDiag  *float64 `json:"max_covariance_diag,omitempty"`
	HitsToConfirm      *int     `json:"hits_to_confirm,omitempty"`
	MaxMisses          *int     `json:"max_misses,omitempty"`
	MaxMissesConfirmed *int     `json:"max_misses_confirmed,omitempty"`
	MaxStaleness       *string  `json:"max_staleness,omitempty"` // duration string like "1s"
	MaxTrackHistory    *int     `json:"max_track_history,omitempty"`
	MaxPredictDt       *string  `json:"max_predict_dt,omitempty"` // duration string like "250ms"
	DeletedRetention   *string  `json:"deleted_retention,omitempty"`

	// Predictor params
	GravityEnabled *bool    `json:"gravity_enabled,omitempty"`
	MaxAccelPxS2   *float64 `json:"max_accel_px_s2,omitempty"`

	// Targeting params
	TargetClasses      []string `json:"target_classes,omitempty"`
	HazardClasses      []string `json:"hazard_classes,omitempty"`
	MaxActionsPerCycle *int     `json:"max_actions_per_cycle,omitempty"`
	DispatchLead       *string  `json:"dispatch_lead,omitempty"` // duration string like "60ms"
	SafetyDistancePx   *float64 `json:"safety_distance_px,omitempty"`
	SafetyVerticalPx   *float64 `json:"safety_vertical_px,omitempty"`
	MinSafety          *float64 `json:"min_safety,omitempty"`
	MinActionScore     *float64 `json:"min_action_score,omitempty"`
	SwipeHalfLengthPx  *float64 `json:"swipe_half_length_px,omitempty"`
	MinSwipeLengthPx   *float64 `json:"min_swipe_length_px,omitempty"`
	SwipeDuration      *string  `json:"swipe_duration,omitempty"`
	HazardCorridorXPx  *float64 `json:"hazard_corridor_x_px,omitempty"`
	HazardCorridorYPx  *float64 `json:"hazard_corridor_y_px,omitempty"`
	HazardStopShortPx  *float64 `json:"hazard_stop_short_px,omitempty"`
	BandLow            *float64 `json:"band_low,omitempty"`
	BandHigh           *float64 `json:"band_high,omitempty"`
	BandOptimum        *float64 `json:"band_optimum,omitempty"`
	WeightSafety       *float64 `json:"weight_safety,omitempty"`
	WeightConfidence   *float64 `json:"weight_confidence,omitempty"`
	WeightBand         *float64 `json:"weight_band,omitempty"`
	SwipeCooldown      *string  `json:"swipe_cooldown,omitempty"`
	TrackCooldown      *string  `json:"track_cooldown,omitempty"`
	RapidFireMinSlices *int     `json:"rapid_fire_min_slices,omitempty"`
	RapidFirePersist   *string  `json:"rapid_fire_persistence,omitempty"`
	RapidFireWindow    *string  `json:"rapid_fire_window,omitempty"`
	RapidFireDurScale  *float64 `json:"rapid_fire_duration_scale,omitempty"`
	RapidFireCdScale   *float64 `json:"rapid_fire_cooldown_scale,omitempty"`

	// Dispatcher params
	SwipeSteps *int `json:"swipe_steps,omitempty"`

	// Engine params
	GameCheckInterval  *int     `json:"game_check_interval,omitempty"` // frames
	MaxCycleRateHz     *float64 `json:"max_cycle_rate_hz,omitempty"`
	TemplateThreshold  *float64 `json:"template_threshold,omitempty"`
	FPSWindow          *int     `json:"fps_window,omitempty"`
	StatsLogInterval   *string  `json:"stats_log_interval,omitempty"`
}

// Helper functions to create pointers, shared with the package tests.
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyBotConfig returns a BotConfig with all fields set to nil.
// Use LoadBotConfig to load actual values from a tuning file.
func EmptyBotConfig() *BotConfig {
	return &BotConfig{}
}

// LoadBotConfig loads a BotConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadBotConfig(path string) (*BotConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyBotConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *BotConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/arcade/s3tracks/
		"../../../../" + DefaultConfigPath,    // deeper packages
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadBotConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *BotConfig) Validate() error {
	if c.MinConfidence != nil {
		if *c.MinConfidence < 0 || *c.MinConfidence > 1 {
			return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
		}
	}

	if c.MinSafety != nil {
		if *c.MinSafety < 0 || *c.MinSafety > 1 {
			return fmt.Errorf("min_safety must be between 0 and 1, got %f", *c.MinSafety)
		}
	}

	if c.MinActionScore != nil {
		if *c.MinActionScore < 0 || *c.MinActionScore > 1 {
			return fmt.Errorf("min_action_score must be between 0 and 1, got %f", *c.MinActionScore)
		}
	}

	if c.TemplateThreshold != nil {
		if *c.TemplateThreshold < 0 || *c.TemplateThreshold > 1 {
			return fmt.Errorf("template_threshold must be between 0 and 1, got %f", *c.TemplateThreshold)
		}
	}

	if c.DistanceGate != nil && *c.DistanceGate <= 0 {
		return fmt.Errorf("distance_gate must be positive, got %f", *c.DistanceGate)
	}

	if c.MaxActionsPerCycle != nil && *c.MaxActionsPerCycle < 0 {
		return fmt.Errorf("max_actions_per_cycle must be non-negative, got %d", *c.MaxActionsPerCycle)
	}

	if c.MaxTrackHistory != nil && *c.MaxTrackHistory < 2 {
		return fmt.Errorf("max_track_history must be at least 2, got %d", *c.MaxTrackHistory)
	}

	// Height band: low < optimum < high, all within [0,1].
	low, high, opt := c.GetBandLow(), c.GetBandHigh(), c.GetBandOptimum()
	if low < 0 || high > 1 || low >= high {
		return fmt.Errorf("height band [%f,%f] must satisfy 0 <= low < high <= 1", low, high)
	}
	if opt <= low || opt >= high {
		return fmt.Errorf("band_optimum %f must lie strictly inside [%f,%f]", opt, low, high)
	}

	// Validate every duration-typed field that is set.
	durations := map[string]*string{
		"max_staleness":          c.MaxStaleness,
		"max_predict_dt":         c.MaxPredictDt,
		"deleted_retention":      c.DeletedRetention,
		"dispatch_lead":          c.DispatchLead,
		"swipe_duration":         c.SwipeDuration,
		"swipe_cooldown":         c.SwipeCooldown,
		"track_cooldown":         c.TrackCooldown,
		"rapid_fire_persistence": c.RapidFirePersist,
		"rapid_fire_window":      c.RapidFireWindow,
		"stats_log_interval":     c.StatsLogInterval,
	}
	for name, v := range durations {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *BotConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.45
	}
	return *c.MinConfidence
}

// GetMinBoxAreaPx returns the min_box_area_px value or the default.
func (c *BotConfig) GetMinBoxAreaPx() float64 {
	if c.MinBoxAreaPx == nil {
		return 100
	}
	return *c.MinBoxAreaPx
}

// GetRegionWidth returns the region_width value or the default.
func (c *BotConfig) GetRegionWidth() float64 {
	if c.RegionWidth == nil {
		return 1280
	}
	return *c.RegionWidth
}

// GetRegionHeight returns the region_height value or the default.
func (c *BotConfig) GetRegionHeight() float64 {
	if c.RegionHeight == nil {
		return 720
	}
	return *c.RegionHeight
}

// GetMaxTracks returns the max_tracks value or the default.
func (c *BotConfig) GetMaxTracks() int {
	if c.MaxTracks == nil {
		return 64
	}
	return *c.MaxTracks
}

// GetDistanceGate returns the squared Mahalanobis gate or the default.
// The default is the chi-square 99% quantile for 2 degrees of freedom.
func (c *BotConfig) GetDistanceGate() float64 {
	if c.DistanceGate == nil {
		return 9.21
	}
	return *c.DistanceGate
}

// GetMaxPositionJumpPx returns the max_position_jump_px value or the default.
func (c *BotConfig) GetMaxPositionJumpPx() float64 {
	if c.MaxPositionJumpPx == nil {
		return 150
	}
	return *c.MaxPositionJumpPx
}

// GetMaxSpeedPxS returns the max_speed_px_s value or the default.
func (c *BotConfig) GetMaxSpeedPxS() float64 {
	if c.MaxSpeedPxS == nil {
		return 3000
	}
	return *c.MaxSpeedPxS
}

// GetProcessNoisePos returns the process_noise_pos value or the default.
func (c *BotConfig) GetProcessNoisePos() float64 {
	if c.ProcessNoisePos == nil {
		return 10
	}
	return *c.ProcessNoisePos
}

// GetProcessNoiseVel returns the process_noise_vel value or the default.
// The default is sized so the constant-velocity filter absorbs unmodelled
// gravity (~2000 px/s²) within a frame instead of lagging the arc.
func (c *BotConfig) GetProcessNoiseVel() float64 {
	if c.ProcessNoiseVel == nil {
		return 120000
	}
	return *c.ProcessNoiseVel
}

// GetMeasurementNoisePx returns the measurement_noise_px value or the default.
func (c *BotConfig) GetMeasurementNoisePx() float64 {
	if c.MeasurementNoisePx == nil {
		return 4
	}
	return *c.MeasurementNoisePx
}

// GetOcclusionInflation returns the occlusion_inflation value or the default.
func (c *BotConfig) GetOcclusionInflation() float64 {
	if c.OcclusionInflation == nil {
		return 1.3
	}
	return *c.OcclusionInflation
}

// GetMaxCovarianceDiag returns the max_covariance_diag value or the default.
// The default sits above the initial velocity variance for new tracks so the
// cap never squashes the acquisition prior.
func (c *BotConfig) GetMaxCovarianceDiag() float64 {
	if c.MaxCovarianceDiag == nil {
		return 4e6
	}
	return *c.MaxCovarianceDiag
}

// GetHitsToConfirm returns the hits_to_confirm value or the default.
func (c *BotConfig) GetHitsToConfirm() int {
	if c.HitsToConfirm == nil {
		return 2
	}
	return *c.HitsToConfirm
}

// GetMaxMisses returns the max_misses value or the default.
func (c *BotConfig) GetMaxMisses() int {
	if c.MaxMisses == nil {
		return 3
	}
	return *c.MaxMisses
}

// GetMaxMissesConfirmed returns the max_misses_confirmed value or the default.
func (c *BotConfig) GetMaxMissesConfirmed() int {
	if c.MaxMissesConfirmed == nil {
		return 10
	}
	return *c.MaxMissesConfirmed
}

// GetMaxStaleness returns the wall-clock retirement age or the default.
func (c *BotConfig) GetMaxStaleness() time.Duration {
	return durationOr(c.MaxStaleness, time.Second)
}

// GetMaxTrackHistory returns the max_track_history value or the default.
func (c *BotConfig) GetMaxTrackHistory() int {
	if c.MaxTrackHistory == nil {
		return 30
	}
	return *c.MaxTrackHistory
}

// GetMaxPredictDt returns the max_predict_dt value or the default.
func (c *BotConfig) GetMaxPredictDt() time.Duration {
	return durationOr(c.MaxPredictDt, 250*time.Millisecond)
}

// GetDeletedRetention returns the deleted_retention value or the default.
func (c *BotConfig) GetDeletedRetention() time.Duration {
	return durationOr(c.DeletedRetention, 5*time.Second)
}

// GetGravityEnabled returns the gravity_enabled value or the default.
func (c *BotConfig) GetGravityEnabled() bool {
	if c.GravityEnabled == nil {
		return true
	}
	return *c.GravityEnabled
}

// GetMaxAccelPxS2 returns the max_accel_px_s2 value or the default.
func (c *BotConfig) GetMaxAccelPxS2() float64 {
	if c.MaxAccelPxS2 == nil {
		return 4000
	}
	return *c.MaxAccelPxS2
}

// GetTargetClasses returns the target_classes value or the default.
func (c *BotConfig) GetTargetClasses() []string {
	if len(c.TargetClasses) == 0 {
		return []string{"fruit"}
	}
	return c.TargetClasses
}

// GetHazardClasses returns the hazard_classes value or the default.
func (c *BotConfig) GetHazardClasses() []string {
	if len(c.HazardClasses) == 0 {
		return []string{"bomb"}
	}
	return c.HazardClasses
}

// GetMaxActionsPerCycle returns the max_actions_per_cycle value or the default.
func (c *BotConfig) GetMaxActionsPerCycle() int {
	if c.MaxActionsPerCycle == nil {
		return 3
	}
	return *c.MaxActionsPerCycle
}

// GetDispatchLead returns the dispatch_lead value or the default.
func (c *BotConfig) GetDispatchLead() time.Duration {
	return durationOr(c.DispatchLead, 60*time.Millisecond)
}

// GetSafetyDistancePx returns the safety_distance_px value or the default.
func (c *BotConfig) GetSafetyDistancePx() float64 {
	if c.SafetyDistancePx == nil {
		return 60
	}
	return *c.SafetyDistancePx
}

// GetSafetyVerticalPx returns the safety_vertical_px value or the default.
func (c *BotConfig) GetSafetyVerticalPx() float64 {
	if c.SafetyVerticalPx == nil {
		return 25
	}
	return *c.SafetyVerticalPx
}

// GetMinSafety returns the min_safety value or the default.
func (c *BotConfig) GetMinSafety() float64 {
	if c.MinSafety == nil {
		return 0.6
	}
	return *c.MinSafety
}

// GetMinActionScore returns the min_action_score value or the default.
func (c *BotConfig) GetMinActionScore() float64 {
	if c.MinActionScore == nil {
		return 0.5
	}
	return *c.MinActionScore
}

// GetSwipeHalfLengthPx returns the swipe_half_length_px value or the default.
func (c *BotConfig) GetSwipeHalfLengthPx() float64 {
	if c.SwipeHalfLengthPx == nil {
		return 60
	}
	return *c.SwipeHalfLengthPx
}

// GetMinSwipeLengthPx returns the min_swipe_length_px value or the default.
func (c *BotConfig) GetMinSwipeLengthPx() float64 {
	if c.MinSwipeLengthPx == nil {
		return 40
	}
	return *c.MinSwipeLengthPx
}

// GetSwipeDuration returns the swipe_duration value or the default.
func (c *BotConfig) GetSwipeDuration() time.Duration {
	return durationOr(c.SwipeDuration, 20*time.Millisecond)
}

// GetHazardCorridorXPx returns the hazard_corridor_x_px value or the default.
func (c *BotConfig) GetHazardCorridorXPx() float64 {
	if c.HazardCorridorXPx == nil {
		return 80
	}
	return *c.HazardCorridorXPx
}

// GetHazardCorridorYPx returns the hazard_corridor_y_px value or the default.
func (c *BotConfig) GetHazardCorridorYPx() float64 {
	if c.HazardCorridorYPx == nil {
		return 30
	}
	return *c.HazardCorridorYPx
}

// GetHazardStopShortPx returns the hazard_stop_short_px value or the default.
func (c *BotConfig) GetHazardStopShortPx() float64 {
	if c.HazardStopShortPx == nil {
		return 25
	}
	return *c.HazardStopShortPx
}

// GetBandLow returns the band_low value or the default.
func (c *BotConfig) GetBandLow() float64 {
	if c.BandLow == nil {
		return 0.40
	}
	return *c.BandLow
}

// GetBandHigh returns the band_high value or the default.
func (c *BotConfig) GetBandHigh() float64 {
	if c.BandHigh == nil {
		return 0.70
	}
	return *c.BandHigh
}

// GetBandOptimum returns the band_optimum value or the default.
func (c *BotConfig) GetBandOptimum() float64 {
	if c.BandOptimum == nil {
		return 0.55
	}
	return *c.BandOptimum
}

// GetWeightSafety returns the weight_safety value or the default.
func (c *BotConfig) GetWeightSafety() float64 {
	if c.WeightSafety == nil {
		return 1.0
	}
	return *c.WeightSafety
}

// GetWeightConfidence returns the weight_confidence value or the default.
func (c *BotConfig) GetWeightConfidence() float64 {
	if c.WeightConfidence == nil {
		return 1.0
	}
	return *c.WeightConfidence
}

// GetWeightBand returns the weight_band value or the default.
func (c *BotConfig) GetWeightBand() float64 {
	if c.WeightBand == nil {
		return 1.0
	}
	return *c.WeightBand
}

// GetSwipeCooldown returns the global swipe cooldown or the default.
func (c *BotConfig) GetSwipeCooldown() time.Duration {
	return durationOr(c.SwipeCooldown, 100*time.Millisecond)
}

// GetTrackCooldown returns the per-track swipe cooldown or the default.
func (c *BotConfig) GetTrackCooldown() time.Duration {
	return durationOr(c.TrackCooldown, 400*time.Millisecond)
}

// GetRapidFireMinSlices returns the rapid_fire_min_slices value or the default.
func (c *BotConfig) GetRapidFireMinSlices() int {
	if c.RapidFireMinSlices == nil {
		return 2
	}
	return *c.RapidFireMinSlices
}

// GetRapidFirePersistence returns the rapid_fire_persistence value or the default.
func (c *BotConfig) GetRapidFirePersistence() time.Duration {
	return durationOr(c.RapidFirePersist, time.Second)
}

// GetRapidFireWindow returns the rapid_fire_window value or the default.
func (c *BotConfig) GetRapidFireWindow() time.Duration {
	return durationOr(c.RapidFireWindow, 3*time.Second)
}

// GetRapidFireDurScale returns the rapid_fire_duration_scale value or the default.
func (c *BotConfig) GetRapidFireDurScale() float64 {
	if c.RapidFireDurScale == nil {
		return 0.8
	}
	return *c.RapidFireDurScale
}

// GetRapidFireCdScale returns the rapid_fire_cooldown_scale value or the default.
func (c *BotConfig) GetRapidFireCdScale() float64 {
	if c.RapidFireCdScale == nil {
		return 0.5
	}
	return *c.RapidFireCdScale
}

// GetSwipeSteps returns the swipe_steps value or the default.
func (c *BotConfig) GetSwipeSteps() int {
	if c.SwipeSteps == nil {
		return 8
	}
	return *c.SwipeSteps
}

// GetGameCheckInterval returns the game_check_interval value or the default.
func (c *BotConfig) GetGameCheckInterval() int {
	if c.GameCheckInterval == nil {
		return 100
	}
	return *c.GameCheckInterval
}

// GetMaxCycleRateHz returns the max_cycle_rate_hz value or the default.
func (c *BotConfig) GetMaxCycleRateHz() float64 {
	if c.MaxCycleRateHz == nil {
		return 60
	}
	return *c.MaxCycleRateHz
}

// GetTemplateThreshold returns the template_threshold value or the default.
func (c *BotConfig) GetTemplateThreshold() float64 {
	if c.TemplateThreshold == nil {
		return 0.8
	}
	return *c.TemplateThreshold
}

// GetFPSWindow returns the fps_window value or the default.
func (c *BotConfig) GetFPSWindow() int {
	if c.FPSWindow == nil {
		return 30
	}
	return *c.FPSWindow
}

// GetStatsLogInterval returns the stats_log_interval value or the default.
func (c *BotConfig) GetStatsLogInterval() time.Duration {
	return durationOr(c.StatsLogInterval, 30*time.Second)
}
