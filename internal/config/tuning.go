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
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for classifier tuning.
// Every field is optional; the Get* accessors supply the default for a
// field the JSON omits. Intervals are duration strings like "250ms".
type TuningConfig struct {
	// Ledger params
	EventWindow *string `json:"event_window,omitempty"`

	// Cluster params
	JoinDistance       *float64 `json:"join_distance,omitempty"`
	MaxClusters        *int     `json:"max_clusters,omitempty"`
	CenterSmoothing    *float64 `json:"center_smoothing,omitempty"`
	StaleInterval      *string  `json:"stale_interval,omitempty"`
	PenStaleInterval   *string  `json:"pen_stale_interval,omitempty"`
	StalePenRadius     *float64 `json:"stale_pen_radius,omitempty"`
	ExactOrderingLimit *int     `json:"exact_ordering_limit,omitempty"`

	// Edge thumb params (disabled while the screen size is zero)
	ScreenWidth  *float64 `json:"screen_width,omitempty"`
	ScreenHeight *float64 `json:"screen_height,omitempty"`
	EdgeMargin   *float64 `json:"edge_margin,omitempty"`

	// Event timing params
	MaxPenEventDelay        *string  `json:"max_pen_event_delay,omitempty"`
	DownScale               *float64 `json:"down_scale,omitempty"`
	UpScale                 *float64 `json:"up_scale,omitempty"`
	NullPrior               *float64 `json:"null_prior,omitempty"`
	MissingEventProbability *float64 `json:"missing_event_probability,omitempty"`
	PenRadiusMax            *float64 `json:"pen_radius_max,omitempty"`

	// Orchestrator params
	HardwareCutoff           *float64 `json:"hardware_cutoff,omitempty"`
	HandednessLockArcLength  *float64 `json:"handedness_lock_arc_length,omitempty"`
	HandednessLockConfidence *float64 `json:"handedness_lock_confidence,omitempty"`
	NoReclassifyInterval     *string  `json:"no_reclassify_interval,omitempty"`
	DebounceInterval         *string  `json:"debounce_interval,omitempty"`
	OffscreenPressInterval   *string  `json:"offscreen_press_interval,omitempty"`
	ShortArcLength           *float64 `json:"short_arc_length,omitempty"`
	ShortDuration            *string  `json:"short_duration,omitempty"`
	MovingArcLength          *float64 `json:"moving_arc_length,omitempty"`
	PalmRadiusMin            *float64 `json:"palm_radius_min,omitempty"`
	GeometryPenThreshold     *float64 `json:"geometry_pen_threshold,omitempty"`
	GeometryPalmThreshold    *float64 `json:"geometry_palm_threshold,omitempty"`
	DumbStylus               *bool    `json:"dumb_stylus,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
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

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/touch/classifier/
		"../../../../" + DefaultConfigPath, // from internal/touch/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	durations := map[string]*string{
		"event_window":             c.EventWindow,
		"stale_interval":           c.StaleInterval,
		"pen_stale_interval":       c.PenStaleInterval,
		"max_pen_event_delay":      c.MaxPenEventDelay,
		"no_reclassify_interval":   c.NoReclassifyInterval,
		"debounce_interval":        c.DebounceInterval,
		"offscreen_press_interval": c.OffscreenPressInterval,
		"short_duration":           c.ShortDuration,
	}
	for name, v := range durations {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *v)
		}
	}

	probabilities := map[string]*float64{
		"center_smoothing":           c.CenterSmoothing,
		"null_prior":                 c.NullPrior,
		"missing_event_probability":  c.MissingEventProbability,
		"hardware_cutoff":            c.HardwareCutoff,
		"handedness_lock_confidence": c.HandednessLockConfidence,
		"geometry_pen_threshold":     c.GeometryPenThreshold,
		"geometry_palm_threshold":    c.GeometryPalmThreshold,
	}
	for name, v := range probabilities {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}

	if c.MaxClusters != nil && *c.MaxClusters < 1 {
		return fmt.Errorf("max_clusters must be at least 1, got %d", *c.MaxClusters)
	}
	if c.ExactOrderingLimit != nil && (*c.ExactOrderingLimit < 1 || *c.ExactOrderingLimit > 9) {
		return fmt.Errorf("exact_ordering_limit must be between 1 and 9, got %d", *c.ExactOrderingLimit)
	}
	if c.DownScale != nil && *c.DownScale <= 0 {
		return fmt.Errorf("down_scale must be positive, got %f", *c.DownScale)
	}
	if c.UpScale != nil && *c.UpScale <= 0 {
		return fmt.Errorf("up_scale must be positive, got %f", *c.UpScale)
	}
	if c.GetGeometryPalmThreshold() > c.GetGeometryPenThreshold() {
		return fmt.Errorf("geometry_palm_threshold %f exceeds geometry_pen_threshold %f",
			c.GetGeometryPalmThreshold(), c.GetGeometryPenThreshold())
	}
	return nil
}

func getDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

func getFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func getInt(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// GetEventWindow returns how long switch events are retained.
func (c *TuningConfig) GetEventWindow() time.Duration {
	return getDuration(c.EventWindow, 2*time.Second)
}

// GetJoinDistance returns the cluster join distance in pixels.
func (c *TuningConfig) GetJoinDistance() float64 { return getFloat(c.JoinDistance, 100) }

// GetMaxClusters returns the active cluster cap.
func (c *TuningConfig) GetMaxClusters() int { return getInt(c.MaxClusters, 6) }

// GetCenterSmoothing returns the cluster center EMA factor.
func (c *TuningConfig) GetCenterSmoothing() float64 { return getFloat(c.CenterSmoothing, 0.15) }

// GetStaleInterval returns the cluster staleness interval.
func (c *TuningConfig) GetStaleInterval() time.Duration {
	return getDuration(c.StaleInterval, 500*time.Millisecond)
}

// GetPenStaleInterval returns the staleness interval for pen clusters.
func (c *TuningConfig) GetPenStaleInterval() time.Duration {
	return getDuration(c.PenStaleInterval, 250*time.Millisecond)
}

// GetStalePenRadius returns the lifted-pen attraction radius in pixels.
func (c *TuningConfig) GetStalePenRadius() float64 { return getFloat(c.StalePenRadius, 60) }

// GetExactOrderingLimit returns the largest cluster count ordered exactly.
func (c *TuningConfig) GetExactOrderingLimit() int { return getInt(c.ExactOrderingLimit, 6) }

// GetScreenWidth returns the screen width in pixels (0 disables edge thumbs).
func (c *TuningConfig) GetScreenWidth() float64 { return getFloat(c.ScreenWidth, 0) }

// GetScreenHeight returns the screen height in pixels.
func (c *TuningConfig) GetScreenHeight() float64 { return getFloat(c.ScreenHeight, 0) }

// GetEdgeMargin returns the bezel margin in pixels.
func (c *TuningConfig) GetEdgeMargin() float64 { return getFloat(c.EdgeMargin, 24) }

// GetMaxPenEventDelay returns the largest switch event arrival error.
func (c *TuningConfig) GetMaxPenEventDelay() time.Duration {
	return getDuration(c.MaxPenEventDelay, 250*time.Millisecond)
}

// GetDownScale returns the Laplace scale for tip-down arrival errors (s).
func (c *TuningConfig) GetDownScale() float64 { return getFloat(c.DownScale, 0.02) }

// GetUpScale returns the Laplace scale for tip-up arrival errors (s).
func (c *TuningConfig) GetUpScale() float64 { return getFloat(c.UpScale, 0.03) }

// GetNullPrior returns the prior of the no-visible-contact hypothesis.
func (c *TuningConfig) GetNullPrior() float64 { return getFloat(c.NullPrior, 0.05) }

// GetMissingEventProbability returns the pen probability once the down
// event is overdue.
func (c *TuningConfig) GetMissingEventProbability() float64 {
	return getFloat(c.MissingEventProbability, 0.05)
}

// GetPenRadiusMax returns the largest pen-sized contact radius.
func (c *TuningConfig) GetPenRadiusMax() float64 { return getFloat(c.PenRadiusMax, 6) }

// GetHardwareCutoff returns the switch-evidence probability above which a
// cluster takes the hardware label.
func (c *TuningConfig) GetHardwareCutoff() float64 { return getFloat(c.HardwareCutoff, 0.8) }

// GetHandednessLockArcLength returns the ended-pen arc length needed to
// lock handedness.
func (c *TuningConfig) GetHandednessLockArcLength() float64 {
	return getFloat(c.HandednessLockArcLength, 88)
}

// GetHandednessLockConfidence returns the direction confidence needed to
// lock handedness.
func (c *TuningConfig) GetHandednessLockConfidence() float64 {
	return getFloat(c.HandednessLockConfidence, 0.5)
}

// GetNoReclassifyInterval returns how long after ending a contact may
// still change label.
func (c *TuningConfig) GetNoReclassifyInterval() time.Duration {
	return getDuration(c.NoReclassifyInterval, 500*time.Millisecond)
}

// GetDebounceInterval returns the switch glitch window.
func (c *TuningConfig) GetDebounceInterval() time.Duration {
	return getDuration(c.DebounceInterval, 15*time.Millisecond)
}

// GetOffscreenPressInterval returns how long a tip-down without a contact
// must last to count as an offscreen press.
func (c *TuningConfig) GetOffscreenPressInterval() time.Duration {
	return getDuration(c.OffscreenPressInterval, 500*time.Millisecond)
}

// GetShortArcLength returns the arc length below which a stroke is short.
func (c *TuningConfig) GetShortArcLength() float64 { return getFloat(c.ShortArcLength, 10) }

// GetShortDuration returns the duration below which a stroke is short.
func (c *TuningConfig) GetShortDuration() time.Duration {
	return getDuration(c.ShortDuration, 300*time.Millisecond)
}

// GetMovingArcLength returns the arc length above which a contact is moving.
func (c *TuningConfig) GetMovingArcLength() float64 { return getFloat(c.MovingArcLength, 50) }

// GetPalmRadiusMin returns the mean contact radius at which a cluster is a palm.
func (c *TuningConfig) GetPalmRadiusMin() float64 { return getFloat(c.PalmRadiusMin, 20) }

// GetGeometryPenThreshold returns the geometry score above which a stroke is a pen.
func (c *TuningConfig) GetGeometryPenThreshold() float64 {
	return getFloat(c.GeometryPenThreshold, 0.7)
}

// GetGeometryPalmThreshold returns the geometry score below which a stroke is a palm.
func (c *TuningConfig) GetGeometryPalmThreshold() float64 {
	return getFloat(c.GeometryPalmThreshold, 0.3)
}

// GetDumbStylus reports whether the stylus has no switch.
func (c *TuningConfig) GetDumbStylus() bool {
	if c.DumbStylus == nil {
		return false
	}
	return *c.DumbStylus
}
