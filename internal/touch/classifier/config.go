package classifier

import (
	"time"

	"github.com/banshee-data/palmreject/internal/config"
	"github.com/banshee-data/palmreject/internal/touch/cluster"
	"github.com/banshee-data/palmreject/internal/touch/geometry"
	"github.com/banshee-data/palmreject/internal/touch/handedness"
	"github.com/banshee-data/palmreject/internal/touch/ledger"
	"github.com/banshee-data/palmreject/internal/touch/timing"
)

// Config holds every classifier parameter. Times are in seconds and
// distances in pixels.
type Config struct {
	EventWindow float64 // switch event retention

	Cluster    cluster.Config
	Timing     timing.Config
	Handedness handedness.Config

	// Calibration for the geometry tests; nil uses the embedded table.
	Calibration *geometry.Calibration

	// Rule thresholds.
	HardwareCutoff        float64 // cluster pen/eraser probability that decides the label
	AmbiguousFloor        float64 // lower edge of the band where geometry may decide when locked
	GeometryPenThreshold  float64
	GeometryPalmThreshold float64
	ShortArcLength        float64
	ShortDuration         float64
	MovingArcLength       float64
	PalmRadiusMin         float64
	DumbStylus            bool

	// Tap isolation: a short tap followed this soon by another nearby tap
	// was a palm.
	TapMaxDuration       float64
	TapMaxTravel         float64
	TapIsolationInterval float64
	TapIsolationDistance float64

	// Smudge: a finger that began this soon before a nearby palm contact is
	// the palm's leading edge.
	SmudgeInterval float64
	SmudgeDistance float64

	// Finger sequence: a lone contact starting this soon after a finger
	// ended is taken as the next finger without waiting for switch timing.
	FingerSequenceInterval float64

	// Stability.
	NoReclassifyInterval     float64
	HandednessLockArcLength  float64
	HandednessLockConfidence float64

	// Deadlines.
	DebounceInterval       float64
	OffscreenPressInterval float64
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		EventWindow:              ledger.DefaultEventWindow,
		Cluster:                  cluster.DefaultConfig(),
		Timing:                   timing.DefaultConfig(),
		Handedness:               handedness.DefaultConfig(),
		HardwareCutoff:           0.8,
		AmbiguousFloor:           0.3,
		GeometryPenThreshold:     0.7,
		GeometryPalmThreshold:    0.3,
		ShortArcLength:           10,
		ShortDuration:            0.3,
		MovingArcLength:          50,
		PalmRadiusMin:            20,
		TapMaxDuration:           0.15,
		TapMaxTravel:             10,
		TapIsolationInterval:     0.3,
		TapIsolationDistance:     150,
		SmudgeInterval:           0.25,
		SmudgeDistance:           80,
		FingerSequenceInterval:   0.5,
		NoReclassifyInterval:     0.5,
		HandednessLockArcLength:  88,
		HandednessLockConfidence: 0.5,
		DebounceInterval:         0.015,
		OffscreenPressInterval:   0.5,
	}
}

func seconds(d time.Duration) float64 { return d.Seconds() }

// ConfigFromTuning builds a Config from a loaded TuningConfig. Parameters
// the tuning file does not cover keep their DefaultConfig values.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	c := DefaultConfig()
	c.EventWindow = seconds(cfg.GetEventWindow())

	maxDelay := seconds(cfg.GetMaxPenEventDelay())
	c.Cluster.JoinDistance = cfg.GetJoinDistance()
	c.Cluster.MaxClusters = cfg.GetMaxClusters()
	c.Cluster.CenterSmoothing = cfg.GetCenterSmoothing()
	c.Cluster.StaleInterval = seconds(cfg.GetStaleInterval())
	c.Cluster.PenStaleInterval = seconds(cfg.GetPenStaleInterval())
	c.Cluster.StalePenRadius = cfg.GetStalePenRadius()
	c.Cluster.MaxPenEventDelay = maxDelay
	c.Cluster.ExactOrderingLimit = cfg.GetExactOrderingLimit()
	c.Cluster.ScreenWidth = cfg.GetScreenWidth()
	c.Cluster.ScreenHeight = cfg.GetScreenHeight()
	c.Cluster.EdgeMargin = cfg.GetEdgeMargin()

	c.Timing.MaxPenEventDelay = maxDelay
	c.Timing.DownScale = cfg.GetDownScale()
	c.Timing.UpScale = cfg.GetUpScale()
	c.Timing.NullPrior = cfg.GetNullPrior()
	c.Timing.MissingEventProbability = cfg.GetMissingEventProbability()
	c.Timing.PenRadiusMax = cfg.GetPenRadiusMax()

	c.HardwareCutoff = cfg.GetHardwareCutoff()
	c.HandednessLockArcLength = cfg.GetHandednessLockArcLength()
	c.HandednessLockConfidence = cfg.GetHandednessLockConfidence()
	c.NoReclassifyInterval = seconds(cfg.GetNoReclassifyInterval())
	c.DebounceInterval = seconds(cfg.GetDebounceInterval())
	c.OffscreenPressInterval = seconds(cfg.GetOffscreenPressInterval())
	c.ShortArcLength = cfg.GetShortArcLength()
	c.ShortDuration = seconds(cfg.GetShortDuration())
	c.MovingArcLength = cfg.GetMovingArcLength()
	c.PalmRadiusMin = cfg.GetPalmRadiusMin()
	c.GeometryPenThreshold = cfg.GetGeometryPenThreshold()
	c.GeometryPalmThreshold = cfg.GetGeometryPalmThreshold()
	c.DumbStylus = cfg.GetDumbStylus()
	return c
}
