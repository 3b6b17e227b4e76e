package agents

import (
	"fmt"

	"github.com/talgya/mini-room/internal/phi"
)

// Tuning holds the behaviour knobs of the crowd walker. Distances are in
// room units, durations in ticks (frames at dt = 1).
type Tuning struct {
	Speed       float64 `yaml:"speed" json:"speed"`               // Base walking speed per tick
	SpeedJitter float64 `yaml:"speed_jitter" json:"speed_jitter"` // Fractional per-actor variation
	Epsilon     float64 `yaml:"epsilon" json:"epsilon"`           // Arrival tolerance

	PersonalSpace  float64 `yaml:"personal_space" json:"personal_space"`   // Minimum distance between actors
	EngageDistance float64 `yaml:"engage_distance" json:"engage_distance"` // Upper edge of the engagement band

	PauseMin      float64 `yaml:"pause_min" json:"pause_min"`
	PauseMax      float64 `yaml:"pause_max" json:"pause_max"`
	ShortPauseMin float64 `yaml:"short_pause_min" json:"short_pause_min"` // Wait-and-retry after a blocked step
	ShortPauseMax float64 `yaml:"short_pause_max" json:"short_pause_max"`

	ConverseChance   float64 `yaml:"converse_chance" json:"converse_chance"` // Per-tick scan probability
	ConverseMinTicks float64 `yaml:"converse_min_ticks" json:"converse_min_ticks"`
	ConverseMaxTicks float64 `yaml:"converse_max_ticks" json:"converse_max_ticks"`

	HotspotBias         float64 `yaml:"hotspot_bias" json:"hotspot_bias"`                 // Chance a destination comes from a matching hotspot
	WallMargin          float64 `yaml:"wall_margin" json:"wall_margin"`                   // Uniform destinations stay this far from the bounds
	DestinationAttempts int     `yaml:"destination_attempts" json:"destination_attempts"` // Bounded resampling

	BobHeight    float64 `yaml:"bob_height" json:"bob_height"`
	BobFrequency float64 `yaml:"bob_frequency" json:"bob_frequency"` // Radians of walk phase per unit walked
}

// DefaultTuning returns the lounge defaults, tuned for 60 fps.
func DefaultTuning() Tuning {
	return Tuning{
		Speed:       0.02,
		SpeedJitter: phi.Agnosis,
		Epsilon:     0.01,

		PersonalSpace:  0.4,
		EngageDistance: 1.2,

		PauseMin:      120,
		PauseMax:      480,
		ShortPauseMin: 20,
		ShortPauseMax: 60,

		ConverseChance:   0.01,
		ConverseMinTicks: 180,
		ConverseMaxTicks: 600,

		HotspotBias:         phi.Matter,
		WallMargin:          0.6,
		DestinationAttempts: 8,

		BobHeight:    0.05,
		BobFrequency: 12,
	}
}

// Validate reports the first inconsistent setting.
func (t Tuning) Validate() error {
	switch {
	case t.Speed <= 0:
		return fmt.Errorf("speed must be positive, got %v", t.Speed)
	case t.SpeedJitter < 0 || t.SpeedJitter >= 1:
		return fmt.Errorf("speed_jitter must be in [0, 1), got %v", t.SpeedJitter)
	case t.Epsilon <= 0:
		return fmt.Errorf("epsilon must be positive, got %v", t.Epsilon)
	case t.PersonalSpace < 0:
		return fmt.Errorf("personal_space must not be negative, got %v", t.PersonalSpace)
	case t.EngageDistance <= t.PersonalSpace:
		return fmt.Errorf("engage_distance (%v) must exceed personal_space (%v)", t.EngageDistance, t.PersonalSpace)
	case t.PauseMin < 0 || t.PauseMax < t.PauseMin:
		return fmt.Errorf("pause range [%v, %v] is invalid", t.PauseMin, t.PauseMax)
	case t.ShortPauseMin < 0 || t.ShortPauseMax < t.ShortPauseMin:
		return fmt.Errorf("short pause range [%v, %v] is invalid", t.ShortPauseMin, t.ShortPauseMax)
	case t.ConverseChance < 0 || t.ConverseChance > 1:
		return fmt.Errorf("converse_chance must be a probability, got %v", t.ConverseChance)
	case t.ConverseMinTicks <= 0 || t.ConverseMaxTicks < t.ConverseMinTicks:
		return fmt.Errorf("conversation range [%v, %v] is invalid", t.ConverseMinTicks, t.ConverseMaxTicks)
	case t.HotspotBias < 0 || t.HotspotBias > 1:
		return fmt.Errorf("hotspot_bias must be a probability, got %v", t.HotspotBias)
	case t.WallMargin < 0:
		return fmt.Errorf("wall_margin must not be negative, got %v", t.WallMargin)
	case t.DestinationAttempts < 1:
		return fmt.Errorf("destination_attempts must be at least 1, got %d", t.DestinationAttempts)
	}
	return nil
}
