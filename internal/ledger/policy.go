package ledger

import (
	"errors"
	"fmt"
)

// Policy holds the XP constants shared by every submission path.
type Policy struct {
	XPPerUnit int `yaml:"xp_per_unit"`

	// CompletionBonus is awarded once when every required unit of a
	// multi-part activity has been answered.
	CompletionBonus int `yaml:"completion_bonus"`

	TimeBonusThreshold int `yaml:"time_bonus_threshold_secs"`
	TimeBonus          int `yaml:"time_bonus"`

	// LengthBonusThreshold is measured in characters of the average text answer.
	LengthBonusThreshold int `yaml:"length_bonus_threshold"`
	LengthBonus          int `yaml:"length_bonus"`

	CorrectBonus int `yaml:"correct_bonus"`
	XPPerLevel   int `yaml:"xp_per_level"`

	// StreakBonus is only used by Adjust, when a manual XP grant extends a streak.
	StreakBonus int `yaml:"streak_bonus"`
}

// DefaultPolicy returns the standard XP constants.
func DefaultPolicy() Policy {
	return Policy{
		XPPerUnit:            5,
		CompletionBonus:      10,
		TimeBonusThreshold:   120,
		TimeBonus:            5,
		LengthBonusThreshold: 200,
		LengthBonus:          3,
		CorrectBonus:         5,
		XPPerLevel:           100,
		StreakBonus:          5,
	}
}

// Validate checks that the policy cannot produce negative awards or a
// division by zero when computing levels.
func (p Policy) Validate() error {
	if p.XPPerLevel <= 0 {
		return fmt.Errorf("xp_per_level must be positive, got %d", p.XPPerLevel)
	}
	amounts := map[string]int{
		"xp_per_unit":               p.XPPerUnit,
		"completion_bonus":          p.CompletionBonus,
		"time_bonus_threshold_secs": p.TimeBonusThreshold,
		"time_bonus":                p.TimeBonus,
		"length_bonus_threshold":    p.LengthBonusThreshold,
		"length_bonus":              p.LengthBonus,
		"correct_bonus":             p.CorrectBonus,
		"streak_bonus":              p.StreakBonus,
	}
	var errs []error
	for name, v := range amounts {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", name, v))
		}
	}
	return errors.Join(errs...)
}

// LevelFor returns the level for a total XP amount.
func (p Policy) LevelFor(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/p.XPPerLevel + 1
}
