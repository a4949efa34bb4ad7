// Package ledger computes XP, level and streak transitions for a user's
// progress. All functions are pure; callers load and persist Stats.
package ledger

import "time"

// Stats are the persisted progress counters of a user.
type Stats struct {
	XP             int
	Level          int
	CurrentStreak  int
	LongestStreak  int
	LastActivity   time.Time // zero when the user has never been active
	CompletedCount int
}

// Outcome is the result of applying an award to Stats.
type Outcome struct {
	Before    Stats
	After     Stats
	Breakdown Breakdown
	XPEarned  int
	LeveledUp bool
	Streak    StreakChange

	// StreakBonus is non-zero only for Adjust.
	StreakBonus int
}

// Apply awards a scored activity. completes increments the completed
// challenge counter.
func (p Policy) Apply(s Stats, b Breakdown, today time.Time, completes bool) Outcome {
	return p.award(s, b, b.Total(), 0, today, completes)
}

// Adjust grants a fixed amount of XP and touches the streak. Extending the
// streak by a consecutive day earns StreakBonus on top. Negative amounts are
// ignored so XP never decreases.
func (p Policy) Adjust(s Stats, xpToAdd int, today time.Time) Outcome {
	if xpToAdd < 0 {
		xpToAdd = 0
	}
	bonus := 0
	if ClassifyGap(s.LastActivity, today) == GapNextDay {
		bonus = p.StreakBonus
	}
	return p.award(s, Breakdown{}, xpToAdd+bonus, bonus, today, false)
}

func (p Policy) award(s Stats, b Breakdown, earned, streakBonus int, today time.Time, completes bool) Outcome {
	before := s
	if before.Level < 1 {
		before.Level = p.LevelFor(before.XP)
	}

	after := before
	after.XP = before.XP + earned
	after.Level = p.LevelFor(after.XP)

	change := NextStreak(before.CurrentStreak, before.LastActivity, today)
	after.CurrentStreak = change.To
	after.LongestStreak = max(before.LongestStreak, change.To)
	after.LastActivity = Day(today)
	if completes {
		after.CompletedCount++
	}

	return Outcome{
		Before:      before,
		After:       after,
		Breakdown:   b,
		XPEarned:    earned,
		LeveledUp:   after.Level > before.Level,
		Streak:      change,
		StreakBonus: streakBonus,
	}
}
