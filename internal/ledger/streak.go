package ledger

import "time"

// DateLayout is the storage format of lastActivityDate.
const DateLayout = "2006-01-02"

// Gap classifies the distance between the last active day and today.
type Gap int

const (
	GapNone    Gap = iota // no prior activity
	GapSameDay            // already active today
	GapNextDay            // active yesterday
	GapBroken             // more than one day missed
)

func (g Gap) String() string {
	switch g {
	case GapNone:
		return "none"
	case GapSameDay:
		return "same-day"
	case GapNextDay:
		return "next-day"
	case GapBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// streakRule maps the current streak to the next one.
type streakRule func(current int) int

var streakTable = map[Gap]streakRule{
	GapNone: func(int) int { return 1 },
	GapSameDay: func(current int) int {
		if current < 1 {
			return 1
		}
		return current
	},
	GapNextDay: func(current int) int { return current + 1 },
	GapBroken:  func(int) int { return 1 },
}

// StreakChange records a streak transition.
type StreakChange struct {
	Gap  Gap `json:"-"`
	From int `json:"from"`
	To   int `json:"to"`
}

// Extended reports whether the streak grew by a consecutive day.
func (c StreakChange) Extended() bool {
	return c.Gap == GapNextDay
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a stored lastActivityDate. Full RFC 3339 timestamps are
// accepted for records written by older clients.
func ParseDay(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Day(t), true
	}
	return time.Time{}, false
}

// ClassifyGap compares the last active day against today. A zero last
// means no prior activity. A last day in the future is treated as today.
func ClassifyGap(last, today time.Time) Gap {
	if last.IsZero() {
		return GapNone
	}
	days := int(Day(today).Sub(Day(last)).Hours() / 24)
	switch {
	case days <= 0:
		return GapSameDay
	case days == 1:
		return GapNextDay
	default:
		return GapBroken
	}
}

// NextStreak applies the streak transition table.
func NextStreak(current int, last, today time.Time) StreakChange {
	gap := ClassifyGap(last, today)
	return StreakChange{Gap: gap, From: current, To: streakTable[gap](current)}
}
