package model

import (
	"github.com/abhisek/synapse/internal/ledger"
	"github.com/abhisek/synapse/internal/store"
)

// User is a learner profile and its progress counters.
type User struct {
	store.Meta
	Email                    string   `json:"email"`
	Username                 string   `json:"username,omitempty"`
	XP                       int      `json:"xp"`
	Level                    int      `json:"level"`
	CurrentStreak            int      `json:"currentStreak"`
	LongestStreak            int      `json:"longestStreak"`
	LastActivityDate         string   `json:"lastActivityDate,omitempty"`
	TotalChallengesCompleted int      `json:"totalChallengesCompleted"`
	SelectedTopics           []string `json:"selectedTopics"`
	OnboardingCompleted      bool     `json:"onboardingCompleted"`
	EmailVerified            bool     `json:"emailVerified"`
}

// NewUser returns a profile with gamification defaults.
func NewUser(id, email, username string) *User {
	return &User{
		Meta:           store.Meta{ID: id},
		Email:          email,
		Username:       username,
		Level:          1,
		SelectedTopics: []string{},
	}
}

// DisplayName is the public name shown on leaderboards.
func (u *User) DisplayName() string {
	if u.Username == "" {
		return "Anonymous"
	}
	return u.Username
}

// Stats extracts the ledger view of the profile. An unparseable
// lastActivityDate is treated as no prior activity.
func (u *User) Stats() ledger.Stats {
	last, _ := ledger.ParseDay(u.LastActivityDate)
	return ledger.Stats{
		XP:             u.XP,
		Level:          u.Level,
		CurrentStreak:  u.CurrentStreak,
		LongestStreak:  u.LongestStreak,
		LastActivity:   last,
		CompletedCount: u.TotalChallengesCompleted,
	}
}

// StatsPatch is the merge patch that persists s onto a user document.
func StatsPatch(s ledger.Stats) map[string]any {
	patch := map[string]any{
		"xp":                       s.XP,
		"level":                    s.Level,
		"currentStreak":            s.CurrentStreak,
		"longestStreak":            s.LongestStreak,
		"totalChallengesCompleted": s.CompletedCount,
	}
	if !s.LastActivity.IsZero() {
		patch["lastActivityDate"] = s.LastActivity.Format(ledger.DateLayout)
	}
	return patch
}
