package ledger

import (
	"strings"
	"unicode/utf8"
)

// UnitKind distinguishes free-text prompts from multiple-choice items.
type UnitKind string

const (
	KindText   UnitKind = "text"
	KindChoice UnitKind = "mcq"
)

// Unit is one answered question or prompt within an activity.
type Unit struct {
	Kind            UnitKind
	Answer          string
	ThinkingSeconds int

	// CorrectAnswer is only consulted for KindChoice.
	CorrectAnswer string
}

// Correct reports whether a multiple-choice unit was answered correctly.
func (u Unit) Correct() bool {
	return u.Kind == KindChoice && AnswerMatches(u.Answer, u.CorrectAnswer)
}

// Activity is a finalized submission: the answered units plus the number of
// units the activity requires. RequiredUnits is zero for single-prompt
// activities, which never earn a completion bonus.
type Activity struct {
	Units         []Unit
	RequiredUnits int
}

// Breakdown itemizes the XP awarded for an activity.
type Breakdown struct {
	Base        int `json:"base"`
	Completion  int `json:"completion"`
	Time        int `json:"time"`
	Length      int `json:"length"`
	Correctness int `json:"correctness"`

	Answered     int `json:"answered"`
	CorrectCount int `json:"correctCount"`
	ThinkingSecs int `json:"thinkingSeconds"`
}

// Total returns the sum of all awarded components.
func (b Breakdown) Total() int {
	return b.Base + b.Completion + b.Time + b.Length + b.Correctness
}

// AnswerMatches compares a submitted choice against the stored answer,
// ignoring surrounding whitespace and case.
func AnswerMatches(submitted, correct string) bool {
	s := strings.ToLower(strings.TrimSpace(submitted))
	c := strings.ToLower(strings.TrimSpace(correct))
	return c != "" && s == c
}

// Score computes the XP breakdown for a finalized activity.
func (p Policy) Score(a Activity) Breakdown {
	var b Breakdown
	b.Answered = len(a.Units)
	if b.Answered == 0 {
		return b
	}
	b.Base = p.XPPerUnit * b.Answered

	if a.RequiredUnits > 0 && b.Answered == a.RequiredUnits {
		b.Completion = p.CompletionBonus
	}

	var textChars, textUnits int
	for _, u := range a.Units {
		if u.ThinkingSeconds > 0 {
			b.ThinkingSecs += u.ThinkingSeconds
		}
		if u.Kind == KindChoice {
			if u.Correct() {
				b.CorrectCount++
			}
			continue
		}
		textUnits++
		textChars += utf8.RuneCountInString(u.Answer)
	}

	if b.ThinkingSecs >= p.TimeBonusThreshold {
		b.Time = p.TimeBonus
	}
	if textUnits > 0 && textChars/textUnits >= p.LengthBonusThreshold {
		b.Length = p.LengthBonus
	}
	b.Correctness = p.CorrectBonus * b.CorrectCount
	return b
}
