package model

import (
	"fmt"
	"time"

	"github.com/abhisek/synapse/internal/store"
)

// LedgerState tracks whether a submission's XP has been applied to the
// user. pending -> applying is the claim; applying -> applied the commit.
type LedgerState string

const (
	LedgerPending  LedgerState = "pending"
	LedgerApplying LedgerState = "applying"
	LedgerApplied  LedgerState = "applied"
)

// Response is one user's answer to a challenge, a question, or one
// sub-question of a challenge.
type Response struct {
	store.Meta
	UserID        string      `json:"userId"`
	ChallengeID   string      `json:"challengeId,omitempty"`
	QuestionID    string      `json:"questionId,omitempty"`
	QuestionIndex *int        `json:"questionIndex,omitempty"`
	QuestionText  string      `json:"questionText,omitempty"`
	TopicID       string      `json:"topicId,omitempty"`
	ResponseText  string      `json:"responseText,omitempty"`
	Answer        string      `json:"answer,omitempty"`
	ThinkingTime  int         `json:"thinkingTime"`
	IsCorrect     *bool       `json:"isCorrect,omitempty"`
	XPEarned      int         `json:"xpEarned"`
	SubmittedAt   time.Time   `json:"submittedAt"`
	Retries       int         `json:"retries"`
	LedgerState   LedgerState `json:"ledgerState,omitempty"`
}

// ActivityID is the challenge or question the response answers.
func (r *Response) ActivityID() string {
	if r.ChallengeID != "" {
		return r.ChallengeID
	}
	return r.QuestionID
}

// SubQuestionKey is the idempotency key of one sub-question answer.
func SubQuestionKey(userID, challengeID string, index int) string {
	return store.IdempotencyKey(userID, challengeID, fmt.Sprintf("q%d", index))
}

type HistoryStatus string

const (
	HistoryInProgress HistoryStatus = "in_progress"
	HistoryCompleted  HistoryStatus = "completed"
)

// HistoryRecord links a user to a challenge they were shown. It is keyed by
// store.IdempotencyKey(userID, challengeID).
type HistoryRecord struct {
	store.Meta
	UserID         string        `json:"userId"`
	ChallengeID    string        `json:"challengeId"`
	QuestionID     string        `json:"questionId,omitempty"`
	Status         HistoryStatus `json:"status"`
	StartedAt      time.Time     `json:"startedAt"`
	CompletedAt    *time.Time    `json:"completedAt,omitempty"`
	XPEarned       int           `json:"xpEarned"`
	CompletionTime int           `json:"completionTime"`
	ResponseID     string        `json:"responseId,omitempty"`

	// LedgerState gates the one-time award of a multi-question challenge.
	LedgerState LedgerState `json:"ledgerState,omitempty"`
}

// NewHistory returns an in-progress record for userID and challengeID.
func NewHistory(userID, challengeID string, now time.Time) *HistoryRecord {
	return &HistoryRecord{
		UserID:      userID,
		ChallengeID: challengeID,
		QuestionID:  challengeID,
		Status:      HistoryInProgress,
		StartedAt:   now,
		LedgerState: LedgerPending,
	}
}
