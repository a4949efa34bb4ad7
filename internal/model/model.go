// Package model defines the documents stored in each collection.
package model

// Collection names.
const (
	Users      = "users"
	Challenges = "challenges"
	Responses  = "responses"
	History    = "user_challenge_history"
	Topics     = "topics"
	Feedback   = "feedback"
)

// Questions share the challenges collection; a question is a challenge with
// a single prompt.
const Questions = Challenges
