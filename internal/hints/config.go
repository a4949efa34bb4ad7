package hints

// Config controls the Generator.
type Config struct {
	// MaxTokens is the token budget for a hint.
	MaxTokens int

	// ChallengeMaxTokens is the token budget for a generated challenge.
	ChallengeMaxTokens int

	// Temperature controls randomness (0.0-1.0).
	Temperature float64

	// MaxQuestionLen bounds generated questions, in characters.
	MaxQuestionLen int

	// MaxPriorQuestions is how many earlier generated questions are listed
	// in the prompt to avoid repeats.
	MaxPriorQuestions int
}

func DefaultConfig() Config {
	return Config{
		MaxTokens:          256,
		ChallengeMaxTokens: 512,
		Temperature:        0.8,
		MaxQuestionLen:     200,
		MaxPriorQuestions:  8,
	}
}
