package hints

import (
	"fmt"
	"strings"
)

// DefaultQuery is used when the learner asks for a hint without a question.
const DefaultQuery = "Can you give me a hint?"

const hintSystemPrompt = `You are a Socratic tutor helping a student develop critical thinking skills through a thought-provoking challenge.

Rules:
- Do not reveal any direct answers or solutions.
- Ask guiding questions that help the student think more deeply about the challenge.
- Encourage them to break the problem down and consider different perspectives.
- Be supportive and encouraging.
- Keep the hint brief: 2-3 sentences.`

const challengeSystemPrompt = `You are a tool for sparking critical thinking.

Rules:
- Generate one single, novel, thought-provoking question that connects the learner's interests.
- The question must be open-ended and encourage deep reflection.
- Do not use common or cliche examples.
- Keep the question concise (under %d characters).
- Do not repeat any question from the "already asked" list.`

func buildHintMessage(in HintInput) string {
	var b strings.Builder
	if in.Title != "" {
		fmt.Fprintf(&b, "Challenge: %s\n", in.Title)
	}
	b.WriteString(in.Text)

	query := strings.TrimSpace(in.UserQuery)
	if query == "" {
		query = DefaultQuery
	}
	fmt.Fprintf(&b, "\n\nThe student asked: %q\n\nProvide a Socratic hint.", query)
	return b.String()
}

func buildChallengeMessage(in ChallengeInput, cfg Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Interests: %s\n", strings.Join(in.Topics, ", "))
	b.WriteString("\nAlready asked:\n")
	b.WriteString(buildList(in.PriorQuestions, cfg.MaxPriorQuestions))
	return b.String()
}

// buildList numbers the most recent max items, or returns "None".
func buildList(items []string, max int) string {
	if len(items) == 0 {
		return "None"
	}
	if max > 0 && len(items) > max {
		items = items[len(items)-max:]
	}
	var b strings.Builder
	for i, q := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	return strings.TrimRight(b.String(), "\n")
}
