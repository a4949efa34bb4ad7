package llm

import "context"

type purposeKey struct{}

// WithPurpose labels calls made with ctx, e.g. "hint" or "challenge-gen".
// The label is stored on each llm_events record.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
