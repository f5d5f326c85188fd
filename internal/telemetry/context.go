package telemetry

import "context"

type (
	turnIDKey       struct{}
	conversationKey struct{}
)

// WithTurnID returns a child context that carries the provided turn ID.
// If ctx is nil, context.Background() is used.
func WithTurnID(ctx context.Context, id string) context.Context {
	return with(ctx, turnIDKey{}, id)
}

// TurnIDFromContext returns the turn ID from ctx, if present and non-empty.
func TurnIDFromContext(ctx context.Context) (string, bool) {
	return lookup(ctx, turnIDKey{})
}

// WithConversation tags ctx with the conversation key events belong to.
func WithConversation(ctx context.Context, key string) context.Context {
	return with(ctx, conversationKey{}, key)
}

func ConversationFromContext(ctx context.Context) (string, bool) {
	return lookup(ctx, conversationKey{})
}

func with(ctx context.Context, key any, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func lookup(ctx context.Context, key any) (string, bool) {
	if ctx == nil {
		return "", false
	}
	s, ok := ctx.Value(key).(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
