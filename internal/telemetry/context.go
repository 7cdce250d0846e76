package telemetry

import "context"

type (
	turnIDKey struct{}
	convIDKey struct{}
)

// WithTurnID returns a child context that carries the provided turn ID.
// If ctx is nil, context.Background() is used
func WithTurnID(ctx context.Context, id string) context.Context {
	return withString(ctx, turnIDKey{}, id)
}

// TurnIDFromContext returns the turn ID from ctx, if present.
// Returns "", false if the value is missing or not a non-empty string.
func TurnIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, turnIDKey{})
}

// WithConvID returns a child context that carries a conversation ID.
func WithConvID(ctx context.Context, id string) context.Context {
	return withString(ctx, convIDKey{}, id)
}

func ConvIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, convIDKey{})
}

func withString(ctx context.Context, key any, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func stringFrom(ctx context.Context, key any) (string, bool) {
	if ctx == nil {
		return "", false
	}
	s, ok := ctx.Value(key).(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
