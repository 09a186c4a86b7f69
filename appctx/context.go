package appctx

import "context"

// ContextKey is the shared key type for request-scoped values.
type ContextKey string

const (
	ContextKeyCorrelationId ContextKey = "correlationId"
	ContextKeyTriggeredBy   ContextKey = "triggeredBy"
)

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func GetInt(ctx context.Context, key ContextKey) (int, bool) {
	v, ok := ctx.Value(key).(int)
	return v, ok
}
