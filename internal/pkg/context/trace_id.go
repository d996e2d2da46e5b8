package context

import "context"

type traceIDKey struct{}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

func GetTraceID(ctx context.Context) string {
	if s, ok := ctx.Value(traceIDKey{}).(string); ok {
		return s
	}
	return ""
}
