package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the authenticated staff id in context. Authentication
// itself happens upstream; this core only records who performed an operation.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the staff id from context, zero when absent.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey{}).(int64)
	return id
}
