package history

import "context"

// SystemActor is recorded when no acting user is known.
const SystemActor = "system"

type actorKey struct{}

// WithActor returns a copy of ctx carrying the id of the user performing the change.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom returns the acting user id stored in ctx, or SystemActor.
func ActorFrom(ctx context.Context) string {
	if id, ok := ctx.Value(actorKey{}).(string); ok && id != "" {
		return id
	}
	return SystemActor
}
