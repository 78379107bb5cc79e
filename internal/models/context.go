package models

import "context"

type actorContextKey struct{}

// WithActor attaches the id of whoever triggered a workflow (e.g. an admin
// issuing a refund) so every transaction it records carries actor_id.
func WithActor(ctx context.Context, actorId string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorId)
}

// ActorFromContext returns the actor id, or "" if none was attached.
func ActorFromContext(ctx context.Context) string {
	actorId, _ := ctx.Value(actorContextKey{}).(string)
	return actorId
}
