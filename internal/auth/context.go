package auth

import "context"

type actorKey struct{}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored in ctx, or the anonymous actor.
func ActorFromContext(ctx context.Context) Actor {
	if actor, ok := ctx.Value(actorKey{}).(Actor); ok {
		return actor
	}
	return Actor{}
}

// ActorID is the audit stamp for ctx: the actor id, empty when anonymous.
func ActorID(ctx context.Context) string {
	return ActorFromContext(ctx).ID
}
