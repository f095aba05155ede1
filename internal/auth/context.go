package auth

import (
	"context"

	"yaoundeconnect.org/internal/roles"
)

type actorContextKey struct{}

// ContextWithActor attaches the authenticated actor to the context.
func ContextWithActor(ctx context.Context, actor roles.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the authenticated actor from the context.
func ActorFromContext(ctx context.Context) (roles.Actor, bool) {
	if ctx == nil {
		return roles.Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(roles.Actor)
	if !ok || actor.ID == "" {
		return roles.Actor{}, false
	}
	return actor, true
}
