package app

import (
	"context"
	"strings"
)

// actorContextKey stores the authenticated caller identity.
type actorContextKey struct{}

// WithActor attaches a normalized actor id to context. Transports call it once per request so
// every history record written underneath is attributed.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, strings.TrimSpace(actorID))
}

// ActorFromContext returns the actor id attached by WithActor.
func ActorFromContext(ctx context.Context) (string, bool) {
	actorID, ok := ctx.Value(actorContextKey{}).(string)
	if !ok || actorID == "" {
		return "", false
	}
	return actorID, true
}

// resolveActor prefers an explicit actor id and falls back to context metadata.
func resolveActor(ctx context.Context, explicit string) (string, error) {
	if actorID := strings.TrimSpace(explicit); actorID != "" {
		return actorID, nil
	}
	if actorID, ok := ActorFromContext(ctx); ok {
		return actorID, nil
	}
	return "", ErrInvalidActorID
}
