package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/checkerhub/checkerhub/internal/application/authz"
)

type ctxKey int

const callerKey ctxKey = iota

// caller is the authenticated principal attached by requireAuth.
type caller struct {
	authz.Actor
	Username  string
	SessionID uuid.UUID
}

func withCaller(ctx context.Context, c *caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

func callerFrom(ctx context.Context) *caller {
	c, _ := ctx.Value(callerKey).(*caller)
	return c
}

// actorOf returns the zero Actor on unauthenticated requests, which every
// authorization check rejects.
func actorOf(r *http.Request) authz.Actor {
	if c := callerFrom(r.Context()); c != nil {
		return c.Actor
	}
	return authz.Actor{}
}
