package grpcserver

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/and161185/eventcert/internal/model"
)

type ctxKey string

const actorKey ctxKey = "ec.actor"

// WithActor stores the authenticated caller in context.
func WithActor(ctx context.Context, a model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromCtx fetches the caller stored by AuthUnary.
func ActorFromCtx(ctx context.Context) (model.Actor, bool) {
	v := ctx.Value(actorKey)
	if v == nil {
		return model.Actor{}, false
	}
	a, ok := v.(model.Actor)
	return a, ok
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}
