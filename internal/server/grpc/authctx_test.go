package grpcserver

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc/metadata"

	"github.com/and161185/eventcert/internal/model"
)

func TestWithActor_And_ActorFromCtx(t *testing.T) {
	t.Parallel()

	if a, ok := ActorFromCtx(context.Background()); ok || a.UserID != uuid.Nil {
		t.Fatalf("expected no actor in empty ctx")
	}

	want := model.Actor{UserID: uuid.Must(uuid.NewV4()), Role: model.RoleSuperAdmin}
	ctx := WithActor(context.Background(), want)

	got, ok := ActorFromCtx(ctx)
	if !ok {
		t.Fatalf("expected actor in ctx")
	}
	if got != want {
		t.Fatalf("mismatch: got %+v, want %+v", got, want)
	}

	bad := context.WithValue(context.Background(), actorKey, "not-an-actor")
	if a, ok := ActorFromCtx(bad); ok || a.UserID != uuid.Nil {
		t.Fatalf("expected miss on wrong typed value")
	}
}

func Test_bearerTokenFromMD_OkAndErrors(t *testing.T) {
	t.Parallel()

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer abc.def.ghi"))
	got, err := bearerTokenFromMD(ctx)
	if err != nil || got != "abc.def.ghi" {
		t.Fatalf("ok: got=%q err=%v", got, err)
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "bearer xyz"))
	if got, err = bearerTokenFromMD(ctx); err != nil || got != "xyz" {
		t.Fatalf("lowercase scheme: got=%q err=%v", got, err)
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic foo"))
	if _, err := bearerTokenFromMD(ctx); err == nil {
		t.Fatalf("want error on non-bearer")
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer   "))
	if _, err := bearerTokenFromMD(ctx); err == nil {
		t.Fatalf("want error on empty token")
	}

	if _, err := bearerTokenFromMD(context.Background()); err == nil {
		t.Fatalf("want error on no metadata")
	}
}
