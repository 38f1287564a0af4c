package grpcserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/eventcert/internal/errs"
	"github.com/and161185/eventcert/internal/model"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "127.0.0.1:12345" }

func TestLoggingUnary_Passthrough(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := LoggingUnary(log)

	ctx := context.Background()

	ctx = peer.NewContext(ctx, &peer.Peer{Addr: fakeAddr{}})

	h := func(ctx context.Context, req any) (any, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: "/eventcert.v1.Other/Method"}

	resp, err := ic(ctx, "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s, _ := resp.(string); s != "ok" {
		t.Fatalf("resp mismatch: %v", resp)
	}

	wantErr := errors.New("boom")
	hErr := func(ctx context.Context, req any) (any, error) { return nil, wantErr }
	_, err = ic(ctx, "req", info, hErr)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got: %v", err)
	}
}

func TestRecoverUnary_CatchesPanic(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := RecoverUnary(log)

	ctx := context.Background()
	info := &grpc.UnaryServerInfo{FullMethod: "/eventcert.v1.Other/Panic"}

	panicH := func(ctx context.Context, req any) (any, error) {
		panic("oh no")
	}

	_, err := ic(ctx, "req", info, panicH)
	if err == nil {
		t.Fatalf("expected error from panic")
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Internal {
		t.Fatalf("want codes.Internal, got: %v", err)
	}
}

func TestRecoverUnary_NoPanicPassThrough(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := RecoverUnary(log)

	ctx := context.Background()
	info := &grpc.UnaryServerInfo{FullMethod: "/eventcert.v1.Other/Ok"}

	h := func(ctx context.Context, req any) (any, error) { return 42, nil }

	resp, err := ic(ctx, "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.(int) != 42 {
		t.Fatalf("resp mismatch: %v", resp)
	}
}

func TestLoggingUnary_DurationFieldDoesNotBlock(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := LoggingUnary(log)

	ctx := context.Background()
	info := &grpc.UnaryServerInfo{FullMethod: "/eventcert.v1.Other/Sleep"}
	h := func(ctx context.Context, req any) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "done", nil
	}

	start := time.Now()
	resp, err := ic(ctx, "req", info, h)
	if err != nil || resp.(string) != "done" {
		t.Fatalf("unexpected result: %v, %v", resp, err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("duration should reflect handler time")
	}
}

type fakeAuth struct {
	actor model.Actor
	token string
}

func (f *fakeAuth) Authenticate(_ context.Context, raw string) (model.Actor, error) {
	if raw != f.token {
		return model.Actor{}, errs.ErrUnauthorized
	}
	return f.actor, nil
}

func TestAuthUnary(t *testing.T) {
	t.Parallel()

	who := model.Actor{UserID: uuid.Must(uuid.NewV4()), Role: model.RoleStudent}
	ic := AuthUnary(&fakeAuth{actor: who, token: "good"}, MethodVerify)

	var seen model.Actor
	var seenOK bool
	h := func(ctx context.Context, req any) (any, error) {
		seen, seenOK = ActorFromCtx(ctx)
		return "ok", nil
	}
	withToken := func(tok string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+tok))
	}
	protected := &grpc.UnaryServerInfo{FullMethod: FullMethod("IssueCertificate")}

	if _, err := ic(withToken("good"), nil, protected, h); err != nil {
		t.Fatalf("good token: %v", err)
	}
	if !seenOK || seen != who {
		t.Fatalf("actor not propagated: %+v %v", seen, seenOK)
	}

	for name, ctx := range map[string]context.Context{
		"no metadata": context.Background(),
		"bad token":   withToken("bad"),
	} {
		if _, err := ic(ctx, nil, protected, h); status.Code(err) != codes.Unauthenticated {
			t.Fatalf("%s: want Unauthenticated, got %v", name, err)
		}
	}

	seenOK = false
	if _, err := ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: MethodVerify}, h); err != nil || seenOK {
		t.Fatalf("public method: err=%v actor=%v", err, seenOK)
	}
	if _, err := ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, h); err != nil {
		t.Fatalf("foreign service must pass through: %v", err)
	}
}
