package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/eventcert/internal/config"
	"github.com/and161185/eventcert/internal/events"
	"github.com/and161185/eventcert/internal/limiter"
	"github.com/and161185/eventcert/internal/model"
	"github.com/and161185/eventcert/internal/repository/postgres"
	"github.com/and161185/eventcert/internal/service"
	"github.com/and161185/eventcert/internal/storage"
)

const testJWTKey = "0123456789abcdef0123456789abcdef"

func setEnv(t *testing.T) {
	t.Helper()
	configFile = ""
	t.Setenv("EVENTCERT_DSN", "postgres://u:p@localhost:5432/events")
	t.Setenv("EVENTCERT_JWT_KEY", testJWTKey)
}

func TestTokenCommand(t *testing.T) {
	setEnv(t)
	id := uuid.Must(uuid.NewV4())

	cmd := tokenCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--user", id.String(), "--role", model.RoleSuperAdmin})
	require.NoError(t, cmd.Execute())

	actor, err := service.NewAuthService([]byte(testJWTKey)).Authenticate(context.Background(), strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Equal(t, model.Actor{UserID: id, Role: model.RoleSuperAdmin}, actor)
	require.Contains(t, errOut.String(), "expires")
}

func TestTokenCommand_BadUser(t *testing.T) {
	setEnv(t)
	cmd := tokenCommand()
	cmd.SetArgs([]string{"--user", "alice"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}

func TestOpenBackends(t *testing.T) {
	pub, err := openPublisher(config.KafkaConfig{})
	require.NoError(t, err)
	require.IsType(t, events.Nop{}, pub)

	st, closeStore, err := openStore(context.Background(), config.StorageConfig{Backend: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	defer closeStore()
	require.IsType(t, &storage.Local{}, st)

	cfg := config.Default()
	lim, closeLim, err := openLimiter(cfg, &postgres.DB{})
	require.NoError(t, err)
	closeLim()
	require.IsType(t, &limiter.PG{}, lim)

	cfg.Limiter.Backend = "redis"
	cfg.RedisURL = "redis://localhost:6379/0"
	lim, closeLim, err = openLimiter(cfg, &postgres.DB{})
	require.NoError(t, err)
	closeLim()
	require.IsType(t, &limiter.Redis{}, lim)

	cfg.RedisURL = "::not a url"
	_, _, err = openLimiter(cfg, &postgres.DB{})
	require.Error(t, err)
}
