package auth_test

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamelab-hdl/gamelab/pkg/api/auth"
	"github.com/gamelab-hdl/gamelab/pkg/api/sessions"
	"github.com/gamelab-hdl/gamelab/pkg/api/store"
	"github.com/gamelab-hdl/gamelab/pkg/config"
)

func setupAuth(t *testing.T) (*auth.Authenticator, store.Store, sessions.Registry) {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	st := store.NewStore(log, cfg)
	require.NoError(t, st.Start(context.Background()))

	t.Cleanup(func() { _ = st.Stop() })

	registry := sessions.NewRegistry(0)

	return auth.NewAuthenticator(log, st, registry), st, registry
}

func provisionUser(t *testing.T, st store.Store, name, password string) *store.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	user := &store.User{Name: name, PasswordHash: hash}
	require.NoError(t, st.CreateUser(context.Background(), user))

	return user
}

func TestLogin_Success(t *testing.T) {
	a, st, registry := setupAuth(t)
	ctx := context.Background()

	alice := provisionUser(t, st, "Alice", "alice-secret")

	user, token, err := a.Login(ctx, "Alice", "alice-secret")
	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotEmpty(t, token)

	assert.Equal(t, alice.ID, user.ID)
	assert.Equal(t, "Alice", user.Name)

	// The token resolves back to the user's id.
	userID, ok := registry.Resolve(token)
	require.True(t, ok)
	assert.Equal(t, alice.ID, userID)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	a, st, _ := setupAuth(t)
	ctx := context.Background()

	provisionUser(t, st, "Alice", "alice-secret")

	tests := []struct {
		name     string
		user     string
		password string
	}{
		{name: "wrong password", user: "Alice", password: "wrong"},
		{name: "unknown user", user: "Mallory", password: "anything"},
		{name: "unknown user with real password", user: "Mallory", password: "alice-secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, token, err := a.Login(ctx, tt.user, tt.password)
			require.Error(t, err)
			assert.ErrorIs(t, err, auth.ErrAuthenticationFailed)
			assert.Empty(t, token)
		})
	}
}

func TestLogin_MultipleSessionsIndependent(t *testing.T) {
	a, st, registry := setupAuth(t)
	ctx := context.Background()

	alice := provisionUser(t, st, "Alice", "alice-secret")

	_, first, err := a.Login(ctx, "Alice", "alice-secret")
	require.NoError(t, err)

	_, second, err := a.Login(ctx, "Alice", "alice-secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	// Both tokens stay valid.
	id1, ok := registry.Resolve(first)
	require.True(t, ok)

	id2, ok := registry.Resolve(second)
	require.True(t, ok)

	assert.Equal(t, alice.ID, id1)
	assert.Equal(t, alice.ID, id2)
}

func TestLogout_RevokesAllSessions(t *testing.T) {
	a, st, registry := setupAuth(t)
	ctx := context.Background()

	alice := provisionUser(t, st, "Alice", "alice-secret")

	_, first, err := a.Login(ctx, "Alice", "alice-secret")
	require.NoError(t, err)

	_, second, err := a.Login(ctx, "Alice", "alice-secret")
	require.NoError(t, err)

	revoked := a.Logout(alice.ID)
	assert.Equal(t, 2, revoked)

	_, ok := registry.Resolve(first)
	assert.False(t, ok)

	_, ok = registry.Resolve(second)
	assert.False(t, ok)
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotContains(t, hash, "s3cret")

	assert.True(t, auth.CheckPassword(hash, "s3cret"))
	assert.False(t, auth.CheckPassword(hash, "S3cret"))
	assert.False(t, auth.CheckPassword(hash, ""))

	// Per-call salt: hashing twice yields different strings.
	again, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again)
}

func TestGeneratePassword(t *testing.T) {
	password, err := auth.GeneratePassword(12)
	require.NoError(t, err)
	assert.Len(t, password, 12)

	for _, c := range password {
		assert.True(
			t,
			strings.ContainsRune(
				"abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789",
				c,
			),
			"unexpected character %q", c,
		)
	}

	// Non-positive lengths fall back to the default.
	fallback, err := auth.GeneratePassword(0)
	require.NoError(t, err)
	assert.Len(t, fallback, auth.DefaultPasswordLength)
}
