package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "tpv/internal/core/context"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret"))

	token, expiresAt, err := svc.GenerateAccessToken(
		"user-1", "cashier@example.com",
		[]string{"cashier"}, []string{"sales:create"},
		false,
	)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)

	assert.Equal(t, "user-1", user.UserID)
	assert.Equal(t, "cashier@example.com", user.Email)
	assert.Equal(t, []string{"cashier"}, user.Roles)
	assert.Equal(t, []string{"sales:create"}, user.Permissions)
	assert.False(t, user.IsAdmin)

	ctx := appctx.WithUser(context.Background(), user)
	assert.True(t, appctx.HasPermission(ctx, "sales:create"))
	assert.False(t, appctx.HasPermission(ctx, "users:delete"))
	assert.True(t, appctx.HasRole(ctx, "cashier"))
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret"))

	token, _, err := svc.GenerateAccessToken("user-1", "a@b.c", nil, nil, false)
	require.NoError(t, err)

	other := NewJWTService(DefaultJWTConfig("different-secret"))
	_, err = other.ValidateToken(token)
	require.Error(t, err)
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	cfg := DefaultJWTConfig("test-secret")
	cfg.AccessTokenTTL = -time.Minute
	svc := NewJWTService(cfg)

	token, _, err := svc.GenerateAccessToken("user-1", "a@b.c", nil, nil, false)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
}

func TestJWTAdminPassesAllPermissions(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret"))

	token, _, err := svc.GenerateAccessToken("admin-1", "admin@example.com", []string{"admin"}, nil, true)
	require.NoError(t, err)

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)
	assert.True(t, appctx.HasPermission(appctx.WithUser(context.Background(), user), "anything:at-all"))
}
