package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestService_IssueAndValidateToken(t *testing.T) {
	svc := NewService(Config{
		Secret:          "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}, newTestLogger())

	access, refresh, err := svc.IssueToken(context.Background(), "gateway")
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	claims, err := svc.ValidateToken(context.Background(), access)
	require.NoError(t, err)
	require.Equal(t, "gateway", claims.Subject)
	require.Equal(t, RoleAPI, claims.Role)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)

	_, err = svc.ValidateToken(context.Background(), refresh)
	require.Error(t, err)
}

func TestService_Refresh(t *testing.T) {
	svc := NewService(Config{
		Secret:          "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}, newTestLogger())

	_, refresh, err := svc.IssueToken(context.Background(), "client-42")
	require.NoError(t, err)

	access, err := svc.Refresh(context.Background(), refresh)
	require.NoError(t, err)
	require.NotEmpty(t, access)

	claims, err := svc.ValidateToken(context.Background(), access)
	require.NoError(t, err)
	require.Equal(t, "client-42", claims.Subject)
}

func TestService_ExpiredToken(t *testing.T) {
	svc := NewService(Config{
		Secret:          "test-secret",
		AccessTokenTTL:  -time.Minute,
		RefreshTokenTTL: time.Hour,
	}, newTestLogger())

	access, _, err := svc.IssueToken(context.Background(), "client-1")
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), access)
	require.Error(t, err)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
