package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionsRoundTrip(t *testing.T) {
	sessions := NewSessions("test-secret", time.Hour)

	token, err := sessions.Issue(7, "ada@campus.edu", "Ada", "admin")
	require.NoError(t, err)

	claims, err := sessions.Parse(token)
	require.NoError(t, err)
	require.Equal(t, 7, claims.UserID)
	require.Equal(t, "ada@campus.edu", claims.Email)
	require.Equal(t, "Ada", claims.Name)
	require.Equal(t, "admin", claims.Role)
}

func TestSessionsRejectsWrongSecret(t *testing.T) {
	token, err := NewSessions("secret-a", time.Hour).Issue(1, "a@campus.edu", "", "user")
	require.NoError(t, err)

	_, err = NewSessions("secret-b", time.Hour).Parse(token)
	require.Error(t, err)
}

func TestSessionsRejectsExpired(t *testing.T) {
	token, err := NewSessions("secret", -time.Minute).Issue(1, "a@campus.edu", "", "user")
	require.NoError(t, err)

	_, err = NewSessions("secret", -time.Minute).Parse(token)
	require.Error(t, err)
}

func TestOIDCConfigWithoutAudienceSkipsClientIDCheck(t *testing.T) {
	cfg := oidcConfigFor("")
	require.True(t, cfg.SkipClientIDCheck)
	require.Empty(t, cfg.ClientID)

	cfg = oidcConfigFor("campuslife-web")
	require.False(t, cfg.SkipClientIDCheck)
	require.Equal(t, "campuslife-web", cfg.ClientID)
}
