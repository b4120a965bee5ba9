package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/session"
	"Fixer-backend/internal/utilities"
)

func logoutContext(t *testing.T, env authEnv, url, sessionID string) (*gin.Context, *httptest.ResponseRecorder, string) {
	t.Helper()
	token, claims, err := env.auth.Tokens.Generate(env.fx.Worker.ID)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, url, nil)
	c.Request.Header.Set("Authorization", "Bearer "+token)
	if sessionID != "" {
		c.Request.AddCookie(&http.Cookie{Name: "fixer_session", Value: sessionID})
	}
	c.Set(utilities.ClaimsKey, claims)
	c.Set(utilities.CallerKey, env.fx.Worker.Caller())
	return c, rec, claims.ID
}

func TestLogoutSuccess(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	blacklist := NewRedisBlacklistStore(env.rdb)
	controller := NewLogoutController(blacklist, env.sessions, env.auth.Cookie, logger.NewTestLogger(t))

	sid, err := env.sessions.Create(ctx, &env.fx.Worker)
	require.NoError(t, err)

	c, rec, jti := logoutContext(t, env, "/auth/logout", sid)
	controller.LogoutHandler(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	revoked, err := blacklist.IsBlacklisted(ctx, jti)
	require.NoError(t, err)
	assert.True(t, revoked, "Token should be blacklisted after logout")

	_, err = env.sessions.Get(ctx, sid)
	assert.Error(t, err)
	ck := sessionCookie(rec)
	require.NotNil(t, ck)
	assert.Empty(t, ck.Value)
}

func TestLogoutAllSessions(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	controller := NewLogoutController(NewInMemoryBlacklistStore(ctx), env.sessions, env.auth.Cookie, logger.NewTestLogger(t))

	first, err := env.sessions.Create(ctx, &env.fx.Worker)
	require.NoError(t, err)
	second, err := env.sessions.Create(ctx, &env.fx.Worker)
	require.NoError(t, err)

	c, rec, _ := logoutContext(t, env, "/auth/logout?all=true", "")
	controller.LogoutHandler(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	for _, id := range []string{first, second} {
		_, err := env.sessions.Get(ctx, id)
		assert.Error(t, err)
	}
}

func TestLogoutWithoutCaller(t *testing.T) {
	controller := NewLogoutController(NewInMemoryBlacklistStore(context.Background()), nil, session.Cookie{Name: "fixer_session"}, logger.NewNoOpLogger())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	controller.LogoutHandler(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutBlacklistFailure(t *testing.T) {
	env := setup(t)
	controller := NewLogoutController(NewRedisBlacklistStore(env.rdb), nil, env.auth.Cookie, logger.NewTestLogger(t))
	env.redis.Close()

	c, rec, _ := logoutContext(t, env, "/auth/logout", "")
	controller.LogoutHandler(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
