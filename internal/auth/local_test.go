package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Fixer-backend/internal/database"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/testutil"
)

func TestRegisterHandler(t *testing.T) {
	env := setup(t)
	handler := NewLocalAuthHandler(env.db, env.auth)

	rec, resp, err := testutil.CallHandler(handler.RegisterHandler, "/auth/register", http.MethodPost, map[string]string{
		"username":  "new_worker",
		"password":  "longenough",
		"role":      "worker",
		"email":     "new_worker@example.com",
		"full_name": "New Worker",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, resp["access_token"])

	var created model.User
	require.NoError(t, env.db.Where("username = ?", "new_worker").First(&created).Error)
	assert.Equal(t, model.RoleWorker, created.Role)
	assert.NotEqual(t, "longenough", created.Password)

	ck := sessionCookie(rec)
	require.NotNil(t, ck)
	d, err := env.sessions.Get(context.Background(), ck.Value)
	require.NoError(t, err)
	assert.Equal(t, created.ID, d.UserID)
}

func TestRegisterHandler_Rejects(t *testing.T) {
	env := setup(t)
	handler := NewLocalAuthHandler(env.db, env.auth)

	cases := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"missing role", map[string]string{"username": "a", "password": "longenough"}, http.StatusBadRequest},
		{"admin role", map[string]string{"username": "a", "password": "longenough", "role": "admin"}, http.StatusBadRequest},
		{"short password", map[string]string{"username": "a", "password": "short", "role": "poster"}, http.StatusBadRequest},
		{"bad email", map[string]string{"username": "a", "password": "longenough", "role": "poster", "email": "nope"}, http.StatusBadRequest},
		{"taken username", map[string]string{"username": env.fx.Poster.Username, "password": "longenough", "role": "poster"}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _, err := testutil.CallHandler(handler.RegisterHandler, "/auth/register", http.MethodPost, tc.body)
			require.NoError(t, err)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestLoginHandler(t *testing.T) {
	env := setup(t)
	handler := NewLocalAuthHandler(env.db, env.auth)

	rec, resp, err := testutil.CallHandler(handler.LoginHandler, "/auth/login", http.MethodPost, map[string]string{
		"username": env.fx.Worker.Username,
		"password": database.TestSeedPassword,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	claims, err := env.auth.Tokens.Validate(resp["access_token"].(string))
	require.NoError(t, err)
	id, err := UserID(claims)
	require.NoError(t, err)
	assert.Equal(t, env.fx.Worker.ID, id)
	assert.NotNil(t, sessionCookie(rec))
}

func TestLoginHandler_WrongCredentials(t *testing.T) {
	env := setup(t)
	handler := NewLocalAuthHandler(env.db, env.auth)

	for _, body := range []map[string]string{
		{"username": env.fx.Worker.Username, "password": "wrong-password"},
		{"username": "nobody", "password": database.TestSeedPassword},
	} {
		rec, resp, err := testutil.CallHandler(handler.LoginHandler, "/auth/login", http.MethodPost, body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Wrong username or password", resp["error"])
	}
}

func TestLoginHandler_WithoutSessions(t *testing.T) {
	env := setup(t)
	env.auth.Sessions = nil
	handler := NewLocalAuthHandler(env.db, env.auth)

	rec, _, err := testutil.CallHandler(handler.LoginHandler, "/auth/login", http.MethodPost, map[string]string{
		"username": env.fx.Poster.Username,
		"password": database.TestSeedPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, sessionCookie(rec))
}

func TestLoginHandler_SessionStoreDown(t *testing.T) {
	env := setup(t)
	handler := NewLocalAuthHandler(env.db, env.auth)
	env.redis.Close()

	rec, resp, err := testutil.CallHandler(handler.LoginHandler, "/auth/login", http.MethodPost, map[string]string{
		"username": env.fx.Poster.Username,
		"password": database.TestSeedPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, resp["access_token"])
	assert.Nil(t, sessionCookie(rec))
}
