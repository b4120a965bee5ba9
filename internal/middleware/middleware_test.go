package middleware

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Fixer-backend/internal/auth"
	"Fixer-backend/internal/database"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/repository"
	"Fixer-backend/internal/session"
	"Fixer-backend/internal/testutil"
	"Fixer-backend/internal/utilities"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	cfg AuthConfig
	fx  database.Fixtures
	rdb *redis.Client
}

func setup(t *testing.T) testEnv {
	t.Helper()
	db, fx := database.NewTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return testEnv{
		cfg: AuthConfig{
			Users:    repository.New(db.DB),
			Tokens:   auth.NewTokenIssuer("secret", "Fixer", time.Hour),
			Sessions: session.NewStore(rdb, time.Hour),
			Cookie:   session.Cookie{Name: "fixer_session"},
			Log:      logger.NewTestLogger(t),
		},
		fx:  fx,
		rdb: rdb,
	}
}

func (e testEnv) token(t *testing.T, userID uint) string {
	t.Helper()
	token, _, err := e.cfg.Tokens.Generate(userID)
	require.NoError(t, err)
	return token
}

func checkUserHandler(c *gin.Context) {
	user, err := utilities.ExtractUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
		return
	}
	caller, _ := utilities.ExtractCaller(c)
	c.JSON(http.StatusOK, gin.H{"ok": true, "user_id": user.ID, "caller_id": caller.UserID})
}

func (e testEnv) protectedEngine(extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{RequireAuth(e.cfg)}, extra...)
	handlers = append(handlers, checkUserHandler)
	r.GET("/protected", handlers...)
	return r
}

func TestRequireAuth_Success(t *testing.T) {
	env := setup(t)
	rec, resp := testutil.MakeJSONRequest(nil, env.token(t, env.fx.Worker.ID), env.protectedEngine(), "/protected", http.MethodGet)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(env.fx.Worker.ID), resp["user_id"])
	assert.Equal(t, float64(env.fx.Worker.ID), resp["caller_id"])
}

func TestRequireAuth_NoCredentials(t *testing.T) {
	env := setup(t)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	env.protectedEngine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHENTICATED")
}

func TestRequireAuth_BadTokens(t *testing.T) {
	env := setup(t)

	expired := auth.NewTokenIssuer("secret", "Fixer", -time.Minute)
	expiredToken, _, err := expired.Generate(env.fx.Worker.ID)
	require.NoError(t, err)
	otherIssuer, _, err := auth.NewTokenIssuer("secret", "Other", time.Hour).Generate(env.fx.Worker.ID)
	require.NoError(t, err)

	cases := map[string]struct {
		token string
		msg   string
	}{
		"expired":      {expiredToken, "Access token expired"},
		"wrong issuer": {otherIssuer, "Invalid access token"},
		"garbage":      {"abc.def.ghi", "Invalid access token"},
		"unknown user": {env.token(t, 9999), "User not exist"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec, resp := testutil.MakeJSONRequest(nil, tc.token, env.protectedEngine(), "/protected", http.MethodGet)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tc.msg, resp["error"])
		})
	}
}

func TestRequireAuth_SessionCookie(t *testing.T) {
	env := setup(t)
	sid, err := env.cfg.Sessions.Create(context.Background(), &env.fx.Poster)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "fixer_session", Value: sid})
	rec := httptest.NewRecorder()
	env.protectedEngine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "fixer_session", Value: "unknown"})
	rec = httptest.NewRecorder()
	env.protectedEngine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_SessionsDisabled(t *testing.T) {
	env := setup(t)
	env.cfg.Sessions = nil

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "fixer_session", Value: "whatever"})
	rec := httptest.NewRecorder()
	env.protectedEngine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJwtBlacklistCheck(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	blacklist := auth.NewRedisBlacklistStore(env.rdb)
	engine := env.protectedEngine(JwtBlacklistCheck(blacklist, env.cfg.Log))

	token, claims, err := env.cfg.Tokens.Generate(env.fx.Worker.ID)
	require.NoError(t, err)

	rec, _ := testutil.MakeJSONRequest(nil, token, engine, "/protected", http.MethodGet)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, blacklist.AddToBlacklist(ctx, claims.ID, claims.ExpiresAt.Time))
	rec, resp := testutil.MakeJSONRequest(nil, token, engine, "/protected", http.MethodGet)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has been revoked", resp["error"])
}

func TestCheckRole(t *testing.T) {
	env := setup(t)
	r := gin.New()
	r.GET("/posters", RequireAuth(env.cfg), CheckRole(model.RolePoster, model.RoleAdmin), checkUserHandler)
	r.GET("/no-auth", CheckRole(model.RolePoster), checkUserHandler)

	rec, _ := testutil.MakeJSONRequest(nil, env.token(t, env.fx.Poster.ID), r, "/posters", http.MethodGet)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = testutil.MakeJSONRequest(nil, env.token(t, env.fx.Admin.ID), r, "/posters", http.MethodGet)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := testutil.MakeJSONRequest(nil, env.token(t, env.fx.Worker.ID), r, "/posters", http.MethodGet)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "AUTHORIZATION_ERROR", resp["code"])

	rec, _ = testutil.MakeJSONRequest(nil, "", r, "/no-auth", http.MethodGet)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.GET("/limited", RateLimiterMiddleware(2, nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/limited", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func readFileHandler(c *gin.Context) {
	if _, err := c.FormFile("file"); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Entity too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

func uploadRequest(t *testing.T, size int) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", "photo.jpg")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("a"), size))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestSizeLimit(t *testing.T) {
	const limit = 64 * 1024
	r := gin.New()
	r.MaxMultipartMemory = 1 << 20
	r.POST("/upload", SizeLimit(limit), readFileHandler)

	for name, tc := range map[string]struct {
		size   int
		status int
	}{
		"less than limit":  {limit / 2, http.StatusOK},
		"equal limit":      {limit, http.StatusOK},
		"way exceed limit": {limit * 4, http.StatusRequestEntityTooLarge},
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, uploadRequest(t, tc.size))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestSafeHeaderAndRequestLogger(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(logger.NewTestLogger(t)), SafeHeader())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
