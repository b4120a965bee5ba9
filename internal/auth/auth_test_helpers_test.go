package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"Fixer-backend/internal/database"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/session"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type authEnv struct {
	db       *database.DBinstanceStruct
	fx       database.Fixtures
	auth     *Authenticator
	sessions *session.Store
	redis    *miniredis.Miniredis
	rdb      *redis.Client
}

func setup(t *testing.T) authEnv {
	t.Helper()
	db, fx := database.NewTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sessions := session.NewStore(rdb, time.Hour)
	return authEnv{
		db: db,
		fx: fx,
		auth: &Authenticator{
			Tokens:   NewTokenIssuer(testSecret, "Fixer", time.Hour),
			Sessions: sessions,
			Cookie:   session.Cookie{Name: "fixer_session"},
			Log:      logger.NewTestLogger(t),
		},
		sessions: sessions,
		redis:    mr,
		rdb:      rdb,
	}
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "fixer_session" {
			return ck
		}
	}
	return nil
}

// mockOAuth2Server stands in for Google's token and userinfo endpoints.
type mockOAuth2Server struct {
	*httptest.Server
	Config           *oauth2.Config
	MockInfoEndpoint string

	mu        sync.Mutex
	users     map[string]model.GoogleUserInfo
	exchanged map[string]bool
}

func newMockOAuth2Server(users ...model.GoogleUserInfo) *mockOAuth2Server {
	m := &mockOAuth2Server{
		users:     make(map[string]model.GoogleUserInfo),
		exchanged: make(map[string]bool),
	}
	for _, u := range users {
		m.users[u.GID] = u
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gid := strings.TrimPrefix(r.Form.Get("code"), "code-")
		m.mu.Lock()
		_, ok := m.users[gid]
		if ok {
			m.exchanged[gid] = true
		}
		m.mu.Unlock()
		if !ok {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "token-" + gid,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		gid := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer token-")
		m.mu.Lock()
		u, ok := m.users[gid]
		m.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(u)
	})

	m.Server = httptest.NewServer(mux)
	m.MockInfoEndpoint = m.URL + "/userinfo"
	m.Config = &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   m.URL + "/auth",
			TokenURL:  m.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: "http://localhost/callback",
	}
	return m
}

func (m *mockOAuth2Server) authCode(gid string) string {
	return "code-" + gid
}

func (m *mockOAuth2Server) isExchanged(gid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exchanged[gid]
}
