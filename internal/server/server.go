package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"Fixer-backend/internal/auth"
	"Fixer-backend/internal/config"
	"Fixer-backend/internal/database"
	"Fixer-backend/internal/health"
	"Fixer-backend/internal/lifecycle"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/notification"
	"Fixer-backend/internal/payment"
	"Fixer-backend/internal/repository"
	"Fixer-backend/internal/session"
	"Fixer-backend/internal/storage"
)

// MyServer holds everything the route handlers are built from. Redis,
// Sessions, Hub and Storage may be nil; the features behind them are then
// disabled or fall back to in-process implementations.
type MyServer struct {
	Config     *config.Config
	DB         *database.DBinstanceStruct
	Redis      *redis.Client
	Store      *repository.Store
	Lifecycle  *lifecycle.Service
	Payments   *payment.Service
	Dispatcher *notification.Dispatcher
	Hub        *notification.Hub
	Storage    storage.Store
	Monitor    *health.Monitor
	Tokens     *auth.TokenIssuer
	Sessions   *session.Store
	Blacklist  auth.JwtBlacklistStore
	Log        logger.Logger
}

// NewServer construct new http.Server serving the API on the configured port
func NewServer(s *MyServer) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.Config.App.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
