// Command api runs the Fixer HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"Fixer-backend/internal/auth"
	"Fixer-backend/internal/config"
	"Fixer-backend/internal/database"
	"Fixer-backend/internal/events"
	"Fixer-backend/internal/health"
	"Fixer-backend/internal/lifecycle"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/notification"
	"Fixer-backend/internal/payment"
	"Fixer-backend/internal/repository"
	"Fixer-backend/internal/server"
	"Fixer-backend/internal/session"
	"Fixer-backend/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewStructured("info", "json").Error("failed to load config", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	db, err := database.NewDBInstance(cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.EnsureAdmin(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		return err
	}
	store := repository.New(db.DB)

	var (
		rdb       *redis.Client
		sessions  *session.Store
		blacklist auth.JwtBlacklistStore
	)
	if cfg.Redis.Enabled {
		rdb = database.NewRedis(cfg.Redis)
		defer rdb.Close()
		if err := database.PingRedis(ctx, rdb); err != nil {
			log.Warn("redis unavailable at startup", map[string]interface{}{"error": err.Error()})
		}
		sessions = session.NewStore(rdb, cfg.Auth.SessionTTL)
		blacklist = auth.NewRedisBlacklistStore(rdb)
	} else {
		blacklist = auth.NewInMemoryBlacklistStore(ctx)
	}

	hub := notification.NewHub(log, cfg.App.AllowOrigins)
	var channels []notification.Channel
	if rdb != nil {
		channels = append(channels, notification.NewRedisPusher(rdb))
		go func() {
			if err := hub.Relay(ctx, rdb); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("notification relay stopped", map[string]interface{}{"error": err.Error()})
			}
		}()
	} else {
		channels = append(channels, hub)
	}
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		awsCfg, err := notification.LoadAWSConfig(ctx, cfg.Notifications.AWSRegion)
		if err != nil {
			return err
		}
		if cfg.Notifications.Email.Enabled {
			channels = append(channels, notification.NewEmailChannel(awsCfg, cfg.Notifications.Email.FromEmail))
		}
		if cfg.Notifications.SMS.Enabled {
			channels = append(channels, notification.NewSMSChannel(awsCfg))
		}
	}
	dispatcher := notification.NewDispatcher(store, log, channels...)
	defer dispatcher.Wait()

	fees, err := payment.NewFeePolicy(cfg.Payments.FeeKind, cfg.Payments.FeeRate, cfg.Payments.FlatFee)
	if err != nil {
		return err
	}
	gateway := payment.NewResilientGateway(payment.NewStripeGateway(cfg.Payments), cfg.Payments.Timeout, cfg.Payments.BreakerTimeout, log)
	payments := payment.NewService(store, gateway, fees, cfg.Payments.Currency, dispatcher, log)

	var publisher events.Publisher = events.Noop{}
	if cfg.Events.Enabled {
		rabbit, err := events.Dial(cfg.Events.RabbitMQURL, cfg.Events.Exchange)
		if err != nil {
			return err
		}
		publisher = rabbit
	}
	defer publisher.Close()

	jobs := lifecycle.NewService(store, payments, dispatcher, publisher, lifecycle.Options{
		LocationCheckEnabled: cfg.Lifecycle.LocationCheckEnabled,
		RequiredRadiusFeet:   cfg.Lifecycle.RequiredRadiusFeet,
	}, log)

	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	probes := []health.Probe{
		{Name: "database", Check: db.Ping},
		{Name: "payments", Check: gateway.Ping},
	}
	if rdb != nil {
		probes = append(probes, health.Probe{Name: "redis", Check: func(ctx context.Context) error {
			return database.PingRedis(ctx, rdb)
		}})
	}
	if files != nil {
		probes = append(probes, health.Probe{Name: "storage", Check: files.Ping})
	}
	monitor := health.NewMonitor(cfg.Health.ProbeTimeout, cfg.Health.ShortCircuitThreshold, log, probes...)
	if err := monitor.Start(cfg.Health.Schedule); err != nil {
		return err
	}
	defer monitor.Stop()

	srv := server.NewServer(&server.MyServer{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		Store:      store,
		Lifecycle:  jobs,
		Payments:   payments,
		Dispatcher: dispatcher,
		Hub:        hub,
		Storage:    files,
		Monitor:    monitor,
		Tokens:     auth.NewTokenIssuer(cfg.Auth.SecretKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		Sessions:   sessions,
		Blacklist:  blacklist,
		Log:        log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	case err, ok := <-errCh:
		if ok {
			return err
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}
