// Package database implement connection to database service and initialize ORM.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"Fixer-backend/internal/config"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/utilities"
)

// DBinstanceStruct is a struct that holds the GORM DB instance and related information.
type DBinstanceStruct struct {
	*gorm.DB
	Config config.DatabaseConfig
	log    logger.Logger
	// cached raw DB and mutex for lazy-init
	sqlDB *sql.DB
	mu    sync.RWMutex
}

// Partial unique index: one pending or accepted application per worker and job.
const activeApplicationIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_active_worker_job
ON applications (job_id, worker_id) WHERE status IN ('pending', 'accepted')`

// NewDBInstance connects to postgres, migrates the schema and seeds the admin account.
func NewDBInstance(cfg config.DatabaseConfig, log logger.Logger) (*DBinstanceStruct, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	return wrap(gdb, cfg, log)
}

func wrap(gdb *gorm.DB, cfg config.DatabaseConfig, log logger.Logger) (*DBinstanceStruct, error) {
	if gin.IsDebugging() {
		gdb = gdb.Debug()
	}

	newDb := &DBinstanceStruct{
		DB:     gdb,
		Config: cfg,
		log:    log,
	}

	if raw, err := newDb.Raw(); err == nil {
		if cfg.MaxOpenConns > 0 {
			raw.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			raw.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}

	if err := newDb.installExtension(); err != nil {
		return nil, fmt.Errorf("failed to install extension: %w", err)
	}
	if err := newDb.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return newDb, nil
}

// Raw returns the underlying *sql.DB, caching it after the first successful retrieval.
// It is safe for concurrent use.
func (d *DBinstanceStruct) Raw() (*sql.DB, error) {
	if d == nil {
		return nil, fmt.Errorf("DBinstanceStruct is nil")
	}

	// fast path: cached value
	d.mu.RLock()
	if d.sqlDB != nil {
		raw := d.sqlDB
		d.mu.RUnlock()
		return raw, nil
	}
	d.mu.RUnlock()

	// slow path: initialize
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sqlDB != nil {
		return d.sqlDB, nil
	}
	if d.DB == nil {
		return nil, fmt.Errorf("gorm DB is nil")
	}
	raw, err := d.DB.DB()
	if err != nil {
		return nil, err
	}
	d.sqlDB = raw
	return raw, nil
}

// EnsureAdmin creates the admin account if none exists yet.
func (d *DBinstanceStruct) EnsureAdmin(username, password string) error {
	if username == "" || password == "" {
		d.log.Info("admin username or password not set, skipping admin creation", nil)
		return nil
	}

	var count int64
	if err := d.Model(&model.User{}).Where("role = ?", model.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return utilities.CreateAdmin(password, username, d.DB)
}

// Migrate database
func (d *DBinstanceStruct) Migrate() error {
	if err := d.AutoMigrate(model.MigrateAble...); err != nil {
		return err
	}
	return d.Exec(activeApplicationIndex).Error
}

// Ping checks connectivity, used by the health monitor.
func (d *DBinstanceStruct) Ping(ctx context.Context) error {
	raw, err := d.Raw()
	if err != nil {
		return err
	}
	return raw.PingContext(ctx)
}

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (d *DBinstanceStruct) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	oriDB, err := d.Raw()
	if err == nil {
		err = oriDB.PingContext(ctx)
	}
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		d.log.Error("db down", map[string]interface{}{"error": err.Error()})
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := oriDB.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	if dbStats.OpenConnections > 40 {
		stats["message"] = "The database is experiencing heavy load."
	}

	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	if dbStats.MaxIdleClosed > int64(dbStats.OpenConnections)/2 {
		stats["message"] = "Many idle connections are being closed, consider revising the connection pool settings."
	}

	return stats
}

// Close closes the database connection.
func (d *DBinstanceStruct) Close() error {
	d.log.Info("disconnected from database", map[string]interface{}{"database": d.Config.Name})
	oriDB, err := d.Raw()
	if err != nil {
		return err
	}
	return oriDB.Close()
}

func (d *DBinstanceStruct) installExtension() error {
	if d.Dialector.Name() != "postgres" {
		return nil
	}
	return d.WithContext(context.Background()).Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error
}

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
