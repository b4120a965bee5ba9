package database

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"Fixer-backend/internal/config"
	"Fixer-backend/internal/logger"
	m "Fixer-backend/internal/model"
	"Fixer-backend/internal/utilities"
)

// TestSeedPassword is the plain password of every seeded user.
const TestSeedPassword = "SeedPass123!"

// Fixtures are the users seeded into every test database.
type Fixtures struct {
	Admin          m.User
	Poster         m.User
	Poster2        m.User
	Worker         m.User
	WorkerNoPayout m.User
}

var (
	seedHashOnce sync.Once
	seedHash     string
	seedHashErr  error
)

// NewTestDB returns an isolated in-memory sqlite database with the schema
// migrated and fixtures seeded. It is closed when the test ends.
func NewTestDB(t testing.TB) (*DBinstanceStruct, Fixtures) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	db, err := wrap(gdb, config.DatabaseConfig{Name: dsn, MaxOpenConns: 1}, logger.NewTestLogger(t))
	if err != nil {
		t.Fatalf("failed to prepare test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	fx, err := seedTestData(db)
	if err != nil {
		t.Fatalf("failed to seed test database: %v", err)
	}
	return db, fx
}

// GetTestDB starts a PostgreSQL test container and returns a teardown function,
// the DB instance, and any error encountered during setup.
func GetTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, *DBinstanceStruct, Fixtures, error) {
	var (
		dbName = "database"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:latest",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, nil, Fixtures{}, err
	}

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, nil, Fixtures{}, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), nat.Port("5432/tcp"))
	if err != nil {
		return dbContainer.Terminate, nil, Fixtures{}, err
	}

	cfg := config.DatabaseConfig{
		Host:     dbHost,
		Port:     dbPort.Port(),
		User:     dbUser,
		Password: dbPwd,
		Name:     dbName,
		SSLMode:  "disable",
	}

	db, err := NewDBInstance(cfg, logger.NewNoOpLogger())
	if err != nil {
		return dbContainer.Terminate, nil, Fixtures{}, err
	}

	fx, err := seedTestData(db)
	if err != nil {
		_ = dbContainer.Terminate(context.Background())
		return nil, nil, Fixtures{}, err
	}

	return dbContainer.Terminate, db, fx, nil
}

func seedTestData(db *DBinstanceStruct) (Fixtures, error) {
	seedHashOnce.Do(func() {
		seedHash, seedHashErr = utilities.HashPassword(TestSeedPassword)
	})
	if seedHashErr != nil {
		return Fixtures{}, seedHashErr
	}

	acct := "acct_worker_1"
	userSpecs := []struct {
		username string
		role     string
		account  *string
	}{
		{"admin_user", m.RoleAdmin, nil},
		{"poster_1", m.RolePoster, nil},
		{"poster_2", m.RolePoster, nil},
		{"worker_1", m.RoleWorker, &acct},
		{"worker_no_payout", m.RoleWorker, nil},
	}

	users := make([]m.User, 0, len(userSpecs))
	for _, s := range userSpecs {
		u := m.User{
			Username:               s.username,
			Email:                  ptr(s.username + "@example.com"),
			Role:                   s.role,
			Password:               seedHash,
			FullName:               s.username,
			StripeConnectAccountID: s.account,
		}
		if s.account != nil {
			u.ConnectAccountStatus = m.ConnectAccountActive
		}
		users = append(users, u)
	}

	if err := db.Create(&users).Error; err != nil {
		return Fixtures{}, err
	}

	return Fixtures{
		Admin:          users[0],
		Poster:         users[1],
		Poster2:        users[2],
		Worker:         users[3],
		WorkerNoPayout: users[4],
	}, nil
}

func ptr[T any](v T) *T {
	return &v
}
