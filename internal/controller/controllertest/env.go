// Package controllertest wires the service stack behind the HTTP handlers
// for controller tests.
package controllertest

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"Fixer-backend/internal/auth"
	"Fixer-backend/internal/database"
	"Fixer-backend/internal/lifecycle"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/middleware"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/notification"
	"Fixer-backend/internal/payment"
	"Fixer-backend/internal/payment/paymenttest"
	"Fixer-backend/internal/repository"
	"Fixer-backend/internal/testutil"
)

// Env is a migrated sqlite database with seeded users and the services on top.
type Env struct {
	DB         *database.DBinstanceStruct
	Fixtures   database.Fixtures
	Store      *repository.Store
	Gateway    *paymenttest.Gateway
	Payments   *payment.Service
	Dispatcher *notification.Dispatcher
	Lifecycle  *lifecycle.Service
	Tokens     *auth.TokenIssuer
	Log        logger.Logger
}

func New(t *testing.T) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, fx := database.NewTestDB(t)
	store := repository.New(db.DB)
	log := logger.NewTestLogger(t)
	gw := paymenttest.New()

	fees, err := payment.NewFeePolicy(payment.FeePercent, 0.10, 0)
	require.NoError(t, err)

	dispatcher := notification.NewDispatcher(store, log)
	t.Cleanup(dispatcher.Wait)
	payments := payment.NewService(store, gw, fees, "usd", dispatcher, log)

	return &Env{
		DB:         db,
		Fixtures:   fx,
		Store:      store,
		Gateway:    gw,
		Payments:   payments,
		Dispatcher: dispatcher,
		Lifecycle: lifecycle.NewService(store, payments, dispatcher, nil, lifecycle.Options{
			LocationCheckEnabled: true,
			RequiredRadiusFeet:   500,
		}, log),
		Tokens: auth.NewTokenIssuer("controller-test-secret", "Fixer", time.Hour),
		Log:    log,
	}
}

// Router returns an engine and the authenticated /api/v1 group.
func (e *Env) Router() (*gin.Engine, *gin.RouterGroup) {
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.RequireAuth(middleware.AuthConfig{
		Users:  e.Store,
		Tokens: e.Tokens,
		Log:    e.Log,
	}))
	return r, api
}

// Token issues an access token for u.
func (e *Env) Token(t *testing.T, u model.User) string {
	t.Helper()
	token, _, err := e.Tokens.Generate(u.ID)
	require.NoError(t, err)
	return token
}

// Do sends a JSON request as u and decodes the JSON response.
func (e *Env) Do(t *testing.T, r *gin.Engine, u model.User, method, path string, body gin.H) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	return testutil.MakeJSONRequest(body, e.Token(t, u), r, path, method)
}

// Job posts an open job for poster at the given coordinates.
func (e *Env) Job(t *testing.T, poster model.User, at model.Coordinates) *model.Job {
	t.Helper()
	job, err := e.Lifecycle.CreateJob(context.Background(), poster.Caller(), lifecycle.JobDraft{
		Title:         fmt.Sprintf("Job of %s", poster.Username),
		Category:      "handyman",
		PaymentAmount: 50,
		Address:       "1 Centre St",
		Location:      at,
		DateNeeded:    time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	return job
}

// Assigned posts a job and assigns worker to it.
func (e *Env) Assigned(t *testing.T, poster, worker model.User, at model.Coordinates) *model.Job {
	t.Helper()
	job := e.Job(t, poster, at)
	app, err := e.Lifecycle.SubmitApplication(context.Background(), worker.Caller(), job.ID, lifecycle.ApplicationDetails{Message: "I can do it"})
	require.NoError(t, err)
	_, err = e.Lifecycle.DecideApplication(context.Background(), poster.Caller(), app.ID, true)
	require.NoError(t, err)
	job, err = e.Store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	return job
}

// Completed drives a job through start and completion.
func (e *Env) Completed(t *testing.T, poster, worker model.User, at model.Coordinates) *model.Job {
	t.Helper()
	job := e.Assigned(t, poster, worker, at)
	_, err := e.Lifecycle.StartJob(context.Background(), worker.Caller(), job.ID, &at)
	require.NoError(t, err)
	done, err := e.Lifecycle.CompleteJob(context.Background(), worker.Caller(), job.ID)
	require.NoError(t, err)
	return done.Job
}
