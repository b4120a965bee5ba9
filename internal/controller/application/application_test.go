package application

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/controller/controllertest"
	"Fixer-backend/internal/middleware"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/repository"
)

var site = model.Coordinates{Latitude: 40.7128, Longitude: -74.0060}

func router(env *controllertest.Env) *gin.Engine {
	r, api := env.Router()
	ac := NewApplicationController(env.Lifecycle, env.Log)

	api.GET("/jobs/:id/applications", ac.ListForJobHandler)
	api.PATCH("/applications/:id/status", ac.DecideHandler)
	worker := api.Group("", middleware.CheckRole(model.RoleWorker))
	worker.POST("/applications", ac.ApplicationHandler)
	worker.GET("/applications/mine", ac.ListMineHandler)
	return r
}

func TestApplicationHandler_success(t *testing.T) {
	env := controllertest.New(t)
	r := router(env)
	job := env.Job(t, env.Fixtures.Poster, site)

	rec, resp := env.Do(t, r, env.Fixtures.Worker, http.MethodPost, "/api/v1/applications", gin.H{
		"job_id":            job.ID,
		"message":           "Ten years of plumbing",
		"hourly_rate":       35,
		"expected_duration": "2h",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "pending", resp["status"])
	assert.Equal(t, "Ten years of plumbing", resp["message"])
	assert.Equal(t, float64(env.Fixtures.Worker.ID), resp["worker_id"])

	notices, err := env.Dispatcher.List(context.Background(), env.Fixtures.Poster.ID, repository.NotificationFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, notices)
	assert.Equal(t, model.NotificationNewApplication, notices[0].Type)
}

func TestApplicationHandler_duplicateIsConflict(t *testing.T) {
	env := controllertest.New(t)
	r := router(env)
	job := env.Job(t, env.Fixtures.Poster, site)
	body := gin.H{"job_id": job.ID, "message": "hi"}

	rec, _ := env.Do(t, r, env.Fixtures.Worker, http.MethodPost, "/api/v1/applications", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := env.Do(t, r, env.Fixtures.Worker, http.MethodPost, "/api/v1/applications", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(apperror.CodeConflict), resp["code"])
}

func TestApplicationHandler_rejectsPosterAndBadBody(t *testing.T) {
	env := controllertest.New(t)
	r := router(env)
	job := env.Job(t, env.Fixtures.Poster, site)

	rec, _ := env.Do(t, r, env.Fixtures.Poster, http.MethodPost, "/api/v1/applications", gin.H{"job_id": job.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.Do(t, r, env.Fixtures.Worker, http.MethodPost, "/api/v1/applications", gin.H{"message": "no job"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.Do(t, r, env.Fixtures.Worker, http.MethodPost, "/api/v1/applications", gin.H{"job_id": 4242})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDecideHandler(t *testing.T) {
	env := controllertest.New(t)
	r := router(env)
	job := env.Job(t, env.Fixtures.Poster, site)

	rec, resp := env.Do(t, r, env.Fixtures.Worker, http.MethodPost, "/api/v1/applications", gin.H{"job_id": job.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	appPath := fmt.Sprintf("/api/v1/applications/%v/status", resp["id"])

	rec, _ = env.Do(t, r, env.Fixtures.Poster, http.MethodPatch, appPath, gin.H{"status": "withdrawn"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = env.Do(t, r, env.Fixtures.Poster2, http.MethodPatch, appPath, gin.H{"status": "accepted"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(apperror.CodeAuthorization), resp["code"])

	rec, resp = env.Do(t, r, env.Fixtures.Poster, http.MethodPatch, appPath, gin.H{"status": "accepted"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "accepted", resp["status"])

	got, err := env.Store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobAssigned, got.Status)
	assert.True(t, got.AssignedTo(env.Fixtures.Worker.ID))

	rec, resp = env.Do(t, r, env.Fixtures.Poster, http.MethodPatch, appPath, gin.H{"status": "rejected"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperror.CodeInvalidTransition), resp["code"])
}

func TestListHandlers(t *testing.T) {
	env := controllertest.New(t)
	r := router(env)
	job := env.Job(t, env.Fixtures.Poster, site)

	rec, _ := env.Do(t, r, env.Fixtures.Worker, http.MethodPost, "/api/v1/applications", gin.H{"job_id": job.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = env.Do(t, r, env.Fixtures.Poster, http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d/applications", job.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var apps []model.Application
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apps))
	require.Len(t, apps, 1)
	assert.Equal(t, env.Fixtures.Worker.ID, apps[0].WorkerID)

	rec, _ = env.Do(t, r, env.Fixtures.Worker, http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d/applications", job.ID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.Do(t, r, env.Fixtures.Worker, http.MethodGet, "/api/v1/applications/mine", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	apps = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apps))
	assert.Len(t, apps, 1)
}
