package job

import (
	"context"
	"encoding/json"
	"errors"
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
)

var site = model.Coordinates{Latitude: 40.7128, Longitude: -74.0060}

func router(env *controllertest.Env) *gin.Engine {
	r, api := env.Router()
	jc := NewJobController(env.Lifecycle, env.Log)

	api.GET("/jobs", jc.ListJobs)
	api.GET("/jobs/:id", jc.GetJob)
	api.POST("/jobs", middleware.CheckRole(model.RolePoster), jc.CreateJob)
	api.PATCH("/jobs/:id/start", jc.StartJob)
	api.PATCH("/jobs/:id/complete", jc.CompleteJob)
	api.PATCH("/jobs/:id/cancel", jc.CancelJob)
	api.POST("/jobs/:id/release-funds", jc.ReleaseFunds)
	return r
}

func jobPath(id uint, suffix string) string {
	return fmt.Sprintf("/api/v1/jobs/%d%s", id, suffix)
}

func TestCreateJob_success(t *testing.T) {
	env := controllertest.New(t)
	r := router(env)

	rec, resp := env.Do(t, r, env.Fixtures.Poster, http.MethodPost, "/api/v1/jobs", gin.H{
		"title":          "Fix leaking sink",
		"category":       "plumbing",
		"payment_type":   "fixed",
		"payment_amount": 80,
		"location":       gin.H{"latitude": site.Latitude, "longitude": site.Longitude},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "open", resp["status"])
	assert.Equal(t, float64(8), resp["service_fee"])
	assert.Equal(t, float64(88), resp["total_amount"])
	assert.Equal(t, float64(env.Fixtures.Poster.ID), resp["poster_id"])
}

func TestCreateJob_workerForbidden(t *testing.T) {
	env := controllertest.New(t)
	r := router(env)

	rec, resp := env.Do(t, r, env.Fixtures.Worker, http.MethodPost, "/api/v1/jobs", gin.H{
		"title":          "Fix leaking sink",
		"payment_amount": 80,
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(apperror.CodeAuthorization), resp["code"])
}

func TestCreateJob_invalidBody(t *testing.T) {
	env := controllertest.New(t)
	r := router(env)

	rec, resp := env.Do(t, r, env.Fixtures.Poster, http.MethodPost, "/api/v1/jobs", gin.H{
		"title":          "Fix leaking sink",
		"payment_amount": -5,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperror.CodeValidation), resp["code"])
}

func TestGetJob(t *testing.T) {
	env := controllertest.New(t)
	r := router(env)
	job := env.Job(t, env.Fixtures.Poster, site)

	rec, resp := env.Do(t, r, env.Fixtures.Worker, http.MethodGet, jobPath(job.ID, ""), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, job.Title, resp["title"])

	rec, resp = env.Do(t, r, env.Fixtures.Worker, http.MethodGet, jobPath(9999, ""), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(apperror.CodeNotFound), resp["code"])

	rec, _ = env.Do(t, r, env.Fixtures.Worker, http.MethodGet, "/api/v1/jobs/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListJobs_nearby(t *testing.T) {
	env := controllertest.New(t)
	r := router(env)

	near := env.Job(t, env.Fixtures.Poster, site)
	env.Job(t, env.Fixtures.Poster2, model.Coordinates{Latitude: 34.0522, Longitude: -118.2437})

	rec, _ := env.Do(t, r, env.Fixtures.Worker, http.MethodGet, "/api/v1/jobs?lat=40.7130&lng=-74.0060&radius_miles=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var jobs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, float64(near.ID), jobs[0]["id"])
	assert.Less(t, jobs[0]["distance_miles"].(float64), 0.1)
}

func TestListJobs_invalidQuery(t *testing.T) {
	env := controllertest.New(t)
	r := router(env)

	for _, q := range []string{"lat=40.7", "lat=abc&lng=1", "radius_miles=-1", "status=done", "limit=x"} {
		rec, _ := env.Do(t, r, env.Fixtures.Worker, http.MethodGet, "/api/v1/jobs?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestStartJob(t *testing.T) {
	env := controllertest.New(t)
	r := router(env)
	job := env.Assigned(t, env.Fixtures.Poster, env.Fixtures.Worker, site)

	rec, resp := env.Do(t, r, env.Fixtures.Poster, http.MethodPatch, jobPath(job.ID, "/start"), gin.H{
		"latitude": site.Latitude, "longitude": site.Longitude,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp = env.Do(t, r, env.Fixtures.Worker, http.MethodPatch, jobPath(job.ID, "/start"), gin.H{
		"latitude": 40.7200, "longitude": -74.0060,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(apperror.CodeLocationVerification), resp["code"])
	details := resp["details"].(map[string]interface{})
	assert.Greater(t, details["distance_feet"].(float64), float64(500))

	rec, resp = env.Do(t, r, env.Fixtures.Worker, http.MethodPatch, jobPath(job.ID, "/start"), gin.H{
		"latitude": 40.7130, "longitude": -74.0060,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "in_progress", resp["status"])

	rec, resp = env.Do(t, r, env.Fixtures.Worker, http.MethodPatch, jobPath(job.ID, "/start"), gin.H{
		"latitude": 40.7130, "longitude": -74.0060,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperror.CodeInvalidTransition), resp["code"])
}

func TestCompleteAndReleaseFunds(t *testing.T) {
	env := controllertest.New(t)
	r := router(env)
	job := env.Assigned(t, env.Fixtures.Poster, env.Fixtures.Worker, site)
	_, err := env.Lifecycle.StartJob(context.Background(), env.Fixtures.Worker.Caller(), job.ID, &site)
	require.NoError(t, err)

	rec, resp := env.Do(t, r, env.Fixtures.Worker, http.MethodPost, jobPath(job.ID, "/release-funds"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp = env.Do(t, r, env.Fixtures.Worker, http.MethodPatch, jobPath(job.ID, "/complete"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "completed", resp["job"].(map[string]interface{})["status"])
	assert.Equal(t, "pending", resp["earning"].(map[string]interface{})["status"])

	rec, resp = env.Do(t, r, env.Fixtures.Poster, http.MethodPost, jobPath(job.ID, "/release-funds"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "completed", resp["payment"].(map[string]interface{})["status"])
	assert.Equal(t, "paid", resp["earning"].(map[string]interface{})["status"])

	rec, resp = env.Do(t, r, env.Fixtures.Poster, http.MethodPost, jobPath(job.ID, "/release-funds"), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(apperror.CodeConflict), resp["code"])
}

func TestReleaseFunds_gatewayDown(t *testing.T) {
	env := controllertest.New(t)
	r := router(env)
	job := env.Completed(t, env.Fixtures.Poster, env.Fixtures.Worker, site)

	env.Gateway.Fail("create_transfer", apperror.GatewayUnavailable(errors.New("timeout"), "create_transfer"))
	rec, resp := env.Do(t, r, env.Fixtures.Poster, http.MethodPost, jobPath(job.ID, "/release-funds"), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, string(apperror.CodeGatewayUnavailable), resp["code"])

	rec, resp = env.Do(t, r, env.Fixtures.Poster, http.MethodGet, jobPath(job.ID, ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "payment_failed", resp["status"])
}

func TestReleaseFunds_noPayoutAccount(t *testing.T) {
	env := controllertest.New(t)
	r := router(env)
	job := env.Completed(t, env.Fixtures.Poster, env.Fixtures.WorkerNoPayout, site)

	rec, resp := env.Do(t, r, env.Fixtures.Poster, http.MethodPost, jobPath(job.ID, "/release-funds"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperror.CodeNoPayoutAccount), resp["code"])
}

func TestCancelJob(t *testing.T) {
	env := controllertest.New(t)
	r := router(env)
	job := env.Assigned(t, env.Fixtures.Poster, env.Fixtures.Worker, site)

	rec, _ := env.Do(t, r, env.Fixtures.Worker, http.MethodPatch, jobPath(job.ID, "/cancel"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := env.Do(t, r, env.Fixtures.Poster, http.MethodPatch, jobPath(job.ID, "/cancel"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "canceled", resp["status"])

	rec, _ = env.Do(t, r, env.Fixtures.Poster, http.MethodPatch, jobPath(job.ID, "/cancel"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
