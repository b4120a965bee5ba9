// Package job provides HTTP handlers for posting jobs and moving them
// through their lifecycle.
package job

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/lifecycle"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/repository"
	"Fixer-backend/internal/utilities"
)

// JobController handles job related endpoints
type JobController struct {
	Lifecycle *lifecycle.Service
	Log       logger.Logger
}

// NewJobController creates a new instance of JobController
func NewJobController(svc *lifecycle.Service, log logger.Logger) *JobController {
	return &JobController{
		Lifecycle: svc,
		Log:       log,
	}
}

// StartRequest carries the worker's reported position.
type StartRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (jc *JobController) caller(c *gin.Context) (model.CallerIdentity, bool) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{
			Error: err.Error(),
			Code:  string(apperror.CodeUnauthenticated),
		})
		return model.CallerIdentity{}, false
	}
	return caller, true
}

// CreateJob posts a new job owned by the caller.
// @Summary Post a job
// @Description Only posters can create jobs. Service fee and total default to the platform fee policy.
// @Tags Job
// @Accept json
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param job body lifecycle.JobDraft true "Job information"
// @Success 201 {object} model.Job "Job created"
// @Failure 400 {object} utilities.ErrorResponse "Invalid job information"
// @Failure 401 {object} utilities.ErrorResponse "Invalid token"
// @Failure 403 {object} utilities.ErrorResponse "Not logged in as poster"
// @Router /jobs [post]
func (jc *JobController) CreateJob(c *gin.Context) {
	caller, ok := jc.caller(c)
	if !ok {
		return
	}

	var draft lifecycle.JobDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		utilities.RespondError(c, jc.Log, apperror.Validation("Invalid request body: %s", err.Error()))
		return
	}

	job, err := jc.Lifecycle.CreateJob(c.Request.Context(), caller, draft)
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// ListJobs finds jobs, nearest first when a position is given.
// @Summary List jobs
// @Description lat and lng must be given together; radius_miles defaults to 25
// @Tags Job
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param lat query number false "Latitude of the search center"
// @Param lng query number false "Longitude of the search center"
// @Param radius_miles query number false "Search radius in miles"
// @Param category query string false "Exact category"
// @Param status query string false "Job status, e.g. open"
// @Param poster_id query int false "Jobs posted by this user"
// @Param worker_id query int false "Jobs assigned to this user"
// @Param limit query int false "Maximum number of jobs"
// @Success 200 {array} repository.NearbyJob "Matching jobs"
// @Failure 400 {object} utilities.ErrorResponse "Invalid query"
// @Failure 401 {object} utilities.ErrorResponse "Invalid token"
// @Router /jobs [get]
func (jc *JobController) ListJobs(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}

	jobs, err := jc.Lifecycle.ListJobs(c.Request.Context(), filter)
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func parseFilter(c *gin.Context) (repository.JobFilter, error) {
	f := repository.JobFilter{
		Category: c.Query("category"),
		Status:   model.JobStatus(c.Query("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, apperror.Validation("unknown job status %q", f.Status)
	}

	rawLat, rawLng := c.Query("lat"), c.Query("lng")
	if (rawLat == "") != (rawLng == "") {
		return f, apperror.Validation("lat and lng must be given together")
	}
	if rawLat != "" {
		lat, errLat := strconv.ParseFloat(rawLat, 64)
		lng, errLng := strconv.ParseFloat(rawLng, 64)
		if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			return f, apperror.Validation("invalid coordinates %s,%s", rawLat, rawLng)
		}
		f.Near = &model.Coordinates{Latitude: lat, Longitude: lng}
	}
	if raw := c.Query("radius_miles"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r <= 0 {
			return f, apperror.Validation("radius_miles must be a positive number")
		}
		f.RadiusMiles = r
	}

	for name, dst := range map[string]*uint{"poster_id": &f.PosterID, "worker_id": &f.WorkerID} {
		if raw := c.Query(name); raw != "" {
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return f, apperror.Validation("invalid %s", name)
			}
			*dst = uint(v)
		}
	}
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return f, apperror.Validation("invalid limit")
		}
		f.Limit = v
	}
	return f, nil
}

// GetJob returns one job.
// @Summary Get job by id
// @Tags Job
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Job ID"
// @Success 200 {object} model.Job "Job"
// @Failure 404 {object} utilities.ErrorResponse "Job not found"
// @Router /jobs/{id} [get]
func (jc *JobController) GetJob(c *gin.Context) {
	id, err := utilities.ParseID(c, "id")
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}
	job, err := jc.Lifecycle.GetJob(c.Request.Context(), id)
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// StartJob marks an assigned job as in progress.
// @Summary Start job
// @Description Only the assigned worker can start the job. When location checking is enabled the worker must be within the configured radius of the job site.
// @Tags Job
// @Accept json
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Job ID"
// @Param location body StartRequest false "Worker position"
// @Success 200 {object} model.Job "Job started"
// @Failure 400 {object} utilities.ErrorResponse "Job is not assigned"
// @Failure 403 {object} utilities.ErrorResponse "Not the assigned worker"
// @Failure 409 {object} utilities.ErrorResponse "Too far from the job site"
// @Router /jobs/{id}/start [patch]
func (jc *JobController) StartJob(c *gin.Context) {
	caller, ok := jc.caller(c)
	if !ok {
		return
	}
	id, err := utilities.ParseID(c, "id")
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}

	var req StartRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utilities.RespondError(c, jc.Log, apperror.Validation("Invalid request body: %s", err.Error()))
			return
		}
	}
	var at *model.Coordinates
	if req.Latitude != nil && req.Longitude != nil {
		at = &model.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}

	job, err := jc.Lifecycle.StartJob(c.Request.Context(), caller, id, at)
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// CompleteJob finishes an in-progress job.
// @Summary Complete job
// @Description Only the assigned worker can complete the job. A pending earning is recorded.
// @Tags Job
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Job ID"
// @Success 200 {object} lifecycle.Completion "Job completed"
// @Failure 400 {object} utilities.ErrorResponse "Job is not in progress"
// @Failure 403 {object} utilities.ErrorResponse "Not the assigned worker"
// @Router /jobs/{id}/complete [patch]
func (jc *JobController) CompleteJob(c *gin.Context) {
	caller, ok := jc.caller(c)
	if !ok {
		return
	}
	id, err := utilities.ParseID(c, "id")
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}

	done, err := jc.Lifecycle.CompleteJob(c.Request.Context(), caller, id)
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}
	c.JSON(http.StatusOK, done)
}

// CancelJob cancels a job that has not been completed.
// @Summary Cancel job
// @Description Only the poster can cancel
// @Tags Job
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Job ID"
// @Success 200 {object} model.Job "Job canceled"
// @Failure 400 {object} utilities.ErrorResponse "Job can no longer be canceled"
// @Failure 403 {object} utilities.ErrorResponse "Not the poster"
// @Router /jobs/{id}/cancel [patch]
func (jc *JobController) CancelJob(c *gin.Context) {
	caller, ok := jc.caller(c)
	if !ok {
		return
	}
	id, err := utilities.ParseID(c, "id")
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}

	job, err := jc.Lifecycle.CancelJob(c.Request.Context(), caller, id)
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ReleaseFunds pays the worker of a completed job.
// @Summary Release funds to the worker
// @Description Only the poster can release funds. A failed transfer moves the job to payment_failed and may be retried with the same endpoint.
// @Tags Job
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Job ID"
// @Success 200 {object} lifecycle.Release "Funds released"
// @Failure 400 {object} utilities.ErrorResponse "Job not completed or worker has no payout account"
// @Failure 403 {object} utilities.ErrorResponse "Not the poster"
// @Failure 409 {object} utilities.ErrorResponse "Funds already released"
// @Failure 502 {object} utilities.ErrorResponse "Payment gateway unavailable"
// @Router /jobs/{id}/release-funds [post]
func (jc *JobController) ReleaseFunds(c *gin.Context) {
	caller, ok := jc.caller(c)
	if !ok {
		return
	}
	id, err := utilities.ParseID(c, "id")
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}

	release, err := jc.Lifecycle.ReleaseFunds(c.Request.Context(), caller, id)
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}
	c.JSON(http.StatusOK, release)
}
