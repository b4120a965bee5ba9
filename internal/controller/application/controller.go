// Package application provides HTTP handlers for job application operations.
package application

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/lifecycle"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/utilities"
)

// ApplicationController handles job application related endpoints
type ApplicationController struct {
	Lifecycle *lifecycle.Service
	Log       logger.Logger
}

// NewApplicationController creates a new instance of ApplicationController.
func NewApplicationController(svc *lifecycle.Service, log logger.Logger) *ApplicationController {
	return &ApplicationController{
		Lifecycle: svc,
		Log:       log,
	}
}

// SubmitRequest is the body of a new application.
type SubmitRequest struct {
	JobID uint `json:"job_id" binding:"required"`
	lifecycle.ApplicationDetails
}

// DecisionRequest is the poster's verdict on an application.
type DecisionRequest struct {
	Status model.ApplicationStatus `json:"status" binding:"required,oneof=accepted rejected"`
}

// ApplicationHandler handles the creation of a new job application by a worker.
// @Summary Apply to a job
// @Description Only workers can apply, once per job while an application is pending or accepted
// @Tags Application
// @Accept json
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param application body SubmitRequest true "Application information"
// @Success 201 {object} model.Application "Successfully applied"
// @Failure 400 {object} utilities.ErrorResponse "Invalid request body"
// @Failure 401 {object} utilities.ErrorResponse "Invalid token"
// @Failure 403 {object} utilities.ErrorResponse "Not logged in as worker, or applying to own job"
// @Failure 404 {object} utilities.ErrorResponse "Job not found"
// @Failure 409 {object} utilities.ErrorResponse "Job not open or already applied"
// @Router /applications [post]
func (ac *ApplicationController) ApplicationHandler(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utilities.RespondError(c, ac.Log, apperror.Validation("Invalid request body: %s", err.Error()))
		return
	}

	app, err := ac.Lifecycle.SubmitApplication(c.Request.Context(), caller, req.JobID, req.ApplicationDetails)
	if err != nil {
		utilities.RespondError(c, ac.Log, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// DecideHandler accepts or rejects a pending application.
// @Summary Accept or reject an application
// @Description Only the poster of the job can decide. Accepting assigns the worker to the job.
// @Tags Application
// @Accept json
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Application ID"
// @Param decision body DecisionRequest true "accepted or rejected"
// @Success 200 {object} model.Application "Updated application"
// @Failure 400 {object} utilities.ErrorResponse "Invalid status or application no longer pending"
// @Failure 403 {object} utilities.ErrorResponse "Not the poster of the job"
// @Failure 404 {object} utilities.ErrorResponse "Application not found"
// @Router /applications/{id}/status [patch]
func (ac *ApplicationController) DecideHandler(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	id, err := utilities.ParseID(c, "id")
	if err != nil {
		utilities.RespondError(c, ac.Log, err)
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utilities.RespondError(c, ac.Log, apperror.Validation("status must be accepted or rejected"))
		return
	}

	app, err := ac.Lifecycle.DecideApplication(c.Request.Context(), caller, id, req.Status == model.ApplicationAccepted)
	if err != nil {
		utilities.RespondError(c, ac.Log, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// ListForJobHandler lists every application of a job.
// @Summary List applications of a job
// @Description Only the poster of the job can see its applications
// @Tags Application
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Job ID"
// @Success 200 {array} model.Application "Applications, oldest first"
// @Failure 403 {object} utilities.ErrorResponse "Not the poster of the job"
// @Failure 404 {object} utilities.ErrorResponse "Job not found"
// @Router /jobs/{id}/applications [get]
func (ac *ApplicationController) ListForJobHandler(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	id, err := utilities.ParseID(c, "id")
	if err != nil {
		utilities.RespondError(c, ac.Log, err)
		return
	}

	apps, err := ac.Lifecycle.ListApplicationsForJob(c.Request.Context(), caller, id)
	if err != nil {
		utilities.RespondError(c, ac.Log, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

// ListMineHandler lists the caller's own applications.
// @Summary List my applications
// @Tags Application
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Success 200 {array} model.Application "Applications, newest first"
// @Router /applications/mine [get]
func (ac *ApplicationController) ListMineHandler(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	apps, err := ac.Lifecycle.ListMyApplications(c.Request.Context(), caller)
	if err != nil {
		utilities.RespondError(c, ac.Log, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}
