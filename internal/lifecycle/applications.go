package lifecycle

import (
	"context"
	"fmt"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/events"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/notification"
	"Fixer-backend/internal/repository"
)

// ApplicationDetails is what a worker sends with an application.
type ApplicationDetails struct {
	Message          string   `json:"message"`
	HourlyRate       *float64 `json:"hourly_rate"`
	ExpectedDuration string   `json:"expected_duration"`
}

// SubmitApplication records a worker's bid on an open job.
func (s *Service) SubmitApplication(ctx context.Context, caller model.CallerIdentity, jobID uint, details ApplicationDetails) (*model.Application, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, observe("submit_application", err)
	}
	if job.PosterID == caller.UserID {
		return nil, observe("submit_application", apperror.Authorization("you cannot apply to your own job"))
	}
	if job.Status != model.JobOpen {
		return nil, observe("submit_application", apperror.Conflict("job %d is no longer accepting applications", jobID))
	}
	if details.HourlyRate != nil && *details.HourlyRate <= 0 {
		return nil, observe("submit_application", apperror.Validation("hourly_rate must be greater than zero"))
	}

	active, err := s.store.HasActiveApplication(ctx, job.ID, caller.UserID)
	if err != nil {
		return nil, observe("submit_application", err)
	}
	if active {
		return nil, observe("submit_application", apperror.Conflict("you already have an active application for this job"))
	}

	app := &model.Application{
		JobID:            job.ID,
		WorkerID:         caller.UserID,
		Status:           model.ApplicationPending,
		Message:          details.Message,
		HourlyRate:       details.HourlyRate,
		ExpectedDuration: details.ExpectedDuration,
		DateApplied:      s.now(),
	}
	if err := s.store.CreateApplication(ctx, app); err != nil {
		return nil, observe("submit_application", err)
	}

	s.notify(ctx, notification.Input{
		UserID:     job.PosterID,
		Type:       model.NotificationNewApplication,
		Title:      "New application",
		Message:    fmt.Sprintf("A worker applied to %q.", job.Title),
		SourceID:   &app.ID,
		SourceType: model.SourceApplication,
		Metadata:   map[string]interface{}{"job_id": job.ID, "worker_id": caller.UserID},
	})
	s.publish(ctx, events.New(events.ApplicationSubmitted, job.ID, caller.UserID, map[string]interface{}{
		"application_id": app.ID,
	}))
	return app, nil
}

// DecideApplication accepts or rejects a pending application. Accepting
// assigns the worker to the job in the same transaction; other pending
// applications stay as they are.
func (s *Service) DecideApplication(ctx context.Context, caller model.CallerIdentity, applicationID uint, accept bool) (*model.Application, error) {
	app, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, observe("decide_application", err)
	}
	job, err := s.store.GetJob(ctx, app.JobID)
	if err != nil {
		return nil, observe("decide_application", err)
	}
	if job.PosterID != caller.UserID {
		return nil, observe("decide_application", apperror.Authorization("only the job poster can decide on applications"))
	}

	target := model.ApplicationRejected
	if accept {
		target = model.ApplicationAccepted
	}
	if app.Status != model.ApplicationPending {
		return nil, observe("decide_application", apperror.InvalidTransition("application", app.Status, target))
	}

	if accept {
		err = s.store.WithTx(ctx, func(tx *repository.Store) error {
			if err := tx.TransitionApplication(ctx, app.ID, model.ApplicationPending, model.ApplicationAccepted); err != nil {
				return err
			}
			return tx.TransitionJob(ctx, job.ID, model.JobOpen, model.JobAssigned, map[string]interface{}{
				"worker_id": app.WorkerID,
			})
		})
	} else {
		err = s.store.TransitionApplication(ctx, app.ID, model.ApplicationPending, model.ApplicationRejected)
	}
	if err != nil {
		return nil, observe("decide_application", err)
	}
	transitioned("application", model.ApplicationPending, target)
	if accept {
		transitioned("job", model.JobOpen, model.JobAssigned)
	}

	message := fmt.Sprintf("Your application for %q was not selected.", job.Title)
	eventType := events.ApplicationRejected
	if accept {
		message = fmt.Sprintf("Your application for %q was accepted. You are assigned to the job.", job.Title)
		eventType = events.ApplicationAccepted
	}
	s.notify(ctx, notification.Input{
		UserID:     app.WorkerID,
		Type:       model.NotificationApplicationStatusUpdated,
		Title:      "Application " + string(target),
		Message:    message,
		SourceID:   &app.ID,
		SourceType: model.SourceApplication,
		Metadata:   map[string]interface{}{"job_id": job.ID, "status": string(target)},
	})
	s.publish(ctx, events.New(eventType, job.ID, caller.UserID, map[string]interface{}{
		"application_id": app.ID,
		"worker_id":      app.WorkerID,
	}))

	return s.store.GetApplication(ctx, app.ID)
}

// ListApplicationsForJob is visible to the job's poster and admins.
func (s *Service) ListApplicationsForJob(ctx context.Context, caller model.CallerIdentity, jobID uint) ([]model.Application, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, observe("list_applications", err)
	}
	if job.PosterID != caller.UserID && !caller.IsAdmin() {
		return nil, observe("list_applications", apperror.Authorization("only the job poster can list its applications"))
	}
	return s.store.ListApplicationsForJob(ctx, jobID)
}

func (s *Service) ListMyApplications(ctx context.Context, caller model.CallerIdentity) ([]model.Application, error) {
	return s.store.ListApplicationsForWorker(ctx, caller.UserID)
}
