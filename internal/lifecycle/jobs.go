package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/events"
	"Fixer-backend/internal/geo"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/notification"
	"Fixer-backend/internal/payment"
	"Fixer-backend/internal/repository"
)

// JobDraft is the poster's input for a new job.
type JobDraft struct {
	Title             string            `json:"title" binding:"required"`
	Description       string            `json:"description"`
	Category          string            `json:"category"`
	PaymentType       string            `json:"payment_type"`
	PaymentAmount     float64           `json:"payment_amount" binding:"required"`
	ServiceFee        *float64          `json:"service_fee"`
	TotalAmount       *float64          `json:"total_amount"`
	Address           string            `json:"address"`
	Location          model.Coordinates `json:"location"`
	DateNeeded        time.Time         `json:"date_needed"`
	RequiredSkills    []string          `json:"required_skills"`
	EquipmentProvided bool              `json:"equipment_provided"`
}

func (d JobDraft) validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return apperror.Validation("title is required")
	}
	if payment.ToCents(d.PaymentAmount) <= 0 {
		return apperror.Validation("payment_amount must be greater than zero")
	}
	if d.ServiceFee != nil && *d.ServiceFee < 0 {
		return apperror.Validation("service_fee must not be negative")
	}
	if d.TotalAmount != nil && *d.TotalAmount < d.PaymentAmount {
		return apperror.Validation("total_amount must cover payment_amount")
	}
	if d.Location.Latitude < -90 || d.Location.Latitude > 90 ||
		d.Location.Longitude < -180 || d.Location.Longitude > 180 {
		return apperror.Validation("location is out of range")
	}
	switch d.PaymentType {
	case "", model.PayFixed, model.PayHourly:
	default:
		return apperror.Validation("payment_type must be %q or %q", model.PayFixed, model.PayHourly)
	}
	return nil
}

// CreateJob posts a new open job owned by the caller. Fee and total are
// derived from the fee policy unless the draft carries them.
func (s *Service) CreateJob(ctx context.Context, caller model.CallerIdentity, draft JobDraft) (*model.Job, error) {
	if err := draft.validate(); err != nil {
		return nil, observe("create_job", err)
	}

	fee := s.payouts.Fees().Fee(draft.PaymentAmount)
	if draft.ServiceFee != nil {
		fee = *draft.ServiceFee
	}
	total := payment.FromCents(payment.ToCents(draft.PaymentAmount) + payment.ToCents(fee))
	if draft.TotalAmount != nil {
		total = *draft.TotalAmount
	}
	paymentType := draft.PaymentType
	if paymentType == "" {
		paymentType = model.PayFixed
	}

	job := &model.Job{
		Title:             strings.TrimSpace(draft.Title),
		Description:       draft.Description,
		Category:          draft.Category,
		PaymentType:       paymentType,
		PaymentAmount:     draft.PaymentAmount,
		ServiceFee:        fee,
		TotalAmount:       total,
		Address:           draft.Address,
		Latitude:          draft.Location.Latitude,
		Longitude:         draft.Location.Longitude,
		DateNeeded:        draft.DateNeeded,
		RequiredSkills:    draft.RequiredSkills,
		EquipmentProvided: draft.EquipmentProvided,
		PosterID:          caller.UserID,
		Status:            model.JobOpen,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, observe("create_job", err)
	}

	s.publish(ctx, events.New(events.JobCreated, job.ID, caller.UserID, map[string]interface{}{
		"category":       job.Category,
		"payment_amount": job.PaymentAmount,
	}))
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uint) (*model.Job, error) {
	return s.store.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context, f repository.JobFilter) ([]repository.NearbyJob, error) {
	if f.Near != nil && f.RadiusMiles <= 0 {
		f.RadiusMiles = 25
	}
	return s.store.ListJobs(ctx, f)
}

// StartJob moves an assigned job to in_progress once the worker proves they
// are on site.
func (s *Service) StartJob(ctx context.Context, caller model.CallerIdentity, jobID uint, at *model.Coordinates) (*model.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, observe("start_job", err)
	}
	if !job.AssignedTo(caller.UserID) {
		return nil, observe("start_job", apperror.Authorization("only the assigned worker can start job %d", jobID))
	}
	if job.Status != model.JobAssigned {
		return nil, observe("start_job", apperror.InvalidTransition("job", job.Status, model.JobInProgress))
	}

	var distance *float64
	if s.opts.LocationCheckEnabled {
		if at == nil {
			return nil, observe("start_job", apperror.Validation("current location is required to start this job"))
		}
		d := geo.DistanceFeet(*at, job.Location())
		if d > s.opts.RequiredRadiusFeet {
			return nil, observe("start_job", apperror.LocationVerification(d, s.opts.RequiredRadiusFeet))
		}
		distance = &d
	}

	now := s.now()
	if err := s.store.TransitionJob(ctx, job.ID, model.JobAssigned, model.JobInProgress, map[string]interface{}{
		"started_at": now,
	}); err != nil {
		return nil, observe("start_job", err)
	}
	transitioned("job", model.JobAssigned, model.JobInProgress)

	meta := map[string]interface{}{"job_id": job.ID}
	if distance != nil {
		meta["distance_feet"] = *distance
	}
	s.notify(ctx, notification.Input{
		UserID:     job.PosterID,
		Type:       model.NotificationJobStarted,
		Title:      "Job started",
		Message:    fmt.Sprintf("The worker has arrived and started %q.", job.Title),
		SourceID:   &job.ID,
		SourceType: model.SourceJob,
		Metadata:   meta,
	})
	s.publish(ctx, events.New(events.JobStarted, job.ID, caller.UserID, meta))

	return s.store.GetJob(ctx, job.ID)
}

// Completion is the result of CompleteJob.
type Completion struct {
	Job     *model.Job     `json:"job"`
	Earning *model.Earning `json:"earning"`
}

// CompleteJob finishes an in-progress job and records the worker's pending earning.
func (s *Service) CompleteJob(ctx context.Context, caller model.CallerIdentity, jobID uint) (*Completion, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, observe("complete_job", err)
	}
	if !job.AssignedTo(caller.UserID) {
		return nil, observe("complete_job", apperror.Authorization("only the assigned worker can complete job %d", jobID))
	}
	if job.Status != model.JobInProgress {
		return nil, observe("complete_job", apperror.InvalidTransition("job", job.Status, model.JobCompleted))
	}

	var earning *model.Earning
	err = s.store.WithTx(ctx, func(tx *repository.Store) error {
		if err := tx.TransitionJob(ctx, job.ID, model.JobInProgress, model.JobCompleted, map[string]interface{}{
			"completed_at": s.now(),
		}); err != nil {
			return err
		}
		if _, err := tx.TransitionJobApplications(ctx, job.ID, model.ApplicationAccepted, model.ApplicationCompleted); err != nil {
			return err
		}
		var err error
		earning, _, err = tx.EnsureEarning(ctx, s.payouts.Fees().EarningFor(job))
		return err
	})
	if err != nil {
		return nil, observe("complete_job", err)
	}
	transitioned("job", model.JobInProgress, model.JobCompleted)

	s.notify(ctx, notification.Input{
		UserID:     job.PosterID,
		Type:       model.NotificationJobCompleted,
		Title:      "Job completed",
		Message:    fmt.Sprintf("%q has been marked complete. You can now release the payment.", job.Title),
		SourceID:   &job.ID,
		SourceType: model.SourceJob,
		Metadata:   map[string]interface{}{"job_id": job.ID, "earning_id": earning.ID},
	})
	s.publish(ctx, events.New(events.JobCompleted, job.ID, caller.UserID, nil))

	updated, err := s.store.GetJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	return &Completion{Job: updated, Earning: earning}, nil
}

// CancelJob is the poster's way out before completion.
func (s *Service) CancelJob(ctx context.Context, caller model.CallerIdentity, jobID uint) (*model.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, observe("cancel_job", err)
	}
	if job.PosterID != caller.UserID {
		return nil, observe("cancel_job", apperror.Authorization("only the poster can cancel job %d", jobID))
	}
	if !job.Status.CanTransitionTo(model.JobCanceled) {
		return nil, observe("cancel_job", apperror.InvalidTransition("job", job.Status, model.JobCanceled))
	}

	err = s.store.WithTx(ctx, func(tx *repository.Store) error {
		if err := tx.TransitionJob(ctx, job.ID, job.Status, model.JobCanceled, nil); err != nil {
			return err
		}
		_, err := tx.TransitionJobApplications(ctx, job.ID, model.ApplicationAccepted, model.ApplicationCancelled)
		return err
	})
	if err != nil {
		return nil, observe("cancel_job", err)
	}
	transitioned("job", job.Status, model.JobCanceled)

	if job.WorkerID != nil {
		s.notify(ctx, notification.Input{
			UserID:     *job.WorkerID,
			Type:       model.NotificationJobCanceled,
			Title:      "Job canceled",
			Message:    fmt.Sprintf("The poster canceled %q.", job.Title),
			SourceID:   &job.ID,
			SourceType: model.SourceJob,
			Metadata:   map[string]interface{}{"job_id": job.ID, "previous_status": string(job.Status)},
		})
	}
	s.publish(ctx, events.New(events.JobCanceled, job.ID, caller.UserID, map[string]interface{}{
		"previous_status": string(job.Status),
	}))

	return s.store.GetJob(ctx, job.ID)
}
