package repository

import (
	"context"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/database"
	"Fixer-backend/internal/model"
)

// CreateApplication inserts a pending application. The partial unique index
// turns a concurrent duplicate into a ConflictError.
func (s *Store) CreateApplication(ctx context.Context, app *model.Application) error {
	err := s.db.WithContext(ctx).Create(app).Error
	if database.IsUniqueViolation(err) {
		return apperror.Conflict("you already have an active application for this job")
	}
	return err
}

func (s *Store) GetApplication(ctx context.Context, id uint) (*model.Application, error) {
	var app model.Application
	if err := s.first(ctx, &app, "application", id, "id = ?", id); err != nil {
		return nil, err
	}
	return &app, nil
}

// HasActiveApplication reports whether workerID holds a pending or accepted application for jobID.
func (s *Store) HasActiveApplication(ctx context.Context, jobID, workerID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Application{}).
		Where("job_id = ? AND worker_id = ? AND status IN ?", jobID, workerID, model.ActiveApplicationStatuses).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) ListApplicationsForJob(ctx context.Context, jobID uint) ([]model.Application, error) {
	var apps []model.Application
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("date_applied ASC").Find(&apps).Error
	return apps, err
}

func (s *Store) ListApplicationsForWorker(ctx context.Context, workerID uint) ([]model.Application, error) {
	var apps []model.Application
	err := s.db.WithContext(ctx).Where("worker_id = ?", workerID).Order("date_applied DESC").Find(&apps).Error
	return apps, err
}

// TransitionApplication applies from -> to on one application.
func (s *Store) TransitionApplication(ctx context.Context, id uint, from, to model.ApplicationStatus) error {
	if !from.CanTransitionTo(to) {
		return apperror.InvalidTransition("application", from, to)
	}
	return casUpdate(ctx, s.db, &model.Application{}, "application", id, from, to, nil)
}

// TransitionJobApplications moves every application of jobID in status from to to.
// It returns the number of rows changed; zero is not an error.
func (s *Store) TransitionJobApplications(ctx context.Context, jobID uint, from, to model.ApplicationStatus) (int64, error) {
	if !from.CanTransitionTo(to) {
		return 0, apperror.InvalidTransition("application", from, to)
	}
	res := s.db.WithContext(ctx).Model(&model.Application{}).
		Where("job_id = ? AND status = ?", jobID, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}
