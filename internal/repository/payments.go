package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/database"
	"Fixer-backend/internal/model"
)

func (s *Store) CreatePayment(ctx context.Context, p *model.Payment) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Store) GetPayment(ctx context.Context, id uint) (*model.Payment, error) {
	var p model.Payment
	if err := s.first(ctx, &p, "payment", id, "id = ?", id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetPaymentByIntent(ctx context.Context, intentID string) (*model.Payment, error) {
	var p model.Payment
	if err := s.first(ctx, &p, "payment", intentID, "payment_intent_id = ?", intentID); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPaymentByTransaction returns nil without error when nothing matches.
func (s *Store) FindPaymentByTransaction(ctx context.Context, transactionID string) (*model.Payment, error) {
	var p model.Payment
	err := s.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPendingCharge returns the open charge of payerID for jobID, or nil.
func (s *Store) FindPendingCharge(ctx context.Context, jobID, payerID uint) (*model.Payment, error) {
	var p model.Payment
	err := s.db.WithContext(ctx).
		Where("job_id = ? AND payer_id = ? AND kind = ? AND status = ?", jobID, payerID, model.PaymentKindCharge, model.PaymentPending).
		Order("id DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// HasPaymentInStatus reports whether jobID has a payment of kind in one of statuses.
func (s *Store) HasPaymentInStatus(ctx context.Context, jobID uint, kind model.PaymentKind, statuses ...model.PaymentStatus) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Payment{}).
		Where("job_id = ? AND kind = ? AND status IN ?", jobID, kind, statuses).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) ListPaymentsForJob(ctx context.Context, jobID uint) ([]model.Payment, error) {
	var out []model.Payment
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("id ASC").Find(&out).Error
	return out, err
}

// TransitionPayment applies from -> to on one payment.
func (s *Store) TransitionPayment(ctx context.Context, id uint, from, to model.PaymentStatus, extra map[string]interface{}) error {
	if !from.CanTransitionTo(to) {
		return apperror.InvalidTransition("payment", from, to)
	}
	return casUpdate(ctx, s.db, &model.Payment{}, "payment", id, from, to, extra)
}

// EnsureEarning inserts e unless an earning for the job exists already, in
// which case the existing row is returned and created is false.
func (s *Store) EnsureEarning(ctx context.Context, e *model.Earning) (earning *model.Earning, created bool, err error) {
	existing, err := s.FindEarningByJob(ctx, e.JobID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	err = s.db.WithContext(ctx).Create(e).Error
	if database.IsUniqueViolation(err) {
		existing, err = s.FindEarningByJob(ctx, e.JobID)
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// FindEarningByJob returns nil without error when the job has no earning.
func (s *Store) FindEarningByJob(ctx context.Context, jobID uint) (*model.Earning, error) {
	var e model.Earning
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListEarningsForWorker(ctx context.Context, workerID uint) ([]model.Earning, error) {
	var out []model.Earning
	err := s.db.WithContext(ctx).Where("worker_id = ?", workerID).Order("created_at DESC").Find(&out).Error
	return out, err
}

// TransitionEarning applies from -> to on one earning.
func (s *Store) TransitionEarning(ctx context.Context, id uint, from, to model.EarningStatus, extra map[string]interface{}) error {
	if !from.CanTransitionTo(to) {
		return apperror.InvalidTransition("earning", from, to)
	}
	return casUpdate(ctx, s.db, &model.Earning{}, "earning", id, from, to, extra)
}
