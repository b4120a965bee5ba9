// Package lifecycle owns the job state machine: posting, applying,
// assignment, on-site start, completion, cancellation and fund release.
package lifecycle

import (
	"context"
	"time"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/events"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/metrics"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/notification"
	"Fixer-backend/internal/payment"
	"Fixer-backend/internal/repository"
)

// Notifier receives user facing notifications.
type Notifier interface {
	Notify(ctx context.Context, in notification.Input) (*model.Notification, error)
}

// Payouts moves money to workers.
type Payouts interface {
	Fees() payment.FeePolicy
	Transfer(ctx context.Context, job *model.Job, worker *model.User, paymentID uint) (*payment.TransferResult, error)
}

// Options are the tunables of the state machine.
type Options struct {
	LocationCheckEnabled bool
	RequiredRadiusFeet   float64
}

type Service struct {
	store     *repository.Store
	payouts   Payouts
	notifier  Notifier
	publisher events.Publisher
	opts      Options
	log       logger.Logger
	now       func() time.Time
}

func NewService(store *repository.Store, payouts Payouts, notifier Notifier, publisher events.Publisher, opts Options, log logger.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if opts.RequiredRadiusFeet <= 0 {
		opts.RequiredRadiusFeet = 500
	}
	return &Service{
		store:     store,
		payouts:   payouts,
		notifier:  notifier,
		publisher: publisher,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// observe counts rejected operations by error code and passes err through.
func observe(operation string, err error) error {
	if err == nil {
		return nil
	}
	code := "INTERNAL"
	if appErr, ok := apperror.As(err); ok {
		code = string(appErr.Code)
	}
	metrics.OperationRejections.WithLabelValues(operation, code).Inc()
	return err
}

func transitioned[S ~string](entity string, from, to S) {
	metrics.StatusTransitions.WithLabelValues(entity, string(from), string(to)).Inc()
}

// notify and publish never fail the operation that triggered them.
func (s *Service) notify(ctx context.Context, inputs ...notification.Input) {
	if s.notifier == nil {
		return
	}
	for _, in := range inputs {
		if _, err := s.notifier.Notify(ctx, in); err != nil {
			s.log.Warn("failed to create notification", map[string]interface{}{
				"user_id": in.UserID,
				"type":    string(in.Type),
				"error":   err.Error(),
			})
		}
	}
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn("failed to publish lifecycle event", map[string]interface{}{
			"type":   ev.Type,
			"job_id": ev.JobID,
			"error":  err.Error(),
		})
	}
}
