package lifecycle

import (
	"context"
	"fmt"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/events"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/payment"
	"Fixer-backend/internal/repository"
)

// Release is the outcome of a successful ReleaseFunds.
type Release struct {
	Job     *model.Job     `json:"job"`
	Payment *model.Payment `json:"payment"`
	Earning *model.Earning `json:"earning"`
}

// ReleaseFunds pays the worker of a completed job. Everything that can be
// checked locally is checked before the transfer payment row is written.
// A failed transfer leaves the job in payment_failed for a manual retry.
// When the gateway was unreachable the transfer row stays pending, so the
// retry sends the same idempotency key and cannot pay twice.
func (s *Service) ReleaseFunds(ctx context.Context, caller model.CallerIdentity, jobID uint) (*Release, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, observe("release_funds", err)
	}
	if job.PosterID != caller.UserID {
		return nil, observe("release_funds", apperror.Authorization("only the poster can release funds for job %d", jobID))
	}
	if job.Status != model.JobCompleted && job.Status != model.JobPaymentFailed {
		return nil, observe("release_funds", apperror.InvalidTransition("job", job.Status, "funds_released"))
	}
	if job.WorkerID == nil {
		return nil, observe("release_funds", apperror.Validation("job %d has no assigned worker", jobID))
	}

	released, err := s.store.HasPaymentInStatus(ctx, job.ID, model.PaymentKindTransfer, model.PaymentCompleted)
	if err != nil {
		return nil, observe("release_funds", err)
	}
	if released {
		return nil, observe("release_funds", apperror.Conflict("funds for job %d were already released", jobID))
	}

	worker, err := s.store.GetUser(ctx, *job.WorkerID)
	if err != nil {
		return nil, observe("release_funds", err)
	}
	if !worker.HasPayoutAccount() {
		return nil, observe("release_funds", apperror.NoPayoutAccount(worker.ID))
	}

	fees := s.payouts.Fees()
	if fees.Split(job.PaymentAmount).NetCents <= 0 {
		return nil, observe("release_funds", apperror.Validation("nothing to transfer after fees for job %d", jobID))
	}

	earning, _, err := s.store.EnsureEarning(ctx, fees.EarningFor(job))
	if err != nil {
		return nil, observe("release_funds", err)
	}

	p, err := s.transferPayment(ctx, job, fees)
	if err != nil {
		return nil, observe("release_funds", err)
	}

	result, err := s.payouts.Transfer(ctx, job, worker, p.ID)
	if err != nil {
		s.recordFailedRelease(ctx, job, p, earning, err)
		return nil, observe("release_funds", err)
	}

	if err := s.recordRelease(ctx, job, p, result.TransferID); err != nil {
		return nil, err
	}

	s.notify(ctx, payment.PayoutNotices(model.PaymentCompleted, job, p, "")...)
	s.publish(ctx, events.New(events.FundsReleased, job.ID, caller.UserID, map[string]interface{}{
		"payment_id":  p.ID,
		"transfer_id": result.TransferID,
		"net_amount":  result.Split.Net(),
	}))

	out := &Release{}
	if out.Job, err = s.store.GetJob(ctx, job.ID); err != nil {
		return nil, err
	}
	if out.Payment, err = s.store.GetPayment(ctx, p.ID); err != nil {
		return nil, err
	}
	if out.Earning, err = s.store.FindEarningByJob(ctx, job.ID); err != nil {
		return nil, err
	}
	return out, nil
}

// transferPayment returns the pending transfer of the job, creating it when
// none is in flight. Reusing the pending row keeps the idempotency key.
func (s *Service) transferPayment(ctx context.Context, job *model.Job, fees payment.FeePolicy) (*model.Payment, error) {
	payments, err := s.store.ListPaymentsForJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	for i := range payments {
		if payments[i].Kind == model.PaymentKindTransfer && payments[i].Status == model.PaymentPending {
			return &payments[i], nil
		}
	}

	split := fees.Split(job.PaymentAmount)
	p := &model.Payment{
		Kind:        model.PaymentKindTransfer,
		JobID:       job.ID,
		PayerID:     job.PosterID,
		WorkerID:    job.WorkerID,
		Amount:      split.Amount(),
		ServiceFee:  split.Fee(),
		Status:      model.PaymentPending,
		Description: fmt.Sprintf("Payout for job: %s", job.Title),
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// recordRelease marks payment, earning and job after a successful transfer.
// A webhook may have applied some of it already, so each row is re-read
// inside the transaction and only moved when it is not there yet.
func (s *Service) recordRelease(ctx context.Context, job *model.Job, p *model.Payment, transferID string) error {
	now := s.now()
	return s.store.WithTx(ctx, func(tx *repository.Store) error {
		current, err := tx.GetPayment(ctx, p.ID)
		if err != nil {
			return err
		}
		if current.Status != model.PaymentCompleted {
			if err := tx.TransitionPayment(ctx, p.ID, current.Status, model.PaymentCompleted, map[string]interface{}{
				"transaction_id": transferID,
			}); err != nil {
				return err
			}
			transitioned("payment", current.Status, model.PaymentCompleted)
		}

		earning, err := tx.FindEarningByJob(ctx, job.ID)
		if err != nil {
			return err
		}
		if earning != nil && earning.Status != model.EarningPaid {
			if err := tx.TransitionEarning(ctx, earning.ID, earning.Status, model.EarningPaid, map[string]interface{}{
				"transaction_id": transferID,
				"paid_at":        now,
			}); err != nil {
				return err
			}
			transitioned("earning", earning.Status, model.EarningPaid)
		}

		latest, err := tx.GetJob(ctx, job.ID)
		if err != nil {
			return err
		}
		if latest.Status == model.JobPaymentFailed {
			if err := tx.TransitionJob(ctx, job.ID, model.JobPaymentFailed, model.JobCompleted, nil); err != nil {
				return err
			}
			transitioned("job", model.JobPaymentFailed, model.JobCompleted)
		}
		return nil
	})
}

// recordFailedRelease leaves a recoverable trail of a failed transfer and
// tells both parties. Its own errors are logged; the caller returns the
// transfer error.
func (s *Service) recordFailedRelease(ctx context.Context, job *model.Job, p *model.Payment, earning *model.Earning, cause error) {
	reason := "the payment provider could not complete the transfer"
	if appErr, ok := apperror.As(cause); ok {
		reason = appErr.Message
	}

	// An unreachable gateway may still have executed the transfer.
	outcomeUnknown := apperror.Is(cause, apperror.CodeGatewayUnavailable)

	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		if !outcomeUnknown {
			if err := tx.TransitionPayment(ctx, p.ID, model.PaymentPending, model.PaymentFailed, map[string]interface{}{
				"failure_reason": reason,
			}); err != nil {
				return err
			}
		}
		if earning != nil && earning.Status.CanTransitionTo(model.EarningFailed) {
			if err := tx.TransitionEarning(ctx, earning.ID, earning.Status, model.EarningFailed, nil); err != nil {
				return err
			}
		}
		if job.Status == model.JobCompleted {
			return tx.TransitionJob(ctx, job.ID, model.JobCompleted, model.JobPaymentFailed, nil)
		}
		return nil
	})
	if err != nil {
		s.log.Error("failed to record failed fund release", map[string]interface{}{
			"job_id":     job.ID,
			"payment_id": p.ID,
			"error":      err.Error(),
		})
	} else if !outcomeUnknown {
		transitioned("payment", model.PaymentPending, model.PaymentFailed)
	}

	s.notify(ctx, payment.PayoutNotices(model.PaymentFailed, job, p, reason)...)
	s.publish(ctx, events.New(events.FundsReleaseFailed, job.ID, job.PosterID, map[string]interface{}{
		"payment_id": p.ID,
		"reason":     reason,
	}))
}
