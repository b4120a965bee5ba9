package payment

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/metrics"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/notification"
	"Fixer-backend/internal/repository"
)

// WebhookResult reports what happened to one delivery.
type WebhookResult struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
}

type webhookHandler func(s *Service, ctx context.Context, ev *Event) error

var webhookHandlers = map[string]webhookHandler{
	"account.updated":               (*Service).onAccountUpdated,
	"transfer.created":              (*Service).onTransfer,
	"transfer.paid":                 (*Service).onTransfer,
	"transfer.failed":               (*Service).onTransfer,
	"transfer.reversed":             (*Service).onTransfer,
	"payment_intent.succeeded":      (*Service).onIntentSucceeded,
	"payment_intent.payment_failed": (*Service).onIntentFailed,
}

// HandleWebhook verifies and applies one gateway event. Each event id is
// applied at most once; a failed application releases the claim so the
// gateway's redelivery can try again.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	ev, err := s.gateway.ConstructEvent(payload, signature)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		return nil, apperror.InvalidSignature(err)
	}
	result := &WebhookResult{EventID: ev.ID, Type: ev.Type}

	handler, ok := webhookHandlers[ev.Type]
	if !ok {
		metrics.WebhookEvents.WithLabelValues(ev.Type, "ignored").Inc()
		result.Ignored = true
		return result, nil
	}

	claimed, err := s.store.ClaimWebhookEvent(ctx, ev.ID, ev.Type)
	if err != nil {
		return nil, err
	}
	if !claimed {
		metrics.WebhookEvents.WithLabelValues(ev.Type, "duplicate").Inc()
		result.Duplicate = true
		return result, nil
	}

	if err := handler(s, ctx, ev); err != nil {
		metrics.WebhookEvents.WithLabelValues(ev.Type, "error").Inc()
		if relErr := s.store.ReleaseWebhookEvent(ctx, ev.ID); relErr != nil {
			s.log.Error("failed to release webhook event", map[string]interface{}{
				"event_id": ev.ID,
				"error":    relErr.Error(),
			})
		}
		return nil, err
	}
	metrics.WebhookEvents.WithLabelValues(ev.Type, "applied").Inc()
	return result, nil
}

// accountStatus derives the payout account state from an account object.
func accountStatus(object []byte) string {
	charges := gjson.GetBytes(object, "charges_enabled").Bool()
	payouts := gjson.GetBytes(object, "payouts_enabled").Bool()
	switch {
	case charges && payouts:
		return model.ConnectAccountActive
	case gjson.GetBytes(object, "details_submitted").Bool():
		return model.ConnectAccountRestricted
	default:
		return model.ConnectAccountPending
	}
}

func reduceAccount(object []byte, user *model.User) (string, []notification.Input, bool) {
	status := accountStatus(object)
	if status == user.ConnectAccountStatus {
		return status, nil, false
	}

	var message string
	switch status {
	case model.ConnectAccountActive:
		message = "Your payout account is active. You can now receive payments."
	case model.ConnectAccountRestricted:
		message = "Your payout account needs more information before it can receive payments."
	default:
		message = "Your payout account setup is not finished yet."
	}
	return status, []notification.Input{{
		UserID:     user.ID,
		Type:       model.NotificationAccountStatusUpdated,
		Title:      "Payout account updated",
		Message:    message,
		SourceType: model.SourceAccount,
		Metadata:   map[string]interface{}{"status": status},
	}}, true
}

func (s *Service) onAccountUpdated(ctx context.Context, ev *Event) error {
	accountID := gjson.GetBytes(ev.Object, "id").String()
	if accountID == "" {
		accountID = ev.Account
	}
	user, err := s.store.FindUserByConnectAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if user == nil {
		s.log.Warn("account event for unknown payout account", map[string]interface{}{"account_id": accountID})
		return nil
	}

	status, notices, changed := reduceAccount(ev.Object, user)
	if !changed {
		return nil
	}
	if err := s.store.UpdateUser(ctx, user.ID, map[string]interface{}{"connect_account_status": status}); err != nil {
		return err
	}
	for _, in := range notices {
		s.notify(ctx, in)
	}
	return nil
}

var transferTargets = map[string]struct {
	payment model.PaymentStatus
	earning model.EarningStatus
}{
	"transfer.created":  {model.PaymentCompleted, model.EarningPaid},
	"transfer.paid":     {model.PaymentCompleted, model.EarningPaid},
	"transfer.failed":   {model.PaymentFailed, model.EarningFailed},
	"transfer.reversed": {model.PaymentReversed, model.EarningReversed},
}

// transferChange is what a transfer event does to local records.
type transferChange struct {
	payment model.PaymentStatus
	earning *model.EarningStatus
	job     *model.JobStatus
	notices []notification.Input
}

// reduceTransfer decides the effect of a transfer event. It reports false
// when the payment is already in, or cannot move to, the target state.
func reduceTransfer(eventType string, p *model.Payment, e *model.Earning, job *model.Job) (transferChange, bool) {
	target, ok := transferTargets[eventType]
	if !ok || p.Status == target.payment || !p.Status.CanTransitionTo(target.payment) {
		return transferChange{}, false
	}

	change := transferChange{payment: target.payment}
	if e != nil && e.Status != target.earning && e.Status.CanTransitionTo(target.earning) {
		next := target.earning
		change.earning = &next
	}
	if job != nil {
		switch {
		case target.payment == model.PaymentFailed && job.Status == model.JobCompleted:
			next := model.JobPaymentFailed
			change.job = &next
		case target.payment == model.PaymentCompleted && job.Status == model.JobPaymentFailed:
			next := model.JobCompleted
			change.job = &next
		}
		change.notices = PayoutNotices(target.payment, job, p, "the transfer was not completed by the payment provider")
	}
	return change, true
}

func (s *Service) onTransfer(ctx context.Context, ev *Event) error {
	transferID := gjson.GetBytes(ev.Object, "id").String()
	p, err := s.store.FindPaymentByTransaction(ctx, transferID)
	if err != nil {
		return err
	}
	if p == nil {
		if paymentID := gjson.GetBytes(ev.Object, "metadata.payment_id").Uint(); paymentID != 0 {
			p, err = s.store.GetPayment(ctx, uint(paymentID))
			if err != nil && !apperror.Is(err, apperror.CodeNotFound) {
				return err
			}
		}
	}
	if p == nil || p.Kind != model.PaymentKindTransfer {
		s.log.Warn("transfer event for unknown payment", map[string]interface{}{"transfer_id": transferID})
		return nil
	}

	job, err := s.store.GetJob(ctx, p.JobID)
	if err != nil {
		return err
	}
	earning, err := s.store.FindEarningByJob(ctx, p.JobID)
	if err != nil {
		return err
	}

	change, ok := reduceTransfer(ev.Type, p, earning, job)
	if !ok {
		return nil
	}

	now := s.now()
	err = s.store.WithTx(ctx, func(tx *repository.Store) error {
		extra := map[string]interface{}{"transaction_id": transferID}
		if change.payment == model.PaymentFailed {
			extra["failure_reason"] = "transfer failed at the payment provider"
		}
		if err := tx.TransitionPayment(ctx, p.ID, p.Status, change.payment, extra); err != nil {
			return err
		}
		if change.earning != nil {
			earningExtra := map[string]interface{}{"transaction_id": transferID}
			if *change.earning == model.EarningPaid {
				earningExtra["paid_at"] = now
			}
			if err := tx.TransitionEarning(ctx, earning.ID, earning.Status, *change.earning, earningExtra); err != nil {
				return err
			}
		}
		if change.job != nil {
			return tx.TransitionJob(ctx, job.ID, job.Status, *change.job, nil)
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.StatusTransitions.WithLabelValues("payment", string(p.Status), string(change.payment)).Inc()
	for _, in := range change.notices {
		s.notify(ctx, in)
	}
	return nil
}

func (s *Service) onIntentSucceeded(ctx context.Context, ev *Event) error {
	intentID := gjson.GetBytes(ev.Object, "id").String()
	p, err := s.store.GetPaymentByIntent(ctx, intentID)
	if apperror.Is(err, apperror.CodeNotFound) {
		s.log.Warn("intent event for unknown payment", map[string]interface{}{"payment_intent_id": intentID})
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.completeCharge(ctx, p, intentID)
	return err
}

func (s *Service) onIntentFailed(ctx context.Context, ev *Event) error {
	intentID := gjson.GetBytes(ev.Object, "id").String()
	p, err := s.store.GetPaymentByIntent(ctx, intentID)
	if apperror.Is(err, apperror.CodeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.Status != model.PaymentPending {
		return nil
	}

	reason := gjson.GetBytes(ev.Object, "last_payment_error.message").String()
	if reason == "" {
		reason = "payment failed"
	}
	if err := s.store.TransitionPayment(ctx, p.ID, p.Status, model.PaymentFailed, map[string]interface{}{
		"failure_reason": reason,
	}); err != nil {
		return err
	}

	s.notify(ctx, notification.Input{
		UserID:     p.PayerID,
		Type:       model.NotificationPaymentFailed,
		Title:      "Payment failed",
		Message:    fmt.Sprintf("Your payment of %s could not be processed: %s", notification.Money(p.Amount), reason),
		SourceID:   &p.ID,
		SourceType: model.SourcePayment,
		Metadata:   map[string]interface{}{"job_id": p.JobID},
	})
	return nil
}

// PayoutNotices builds the notifications of a payout reaching status.
// Completed and failed payouts notify worker and poster, reversals only the worker.
func PayoutNotices(status model.PaymentStatus, job *model.Job, p *model.Payment, reason string) []notification.Input {
	net := FromCents(ToCents(p.Amount) - ToCents(p.ServiceFee))
	meta := map[string]interface{}{"job_id": job.ID, "payment_id": p.ID, "amount": net}

	var workerID uint
	if p.WorkerID != nil {
		workerID = *p.WorkerID
	} else if job.WorkerID != nil {
		workerID = *job.WorkerID
	}

	var out []notification.Input
	add := func(userID uint, t model.NotificationType, title, message string) {
		if userID == 0 {
			return
		}
		out = append(out, notification.Input{
			UserID:     userID,
			Type:       t,
			Title:      title,
			Message:    message,
			SourceID:   &p.ID,
			SourceType: model.SourcePayment,
			Metadata:   meta,
		})
	}

	switch status {
	case model.PaymentCompleted:
		add(workerID, model.NotificationPaymentSent, "Payment sent",
			fmt.Sprintf("You have been paid %s for %q.", notification.Money(net), job.Title))
		add(job.PosterID, model.NotificationPaymentReleased, "Payment released",
			fmt.Sprintf("Payment of %s for %q has been released to the worker.", notification.Money(net), job.Title))
	case model.PaymentFailed:
		add(workerID, model.NotificationPaymentFailed, "Payment failed",
			fmt.Sprintf("Your payment for %q could not be sent: %s. The poster can retry the release.", job.Title, reason))
		add(job.PosterID, model.NotificationPaymentFailed, "Payment failed",
			fmt.Sprintf("Releasing payment for %q failed: %s. Please try again.", job.Title, reason))
	case model.PaymentReversed:
		add(workerID, model.NotificationPaymentReversed, "Payment reversed",
			fmt.Sprintf("The payment of %s for %q was reversed.", notification.Money(net), job.Title))
	}
	return out
}
