package payment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/database"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/notification"
	"Fixer-backend/internal/repository"
)

// Notifier receives user facing notifications produced by payment flows.
type Notifier interface {
	Notify(ctx context.Context, in notification.Input) (*model.Notification, error)
}

// Service glues gateway calls to the payment, earning and user records.
type Service struct {
	store    *repository.Store
	gateway  Gateway
	fees     FeePolicy
	currency string
	notifier Notifier
	log      logger.Logger
	now      func() time.Time
}

func NewService(store *repository.Store, gateway Gateway, fees FeePolicy, currency string, notifier Notifier, log logger.Logger) *Service {
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		store:    store,
		gateway:  gateway,
		fees:     fees,
		currency: currency,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) Fees() FeePolicy { return s.fees }

func (s *Service) Gateway() Gateway { return s.gateway }

// IntentResult is returned to the client so it can complete the charge.
type IntentResult struct {
	Payment      *model.Payment `json:"payment"`
	ClientSecret string         `json:"client_secret"`
}

// CreatePaymentIntent opens a charge for the poster of jobID. A pending
// charge of the same payer is reused. amount overrides the job total when positive.
func (s *Service) CreatePaymentIntent(ctx context.Context, caller model.CallerIdentity, jobID uint, amount float64) (*IntentResult, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PosterID != caller.UserID {
		return nil, apperror.Authorization("only the job poster can pay for job %d", jobID)
	}
	if job.Status == model.JobCanceled {
		return nil, apperror.Conflict("job %d is canceled", jobID)
	}

	existing, err := s.store.FindPendingCharge(ctx, job.ID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.PaymentIntentID != nil {
		intent, err := s.gateway.GetPaymentIntent(ctx, *existing.PaymentIntentID)
		if err != nil {
			return nil, err
		}
		return &IntentResult{Payment: existing, ClientSecret: intent.ClientSecret}, nil
	}

	if amount <= 0 {
		amount = job.TotalAmount
	}
	if ToCents(amount) <= 0 {
		return nil, apperror.Validation("payment amount must be positive")
	}

	payer, err := s.store.GetUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, payer)
	if err != nil {
		return nil, err
	}

	attempts, err := s.countCharges(ctx, job.ID, payer.ID)
	if err != nil {
		return nil, err
	}
	intent, err := s.gateway.CreatePaymentIntent(ctx, IntentRequest{
		AmountCents:    ToCents(amount),
		Currency:       s.currency,
		CustomerID:     customerID,
		Description:    fmt.Sprintf("Payment for job: %s", job.Title),
		IdempotencyKey: fmt.Sprintf("charge-job-%d-payer-%d-%d", job.ID, payer.ID, attempts),
		Metadata: map[string]string{
			"job_id":   strconv.FormatUint(uint64(job.ID), 10),
			"payer_id": strconv.FormatUint(uint64(payer.ID), 10),
		},
	})
	if err != nil {
		return nil, err
	}

	p := &model.Payment{
		Kind:            model.PaymentKindCharge,
		JobID:           job.ID,
		PayerID:         payer.ID,
		WorkerID:        job.WorkerID,
		Amount:          amount,
		ServiceFee:      job.ServiceFee,
		Status:          model.PaymentPending,
		PaymentIntentID: &intent.ID,
		Description:     fmt.Sprintf("Payment for job: %s", job.Title),
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		if !database.IsUniqueViolation(err) {
			return nil, err
		}
		// a concurrent request replayed the same idempotency key
		p, err = s.store.GetPaymentByIntent(ctx, intent.ID)
		if err != nil {
			return nil, err
		}
	}
	return &IntentResult{Payment: p, ClientSecret: intent.ClientSecret}, nil
}

func (s *Service) ensureCustomer(ctx context.Context, payer *model.User) (string, error) {
	if payer.StripeCustomerID != nil && *payer.StripeCustomerID != "" {
		return *payer.StripeCustomerID, nil
	}
	req := CustomerRequest{Name: payer.FullName, UserID: payer.ID}
	if payer.Email != nil {
		req.Email = *payer.Email
	}
	id, err := s.gateway.CreateCustomer(ctx, req)
	if err != nil {
		return "", err
	}
	if err := s.store.UpdateUser(ctx, payer.ID, map[string]interface{}{"stripe_customer_id": id}); err != nil {
		return "", err
	}
	payer.StripeCustomerID = &id
	return id, nil
}

func (s *Service) countCharges(ctx context.Context, jobID, payerID uint) (int, error) {
	payments, err := s.store.ListPaymentsForJob(ctx, jobID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range payments {
		if p.Kind == model.PaymentKindCharge && p.PayerID == payerID {
			n++
		}
	}
	return n, nil
}

// ConfirmPayment checks the charge with the gateway and records it as
// completed once the gateway reports success.
func (s *Service) ConfirmPayment(ctx context.Context, caller model.CallerIdentity, intentID string) (*model.Payment, error) {
	p, err := s.store.GetPaymentByIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if p.PayerID != caller.UserID && !caller.IsAdmin() {
		return nil, apperror.Authorization("payment belongs to another user")
	}

	intent, err := s.gateway.GetPaymentIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != IntentSucceeded {
		return nil, apperror.PaymentNotSucceeded(intent.Status)
	}
	return s.completeCharge(ctx, p, intent.ID)
}

// completeCharge is shared by ConfirmPayment and the payment_intent.succeeded
// webhook; whichever runs second finds the charge completed and does nothing.
func (s *Service) completeCharge(ctx context.Context, p *model.Payment, intentID string) (*model.Payment, error) {
	if p.Status == model.PaymentCompleted {
		return p, nil
	}

	err := s.store.TransitionPayment(ctx, p.ID, p.Status, model.PaymentCompleted, map[string]interface{}{
		"transaction_id": intentID,
	})
	if err != nil {
		if apperror.Is(err, apperror.CodeInvalidTransition) {
			current, getErr := s.store.GetPayment(ctx, p.ID)
			if getErr == nil && current.Status == model.PaymentCompleted {
				return current, nil
			}
		}
		return nil, err
	}

	job, err := s.store.GetJob(ctx, p.JobID)
	if err != nil {
		return nil, err
	}
	if job.WorkerID != nil {
		if _, _, err := s.EnsureEarning(ctx, job); err != nil {
			return nil, err
		}
	}

	s.notify(ctx, notification.Input{
		UserID:     p.PayerID,
		Type:       model.NotificationPaymentReceived,
		Title:      "Payment received",
		Message:    fmt.Sprintf("Your payment of %s for %q was received.", notification.Money(p.Amount), job.Title),
		SourceID:   &p.ID,
		SourceType: model.SourcePayment,
		Metadata:   map[string]interface{}{"job_id": job.ID, "amount": p.Amount},
	})
	return s.store.GetPayment(ctx, p.ID)
}

// EnsureEarning creates the pending earning of the job's worker once.
func (s *Service) EnsureEarning(ctx context.Context, job *model.Job) (*model.Earning, bool, error) {
	if job.WorkerID == nil {
		return nil, false, apperror.Validation("job %d has no assigned worker", job.ID)
	}
	return s.store.EnsureEarning(ctx, s.fees.EarningFor(job))
}

// AccountResult carries the payout account and where to finish onboarding.
type AccountResult struct {
	AccountID     string `json:"account_id"`
	OnboardingURL string `json:"onboarding_url"`
	Status        string `json:"status"`
}

// CreateConnectedAccount starts payout onboarding for a worker. A pending
// account gets a fresh link instead of a second account.
func (s *Service) CreateConnectedAccount(ctx context.Context, caller model.CallerIdentity) (*AccountResult, error) {
	user, err := s.store.GetUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if user.Email == nil || *user.Email == "" {
		return nil, apperror.MissingEmail()
	}

	if user.HasPayoutAccount() {
		if user.ConnectAccountStatus != "" && user.ConnectAccountStatus != model.ConnectAccountPending {
			return nil, apperror.Conflict("payout account already set up (status %s)", user.ConnectAccountStatus)
		}
		link, err := s.gateway.CreateOnboardingLink(ctx, *user.StripeConnectAccountID)
		if err != nil {
			return nil, err
		}
		return &AccountResult{AccountID: *user.StripeConnectAccountID, OnboardingURL: link, Status: model.ConnectAccountPending}, nil
	}

	accountID, err := s.gateway.CreateConnectedAccount(ctx, AccountRequest{
		Email:          *user.Email,
		UserID:         user.ID,
		IdempotencyKey: fmt.Sprintf("account-user-%d", user.ID),
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateUser(ctx, user.ID, map[string]interface{}{
		"stripe_connect_account_id": accountID,
		"connect_account_status":    model.ConnectAccountPending,
	}); err != nil {
		return nil, err
	}

	link, err := s.gateway.CreateOnboardingLink(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &AccountResult{AccountID: accountID, OnboardingURL: link, Status: model.ConnectAccountPending}, nil
}

// TransferResult is the outcome of a successful payout.
type TransferResult struct {
	TransferID string
	Split      Split
}

// Transfer pays the worker's net share of job to their payout account.
// paymentID keys the gateway idempotency so a retried release never pays twice.
func (s *Service) Transfer(ctx context.Context, job *model.Job, worker *model.User, paymentID uint) (*TransferResult, error) {
	if !worker.HasPayoutAccount() {
		return nil, apperror.NoPayoutAccount(worker.ID)
	}
	split := s.fees.Split(job.PaymentAmount)
	if split.NetCents <= 0 {
		return nil, apperror.Validation("nothing to transfer after fees for job %d", job.ID)
	}

	tr, err := s.gateway.CreateTransfer(ctx, TransferRequest{
		AmountCents:    split.NetCents,
		Currency:       s.currency,
		Destination:    *worker.StripeConnectAccountID,
		TransferGroup:  fmt.Sprintf("job-%d", job.ID),
		IdempotencyKey: fmt.Sprintf("transfer-payment-%d", paymentID),
		Metadata: map[string]string{
			"job_id":     strconv.FormatUint(uint64(job.ID), 10),
			"worker_id":  strconv.FormatUint(uint64(worker.ID), 10),
			"payment_id": strconv.FormatUint(uint64(paymentID), 10),
		},
	})
	if err != nil {
		return nil, err
	}
	return &TransferResult{TransferID: tr.ID, Split: split}, nil
}

// ListEarnings returns the caller's earnings, newest first.
func (s *Service) ListEarnings(ctx context.Context, caller model.CallerIdentity) ([]model.Earning, error) {
	return s.store.ListEarningsForWorker(ctx, caller.UserID)
}

func (s *Service) notify(ctx context.Context, in notification.Input) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, in); err != nil {
		s.log.Warn("failed to create notification", map[string]interface{}{
			"user_id": in.UserID,
			"type":    string(in.Type),
			"error":   err.Error(),
		})
	}
}
