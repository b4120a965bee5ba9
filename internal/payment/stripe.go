package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/config"
)

// StripeOptions configures a StripeGateway.
type StripeOptions struct {
	SecretKey         string
	WebhookSecret     string
	ReturnURL         string
	RefreshURL        string
	HTTPClient        *http.Client
	BaseURL           string // empty means the public stripe API
	MaxNetworkRetries int64
}

// StripeGateway implements Gateway on the Stripe API with Connect express accounts.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	returnURL     string
	refreshURL    string
}

// NewStripeGateway builds the gateway from payment configuration.
func NewStripeGateway(cfg config.PaymentConfig) *StripeGateway {
	return NewStripeGatewayWithOptions(StripeOptions{
		SecretKey:         cfg.StripeSecretKey,
		WebhookSecret:     cfg.WebhookSecret,
		ReturnURL:         cfg.OnboardingReturnURL,
		RefreshURL:        cfg.OnboardingRefreshURL,
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: 1,
	})
}

func NewStripeGatewayWithOptions(opts StripeOptions) *StripeGateway {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	backendConfig := func() *stripe.BackendConfig {
		bc := &stripe.BackendConfig{
			HTTPClient:        httpClient,
			MaxNetworkRetries: stripe.Int64(opts.MaxNetworkRetries),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
		}
		if opts.BaseURL != "" {
			bc.URL = stripe.String(opts.BaseURL)
		}
		return bc
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig()),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig()),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig()),
	}
	return &StripeGateway{
		api:           client.New(opts.SecretKey, backends),
		webhookSecret: opts.WebhookSecret,
		returnURL:     opts.ReturnURL,
		refreshURL:    opts.RefreshURL,
	}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(req.Email),
		Name:  stripe.String(req.Name),
	}
	params.Context = ctx
	params.AddMetadata("user_id", strconv.FormatUint(uint64(req.UserID), 10))

	c, err := g.api.Customers.New(params)
	if err != nil {
		return "", translate("create_customer", err)
	}
	return c.ID, nil
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, translate("create_payment_intent", err)
	}
	return intentFrom(pi), nil
}

func (g *StripeGateway) GetPaymentIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, translate("get_payment_intent", err)
	}
	return intentFrom(pi), nil
}

func (g *StripeGateway) CreateConnectedAccount(ctx context.Context, req AccountRequest) (string, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(req.Email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers: &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.AddMetadata("user_id", strconv.FormatUint(uint64(req.UserID), 10))

	acct, err := g.api.Accounts.New(params)
	if err != nil {
		return "", translate("create_connected_account", err)
	}
	return acct.ID, nil
}

func (g *StripeGateway) CreateOnboardingLink(ctx context.Context, accountID string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(g.refreshURL),
		ReturnURL:  stripe.String(g.returnURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	}
	params.Context = ctx

	link, err := g.api.AccountLinks.New(params)
	if err != nil {
		return "", translate("create_onboarding_link", err)
	}
	return link.URL, nil
}

func (g *StripeGateway) CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(req.Currency),
		Destination: stripe.String(req.Destination),
	}
	if req.TransferGroup != "" {
		params.TransferGroup = stripe.String(req.TransferGroup)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	tr, err := g.api.Transfers.New(params)
	if err != nil {
		return nil, translate("create_transfer", err)
	}
	return &Transfer{ID: tr.ID, AmountCents: tr.Amount}, nil
}

// ConstructEvent verifies the Stripe-Signature header. Without a configured
// secret every event is rejected.
func (g *StripeGateway) ConstructEvent(payload []byte, signature string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, errors.New("webhook secret is not configured")
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, err
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type), Account: ev.Account}
	if ev.Data != nil {
		out.Object = ev.Data.Raw
	}
	return out, nil
}

func (g *StripeGateway) Ping(ctx context.Context) error {
	params := &stripe.BalanceParams{}
	params.Context = ctx
	if _, err := g.api.Balance.Get(params); err != nil {
		return translate("ping", err)
	}
	return nil
}

func intentFrom(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
	}
}

// translate maps a Stripe client error onto the gateway error taxonomy.
// Timeouts, transport failures, rate limiting and 5xx are retryable; anything
// else the API answered is a rejection.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperror.GatewayUnavailable(err, op)
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
			stripeErr.HTTPStatusCode == http.StatusTooManyRequests ||
			stripeErr.HTTPStatusCode == 0 {
			return apperror.GatewayUnavailable(err, op)
		}
		reason := stripeErr.Msg
		if reason == "" {
			reason = fmt.Sprintf("status %d", stripeErr.HTTPStatusCode)
		}
		return apperror.GatewayRejected(err, op, reason)
	}
	// transport failure, the request may not have reached the API
	return apperror.GatewayUnavailable(err, op)
}
