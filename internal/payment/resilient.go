package payment

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/metrics"
)

// ResilientGateway bounds every gateway call with a timeout and a circuit
// breaker. Timeouts and an open breaker surface as GatewayUnavailable.
type ResilientGateway struct {
	next    Gateway
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
	log     logger.Logger
}

// NewResilientGateway wraps next. breakerTimeout is how long the breaker
// stays open before letting a probe request through.
func NewResilientGateway(next Gateway, timeout, breakerTimeout time.Duration, log logger.Logger) *ResilientGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}
	r := &ResilientGateway{next: next, timeout: timeout, log: log}
	r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// only transient failures count against the gateway
		IsSuccessful: func(err error) bool {
			return err == nil || !apperror.Is(err, apperror.CodeGatewayUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("payment gateway breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
	return r
}

// State exposes the breaker state for health reporting.
func (r *ResilientGateway) State() gobreaker.State {
	return r.cb.State()
}

func guard[T any](r *ResilientGateway, ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.cb.Execute(func() (interface{}, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, normalize(op, err)
		}
		return v, nil
	})
	metrics.GatewayDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = apperror.GatewayUnavailable(err, op)
		}
		metrics.GatewayRequests.WithLabelValues(op, outcome(err)).Inc()
		var zero T
		return zero, err
	}
	metrics.GatewayRequests.WithLabelValues(op, "ok").Inc()
	v, _ := res.(T)
	return v, nil
}

// normalize makes sure a failure carries a gateway error code.
func normalize(op string, err error) error {
	if _, ok := apperror.As(err); ok {
		return err
	}
	return apperror.GatewayUnavailable(err, op)
}

func outcome(err error) string {
	if appErr, ok := apperror.As(err); ok {
		switch appErr.Code {
		case apperror.CodeGatewayUnavailable:
			return "unavailable"
		case apperror.CodeGatewayRejected:
			return "rejected"
		}
	}
	return "error"
}

func (r *ResilientGateway) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	return guard(r, ctx, "create_customer", func(ctx context.Context) (string, error) {
		return r.next.CreateCustomer(ctx, req)
	})
}

func (r *ResilientGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	return guard(r, ctx, "create_payment_intent", func(ctx context.Context) (*Intent, error) {
		return r.next.CreatePaymentIntent(ctx, req)
	})
}

func (r *ResilientGateway) GetPaymentIntent(ctx context.Context, id string) (*Intent, error) {
	return guard(r, ctx, "get_payment_intent", func(ctx context.Context) (*Intent, error) {
		return r.next.GetPaymentIntent(ctx, id)
	})
}

func (r *ResilientGateway) CreateConnectedAccount(ctx context.Context, req AccountRequest) (string, error) {
	return guard(r, ctx, "create_connected_account", func(ctx context.Context) (string, error) {
		return r.next.CreateConnectedAccount(ctx, req)
	})
}

func (r *ResilientGateway) CreateOnboardingLink(ctx context.Context, accountID string) (string, error) {
	return guard(r, ctx, "create_onboarding_link", func(ctx context.Context) (string, error) {
		return r.next.CreateOnboardingLink(ctx, accountID)
	})
}

func (r *ResilientGateway) CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	return guard(r, ctx, "create_transfer", func(ctx context.Context) (*Transfer, error) {
		return r.next.CreateTransfer(ctx, req)
	})
}

// ConstructEvent is local signature verification and bypasses the breaker.
func (r *ResilientGateway) ConstructEvent(payload []byte, signature string) (*Event, error) {
	return r.next.ConstructEvent(payload, signature)
}

// Ping bypasses the breaker so health probes see the gateway as it is.
func (r *ResilientGateway) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.Ping(ctx)
}
