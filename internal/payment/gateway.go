// Package payment talks to the payment gateway and keeps payments,
// earnings and payout accounts in step with it.
package payment

import (
	"context"
)

// IntentSucceeded is the gateway status of a captured charge.
const IntentSucceeded = "succeeded"

type CustomerRequest struct {
	Email  string
	Name   string
	UserID uint
}

type IntentRequest struct {
	AmountCents    int64
	Currency       string
	CustomerID     string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

// Intent is the gateway side of a charge.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountCents  int64
}

type AccountRequest struct {
	Email          string
	UserID         uint
	IdempotencyKey string
}

type TransferRequest struct {
	AmountCents    int64
	Currency       string
	Destination    string
	TransferGroup  string
	IdempotencyKey string
	Metadata       map[string]string
}

type Transfer struct {
	ID          string
	AmountCents int64
}

// Event is a verified webhook event. Object holds the raw JSON of the
// affected gateway object.
type Event struct {
	ID      string
	Type    string
	Account string
	Object  []byte
}

// Gateway is the vendor-facing payment provider.
type Gateway interface {
	CreateCustomer(ctx context.Context, req CustomerRequest) (string, error)
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	GetPaymentIntent(ctx context.Context, id string) (*Intent, error)
	CreateConnectedAccount(ctx context.Context, req AccountRequest) (string, error)
	CreateOnboardingLink(ctx context.Context, accountID string) (string, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)
	ConstructEvent(payload []byte, signature string) (*Event, error)
	Ping(ctx context.Context) error
}
