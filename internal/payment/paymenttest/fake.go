// Package paymenttest provides an in-memory payment gateway for tests.
package paymenttest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"Fixer-backend/internal/payment"
)

// ValidSignature is the only signature the fake accepts.
const ValidSignature = "valid"

// Gateway is a deterministic payment.Gateway. IDs are sequential per kind
// (pi_1, acct_1, tr_1, cus_1) and idempotency keys replay the first result.
type Gateway struct {
	mu        sync.Mutex
	seq       map[string]int
	intents   map[string]*payment.Intent
	keyed     map[string]interface{}
	failures  map[string]error
	lost      map[string]error
	calls     map[string]int
	transfers []payment.TransferRequest

	// Delay is applied to every call and honors context cancellation.
	Delay time.Duration
	// DefaultIntentStatus is the status new intents start in.
	DefaultIntentStatus string
	PingErr             error
}

func New() *Gateway {
	return &Gateway{
		seq:                 map[string]int{},
		intents:             map[string]*payment.Intent{},
		keyed:               map[string]interface{}{},
		failures:            map[string]error{},
		lost:                map[string]error{},
		calls:               map[string]int{},
		DefaultIntentStatus: "requires_payment_method",
	}
}

// Fail makes every call of op return err until Clear is called.
func (g *Gateway) Fail(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = err
}

// LoseResponse makes the next call of op take effect and then return err,
// like a timeout after the provider already acted.
func (g *Gateway) LoseResponse(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lost[op] = err
}

func (g *Gateway) Clear(op string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.failures, op)
}

// SetIntentStatus simulates the customer completing or failing a charge.
func (g *Gateway) SetIntentStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if pi, ok := g.intents[id]; ok {
		pi.Status = status
	}
}

// Calls returns how many times op was invoked.
func (g *Gateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// Transfers returns the transfer requests that succeeded.
func (g *Gateway) Transfers() []payment.TransferRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payment.TransferRequest(nil), g.transfers...)
}

func (g *Gateway) enter(ctx context.Context, op string) error {
	g.mu.Lock()
	g.calls[op]++
	err := g.failures[op]
	delay := g.Delay
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (g *Gateway) next(prefix string) string {
	g.seq[prefix]++
	return fmt.Sprintf("%s_%d", prefix, g.seq[prefix])
}

func (g *Gateway) CreateCustomer(ctx context.Context, req payment.CustomerRequest) (string, error) {
	if err := g.enter(ctx, "create_customer"); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next("cus"), nil
}

func (g *Gateway) CreatePaymentIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	if err := g.enter(ctx, "create_payment_intent"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.keyed[req.IdempotencyKey].(*payment.Intent); ok && req.IdempotencyKey != "" {
		cp := *prev
		return &cp, nil
	}
	id := g.next("pi")
	pi := &payment.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       g.DefaultIntentStatus,
		AmountCents:  req.AmountCents,
	}
	g.intents[id] = pi
	if req.IdempotencyKey != "" {
		g.keyed[req.IdempotencyKey] = pi
	}
	cp := *pi
	return &cp, nil
}

func (g *Gateway) GetPaymentIntent(ctx context.Context, id string) (*payment.Intent, error) {
	if err := g.enter(ctx, "get_payment_intent"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	pi, ok := g.intents[id]
	if !ok {
		return nil, fmt.Errorf("no such payment intent: %s", id)
	}
	cp := *pi
	return &cp, nil
}

func (g *Gateway) CreateConnectedAccount(ctx context.Context, req payment.AccountRequest) (string, error) {
	if err := g.enter(ctx, "create_connected_account"); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.keyed[req.IdempotencyKey].(string); ok && req.IdempotencyKey != "" {
		return prev, nil
	}
	id := g.next("acct")
	if req.IdempotencyKey != "" {
		g.keyed[req.IdempotencyKey] = id
	}
	return id, nil
}

func (g *Gateway) CreateOnboardingLink(ctx context.Context, accountID string) (string, error) {
	if err := g.enter(ctx, "create_onboarding_link"); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("https://connect.example.test/setup/%s/%d", accountID, g.calls["create_onboarding_link"]), nil
}

func (g *Gateway) CreateTransfer(ctx context.Context, req payment.TransferRequest) (*payment.Transfer, error) {
	if err := g.enter(ctx, "create_transfer"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.keyed[req.IdempotencyKey].(*payment.Transfer); ok && req.IdempotencyKey != "" {
		cp := *prev
		return &cp, nil
	}
	tr := &payment.Transfer{ID: g.next("tr"), AmountCents: req.AmountCents}
	if req.IdempotencyKey != "" {
		g.keyed[req.IdempotencyKey] = tr
	}
	g.transfers = append(g.transfers, req)
	if err, ok := g.lost["create_transfer"]; ok {
		delete(g.lost, "create_transfer")
		return nil, err
	}
	cp := *tr
	return &cp, nil
}

// ConstructEvent accepts payloads shaped like gateway events when the
// signature equals ValidSignature.
func (g *Gateway) ConstructEvent(payload []byte, signature string) (*payment.Event, error) {
	if signature != ValidSignature {
		return nil, errors.New("signature mismatch")
	}
	if !gjson.ValidBytes(payload) {
		return nil, errors.New("payload is not valid JSON")
	}
	parsed := gjson.ParseBytes(payload)
	return &payment.Event{
		ID:      parsed.Get("id").String(),
		Type:    parsed.Get("type").String(),
		Account: parsed.Get("account").String(),
		Object:  []byte(parsed.Get("data.object").Raw),
	}, nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.enter(ctx, "ping"); err != nil {
		return err
	}
	return g.PingErr
}

// EventPayload builds a webhook body for ConstructEvent.
func EventPayload(id, eventType string, object map[string]interface{}) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"id":   id,
		"type": eventType,
		"data": map[string]interface{}{"object": object},
	})
	return body
}

var _ payment.Gateway = (*Gateway)(nil)
