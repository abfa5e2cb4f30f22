package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
)

// Gateway is a scripted payment processor.
type Gateway struct {
	mu      sync.Mutex
	Intents map[string]models.PaymentIntent
	Refunds []models.Refund
	Err     error
	seq     int
}

func NewGateway() *Gateway {
	return &Gateway{Intents: map[string]models.PaymentIntent{}}
}

func (g *Gateway) CreateIntent(_ context.Context, req models.IntentRequest) (models.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return models.PaymentIntent{}, g.Err
	}
	g.seq++
	pi := models.PaymentIntent{
		ID:           fmt.Sprintf("pi_test_%d", g.seq),
		ClientSecret: fmt.Sprintf("pi_test_%d_secret", g.seq),
		Status:       models.ExternalRequiresPaymentMethod,
		BookingID:    req.BookingID,
		Amount:       req.Amount,
		Currency:     req.Currency,
	}
	g.Intents[pi.ID] = pi
	return pi, nil
}

func (g *Gateway) RetrieveIntent(_ context.Context, intentID string) (models.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return models.PaymentIntent{}, g.Err
	}
	pi, ok := g.Intents[intentID]
	if !ok {
		return models.PaymentIntent{}, domain.NotFoundError{Resource: "payment intent"}
	}
	return pi, nil
}

// SetStatus moves an intent as the processor would after checkout.
func (g *Gateway) SetStatus(intentID string, st models.ExternalStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pi := g.Intents[intentID]
	pi.Status = st
	g.Intents[intentID] = pi
}

func (g *Gateway) Refund(_ context.Context, intentID string, amount models.Money, _ string) (models.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return models.Refund{}, g.Err
	}
	g.seq++
	r := models.Refund{ID: fmt.Sprintf("re_test_%d", g.seq), IntentID: intentID, Amount: amount, Status: "succeeded"}
	g.Refunds = append(g.Refunds, r)
	return r, nil
}

// Verifier accepts JSON-encoded models.WebhookEvent bodies when the signature
// matches Signature.
type Verifier struct {
	Signature string
}

func (v Verifier) Verify(payload []byte, signature string) (models.WebhookEvent, error) {
	if signature != v.Signature {
		return models.WebhookEvent{}, domain.ValidationError{Field: "signature", Msg: "invalid webhook signature"}
	}
	var ev models.WebhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return models.WebhookEvent{}, domain.ValidationError{Field: "payload", Msg: "invalid webhook payload", Err: err}
	}
	return ev, nil
}

// Claimer is an in-memory SET NX.
type Claimer struct {
	mu   sync.Mutex
	keys map[string]time.Time
}

func NewClaimer() *Claimer {
	return &Claimer{keys: map[string]time.Time{}}
}

func (c *Claimer) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if exp, ok := c.keys[key]; ok && time.Now().Before(exp) {
		return false, nil
	}
	c.keys[key] = time.Now().Add(ttl)
	return true, nil
}

func (c *Claimer) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	return nil
}

// Publisher records published messages.
type Publisher struct {
	mu       sync.Mutex
	Keys     []string
	Messages [][]byte
	Err      error
}

func (p *Publisher) Publish(_ context.Context, key []byte, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Keys = append(p.Keys, string(key))
	p.Messages = append(p.Messages, value)
	return nil
}

func (p *Publisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Messages)
}
