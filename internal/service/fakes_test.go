package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/drypzz/api-StockSystem/internal/email"
	"github.com/drypzz/api-StockSystem/internal/gateway/mercadopago"
)

var errAlwaysFails = errors.New("induced failure")

// fakeGateway stands in for the payment provider. Statuses are mutated by
// tests to simulate gateway-side approval or cancellation.
type fakeGateway struct {
	mu          sync.Mutex
	nextID      int64
	createCalls int
	createKeys  []string
	cancelled   []string
	statuses    map[string]string
	createErr   error
	cancelErr   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		statuses: make(map[string]string),
	}
}

func (g *fakeGateway) CreatePayment(_ context.Context, req *mercadopago.CreatePaymentRequest) (*mercadopago.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.createErr != nil {
		return nil, g.createErr
	}

	g.createCalls++
	g.createKeys = append(g.createKeys, req.IdempotencyKey)

	g.nextID++
	id := fmt.Sprintf("%d", 1000+g.nextID)
	g.statuses[id] = mercadopago.StatusPending

	return &mercadopago.PaymentIntent{
		ID:           id,
		Status:       mercadopago.StatusPending,
		QrCode:       "qr-" + id,
		QrCodeBase64: "qr64-" + id,
		ExpiresAt:    req.ExpiresAt,
	}, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, id string) (*mercadopago.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	status, ok := g.statuses[id]
	if !ok {
		return nil, mercadopago.ErrPaymentNotFound
	}

	return &mercadopago.PaymentIntent{
		ID:     id,
		Status: status,
	}, nil
}

func (g *fakeGateway) CancelPayment(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancelErr != nil {
		return g.cancelErr
	}

	g.cancelled = append(g.cancelled, id)
	g.statuses[id] = mercadopago.StatusCancelled

	return nil
}

func (g *fakeGateway) setStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.statuses[id] = status
}

func (g *fakeGateway) createCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.createCalls
}

func (g *fakeGateway) cancelledIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]string(nil), g.cancelled...)
}

// recordingSender captures outgoing confirmations instead of talking SMTP.
type recordingSender struct {
	mu      sync.Mutex
	sent    []*email.OrderConfirmation
	sendErr error
}

func (r *recordingSender) SendOrderConfirmation(_ context.Context, confirmation *email.OrderConfirmation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sendErr != nil {
		return r.sendErr
	}

	r.sent = append(r.sent, confirmation)

	return nil
}

func (r *recordingSender) sentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sent)
}

func (r *recordingSender) lastSent() *email.OrderConfirmation {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sent) == 0 {
		return nil
	}

	return r.sent[len(r.sent)-1]
}
