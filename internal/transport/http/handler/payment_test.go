package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drypzz/api-StockSystem/internal/service"
)

type stubPaymentService struct {
	mu       sync.Mutex
	received []string
}

func (s *stubPaymentService) GetOrCreatePayment(context.Context, int64, string) (*service.PaymentResponse, error) {
	panic("not used")
}

func (s *stubPaymentService) HandleWebhookNotification(_ context.Context, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.received = append(s.received, paymentID)
	return nil
}

func newWebhookApp(stub *stubPaymentService) *fiber.App {
	app := fiber.New()
	h := NewPaymentHandler(stub, zap.NewNop())
	app.Post("/webhook", h.Webhook)
	return app
}

func TestWebhookBodyForm(t *testing.T) {
	stub := &stubPaymentService{}
	app := newWebhookApp(stub)

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(`{"type":"payment","data":{"id":123456}}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, "ok", string(body))
	require.Equal(t, []string{"123456"}, stub.received)
}

func TestWebhookQueryForm(t *testing.T) {
	stub := &stubPaymentService{}
	app := newWebhookApp(stub)

	req := httptest.NewRequest("POST", "/webhook?id=789&topic=payment", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"789"}, stub.received)
}

func TestWebhookIgnoresOtherTopics(t *testing.T) {
	stub := &stubPaymentService{}
	app := newWebhookApp(stub)

	req := httptest.NewRequest("POST", "/webhook?id=789&topic=merchant_order", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)

	// Still 200 so the gateway stops retrying, but nothing was processed.
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Empty(t, stub.received)
}

func TestWebhookWithoutID(t *testing.T) {
	stub := &stubPaymentService{}
	app := newWebhookApp(stub)

	req := httptest.NewRequest("POST", "/webhook", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Empty(t, stub.received)
}

func TestWebhookStringID(t *testing.T) {
	stub := &stubPaymentService{}
	app := newWebhookApp(stub)

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(`{"type":"payment","data":{"id":"abc-123"}}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"abc-123"}, stub.received)
}
