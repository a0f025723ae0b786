package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drypzz/api-StockSystem/pkg/mylogger"
)

// Payment statuses as reported by the Mercado Pago API.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
)

var ErrPaymentNotFound = errors.New("payment not found on gateway")

// Gateway is the slice of the payment provider the order flow needs. The
// concrete client is injected so tests can swap in a double.
type Gateway interface {
	CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*PaymentIntent, error)
	GetPayment(ctx context.Context, id string) (*PaymentIntent, error)
	CancelPayment(ctx context.Context, id string) error
}

type Payer struct {
	Email     string
	FirstName string
	LastName  string
}

type Item struct {
	ID          string
	Title       string
	Description string
	Quantity    int32
	UnitPrice   decimal.Decimal
	CategoryID  string
}

type CreatePaymentRequest struct {
	Amount            decimal.Decimal
	Description       string
	ExternalReference string
	// IdempotencyKey must be derived from the order so a retried call can
	// never open a second charge for the same order.
	IdempotencyKey  string
	Payer           Payer
	Items           []Item
	NotificationURL string
	ExpiresAt       time.Time
}

// PaymentIntent is the gateway-side charge: the PIX copy-paste payload plus
// its pre-rendered image, both cached on the order afterwards.
type PaymentIntent struct {
	ID           string
	Status       string
	QrCode       string
	QrCodeBase64 string
	ExpiresAt    time.Time
}

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *zap.Logger
	cb          *gobreaker.CircuitBreaker
	tracer      trace.Tracer
}

func NewClient(baseURL, accessToken string, timeout time.Duration, logger *zap.Logger) *Client {
	settings := gobreaker.Settings{
		Name:        "MercadoPago",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn(
				"Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
		cb:          gobreaker.NewCircuitBreaker(settings),
		tracer:      otel.Tracer("gateway/mercadopago"),
	}
}

type transactionData struct {
	QrCode       string `json:"qr_code"`
	QrCodeBase64 string `json:"qr_code_base64"`
}

type pointOfInteraction struct {
	TransactionData transactionData `json:"transaction_data"`
}

type paymentResponse struct {
	ID                 json.Number        `json:"id"`
	Status             string             `json:"status"`
	DateOfExpiration   string             `json:"date_of_expiration"`
	PointOfInteraction pointOfInteraction `json:"point_of_interaction"`
}

func (p *paymentResponse) toIntent() (*PaymentIntent, error) {
	intent := &PaymentIntent{
		ID:           p.ID.String(),
		Status:       p.Status,
		QrCode:       p.PointOfInteraction.TransactionData.QrCode,
		QrCodeBase64: p.PointOfInteraction.TransactionData.QrCodeBase64,
	}

	if p.DateOfExpiration != "" {
		expiresAt, err := time.Parse(time.RFC3339, p.DateOfExpiration)
		if err != nil {
			return nil, fmt.Errorf("failed to parse payment expiration %q: %w", p.DateOfExpiration, err)
		}
		intent.ExpiresAt = expiresAt
	}

	return intent, nil
}

func (c *Client) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*PaymentIntent, error) {
	ctx, span := c.tracer.Start(ctx, "MercadoPago.CreatePayment")
	defer span.End()

	span.SetAttributes(
		attribute.String("external_reference", req.ExternalReference),
		attribute.String("idempotency_key", req.IdempotencyKey),
	)

	items := make([]map[string]any, len(req.Items))
	for i, item := range req.Items {
		items[i] = map[string]any{
			"id":          item.ID,
			"title":       item.Title,
			"description": item.Description,
			"quantity":    item.Quantity,
			"unit_price":  item.UnitPrice.InexactFloat64(),
			"category_id": item.CategoryID,
		}
	}

	body := map[string]any{
		"transaction_amount":   req.Amount.InexactFloat64(),
		"description":          req.Description,
		"payment_method_id":    "pix",
		"statement_descriptor": "STK | E-Commerce",
		"external_reference":   req.ExternalReference,
		"payer": map[string]any{
			"email":      req.Payer.Email,
			"first_name": req.Payer.FirstName,
			"last_name":  req.Payer.LastName,
		},
		"additional_info": map[string]any{
			"items": items,
		},
		"notification_url":   req.NotificationURL,
		"date_of_expiration": req.ExpiresAt.Format(time.RFC3339),
	}

	headers := map[string]string{"X-Idempotency-Key": req.IdempotencyKey}

	var resp paymentResponse
	if err := c.do(ctx, http.MethodPost, "/v1/payments", body, headers, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return resp.toIntent()
}

func (c *Client) GetPayment(ctx context.Context, id string) (*PaymentIntent, error) {
	ctx, span := c.tracer.Start(ctx, "MercadoPago.GetPayment")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment_id", id),
	)

	var resp paymentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+id, nil, nil, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return resp.toIntent()
}

func (c *Client) CancelPayment(ctx context.Context, id string) error {
	ctx, span := c.tracer.Start(ctx, "MercadoPago.CancelPayment")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment_id", id),
	)

	body := map[string]any{"status": StatusCancelled}

	return c.do(ctx, http.MethodPut, "/v1/payments/"+id, body, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			mylogger.Error(
				ctx,
				c.logger,
				"Gateway request failed",
				zap.String("method", method),
				zap.String("path", path),
				zap.Error(err),
			)

			return nil, fmt.Errorf("gateway request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrPaymentNotFound
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

			mylogger.Error(
				ctx,
				c.logger,
				"Gateway returned error status",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.ByteString("body", detail),
			)

			return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return nil, fmt.Errorf("failed to decode gateway response: %w", err)
			}
		}

		return nil, nil
	})

	return err
}
