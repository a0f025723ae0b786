package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drypzz/api-StockSystem/internal/config"
	"github.com/drypzz/api-StockSystem/internal/domain"
	"github.com/drypzz/api-StockSystem/internal/gateway/mercadopago"
	"github.com/drypzz/api-StockSystem/internal/metrics"
	"github.com/drypzz/api-StockSystem/internal/repository"
	"github.com/drypzz/api-StockSystem/pkg/mylogger"
)

type PaymentResponse struct {
	PublicOrderID string          `json:"publicOrderId"`
	PaymentID     string          `json:"paymentId"`
	QrCode        string          `json:"qrCode"`
	QrCodeBase64  string          `json:"qrCodeBase64"`
	ExpiresAt     time.Time       `json:"expiresAt"`
	Amount        decimal.Decimal `json:"amount"`
}

type PaymentService interface {
	GetOrCreatePayment(ctx context.Context, userID int64, publicID string) (*PaymentResponse, error)
	HandleWebhookNotification(ctx context.Context, paymentID string) error
}

type paymentService struct {
	pool         *pgxpool.Pool
	logger       *zap.Logger
	orderRepo    repository.OrderRepository
	userRepo     repository.UserRepository
	gateway      mercadopago.Gateway
	notification *NotificationService
	metrics      *metrics.Metrics
	cfg          config.MercadoPago
	tracer       trace.Tracer
}

func NewPaymentService(
	pool *pgxpool.Pool,
	logger *zap.Logger,
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	gateway mercadopago.Gateway,
	notification *NotificationService,
	m *metrics.Metrics,
	cfg config.MercadoPago,
) PaymentService {
	return &paymentService{
		pool:         pool,
		logger:       logger,
		orderRepo:    orderRepo,
		userRepo:     userRepo,
		gateway:      gateway,
		notification: notification,
		metrics:      m,
		cfg:          cfg,
		tracer:       otel.Tracer("service/payment"),
	}
}

// GetOrCreatePayment is idempotent from the caller's perspective: while the
// cached intent is still payable it is returned as-is, and the gateway-side
// idempotency key covers the window where a retry races charge creation.
func (s *paymentService) GetOrCreatePayment(ctx context.Context, userID int64, publicID string) (*PaymentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.GetOrCreatePayment")
	defer span.End()

	span.SetAttributes(
		attribute.String("public_id", publicID),
	)

	order, err := s.orderRepo.GetByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, domain.NotFound("order not found")
		}

		return nil, err
	}

	if order.UserID != userID {
		return nil, domain.Unauthorized("you do not have permission to pay this order")
	}

	if order.PaymentStatus == domain.PaymentStatusApproved {
		return nil, domain.Conflict("this order has already been paid")
	}

	amount := order.Total()

	if order.HasLivePaymentIntent(time.Now()) {
		return &PaymentResponse{
			PublicOrderID: order.PublicID,
			PaymentID:     *order.PaymentID,
			QrCode:        deref(order.PaymentQrCode),
			QrCodeBase64:  deref(order.PaymentQrCodeBase64),
			ExpiresAt:     *order.PaymentExpiresAt,
			Amount:        amount,
		}, nil
	}

	if !amount.IsPositive() {
		return nil, domain.Conflict("order amount must be greater than zero")
	}

	user, err := s.userRepo.GetByID(ctx, order.UserID)
	if err != nil {
		return nil, err
	}

	firstName, lastName := splitName(user.Name)

	items := make([]mercadopago.Item, 0, len(order.Lines))
	for _, line := range order.Lines {
		items = append(items, mercadopago.Item{
			ID:          fmt.Sprintf("%d", line.ProductID),
			Title:       line.Name,
			Description: fmt.Sprintf("Order #%d item", order.ID),
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}

	expiresAt := time.Now().Add(s.cfg.PaymentTTL)

	intent, err := s.gateway.CreatePayment(ctx, &mercadopago.CreatePaymentRequest{
		Amount:            amount,
		Description:       fmt.Sprintf("Order #%d - E-commerce", order.ID),
		ExternalReference: order.PublicID,
		IdempotencyKey:    fmt.Sprintf("order-payment-%d", order.ID),
		Payer: mercadopago.Payer{
			Email:     user.Email,
			FirstName: firstName,
			LastName:  lastName,
		},
		Items:           items,
		NotificationURL: s.cfg.WebhookURL + "/api/v1/payments/webhook",
		ExpiresAt:       expiresAt,
	})
	if err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to create payment on gateway",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	if !intent.ExpiresAt.IsZero() {
		expiresAt = intent.ExpiresAt
	}

	if err := s.orderRepo.SavePaymentIntent(
		ctx, order.ID, intent.ID, intent.QrCode, intent.QrCodeBase64, expiresAt,
	); err != nil {
		return nil, err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Payment intent created",
		zap.Int64("order_id", order.ID),
		zap.String("payment_id", intent.ID),
	)

	return &PaymentResponse{
		PublicOrderID: order.PublicID,
		PaymentID:     intent.ID,
		QrCode:        intent.QrCode,
		QrCodeBase64:  intent.QrCodeBase64,
		ExpiresAt:     expiresAt,
		Amount:        amount,
	}, nil
}

// HandleWebhookNotification reconciles an asynchronous gateway notification.
// The webhook body is never trusted: the payment status is always re-fetched
// from the gateway, which is the only defense against forged notifications.
func (s *paymentService) HandleWebhookNotification(ctx context.Context, paymentID string) error {
	ctx, span := s.tracer.Start(ctx, "PaymentService.HandleWebhookNotification")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment_id", paymentID),
	)

	intent, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, mercadopago.ErrPaymentNotFound) {
			mylogger.Warn(
				ctx,
				s.logger,
				"Webhook for unknown gateway payment",
				zap.String("payment_id", paymentID),
			)

			return nil
		}

		return fmt.Errorf("failed to query gateway for payment %s: %w", paymentID, err)
	}

	if intent.Status != mercadopago.StatusApproved {
		mylogger.Info(
			ctx,
			s.logger,
			"Webhook ignored, payment not approved",
			zap.String("payment_id", paymentID),
			zap.String("status", intent.Status),
		)

		return nil
	}

	orderID, err := s.approveOrder(ctx, paymentID)
	if err != nil {
		return err
	}
	if orderID == 0 {
		return nil
	}

	// Dispatch runs after the status commit; its own lock-and-flag guard
	// makes repeated deliveries for the same payment harmless.
	s.notification.SendOrderConfirmation(ctx, orderID)

	return nil
}

// approveOrder applies the pending -> approved transition under the order
// row lock. It returns the order id, or zero when there is nothing to do.
func (s *paymentService) approveOrder(ctx context.Context, paymentID string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)
		if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(shutdownCtx, s.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	order, err := s.orderRepo.LockByPaymentID(ctx, tx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			mylogger.Warn(
				ctx,
				s.logger,
				"Webhook payment id does not match any order",
				zap.String("payment_id", paymentID),
			)

			return 0, nil
		}

		return 0, err
	}

	switch order.PaymentStatus {
	case domain.PaymentStatusApproved:
		// Re-delivery. Return the id so notification dispatch can cover a
		// crash that happened between the earlier commit and the email.
		return order.ID, nil
	case domain.PaymentStatusPending:
		// fall through to the transition
	default:
		mylogger.Warn(
			ctx,
			s.logger,
			"Gateway approved a payment for an order no longer pending",
			zap.Int64("order_id", order.ID),
			zap.String("status", string(order.PaymentStatus)),
		)

		return 0, nil
	}

	moved, err := s.orderRepo.TransitionStatus(
		ctx, tx, order.ID, domain.PaymentStatusPending, domain.PaymentStatusApproved,
	)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if moved {
		s.metrics.PaymentsApproved.Inc()

		mylogger.Info(
			ctx,
			s.logger,
			"Order approved via webhook",
			zap.Int64("order_id", order.ID),
			zap.String("payment_id", paymentID),
		)
	}

	return order.ID, nil
}

func splitName(full string) (string, string) {
	parts := strings.Fields(strings.TrimSpace(full))
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], parts[0]
	}

	return parts[0], strings.Join(parts[1:], " ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
