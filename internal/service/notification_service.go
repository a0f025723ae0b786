package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drypzz/api-StockSystem/internal/domain"
	"github.com/drypzz/api-StockSystem/internal/email"
	"github.com/drypzz/api-StockSystem/internal/metrics"
	"github.com/drypzz/api-StockSystem/internal/repository"
	"github.com/drypzz/api-StockSystem/pkg/mylogger"
)

type NotificationService struct {
	pool      *pgxpool.Pool
	logger    *zap.Logger
	orderRepo repository.OrderRepository
	userRepo  repository.UserRepository
	sender    email.Sender
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func NewNotificationService(
	pool *pgxpool.Pool,
	logger *zap.Logger,
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	sender email.Sender,
	m *metrics.Metrics,
) *NotificationService {
	return &NotificationService{
		pool:      pool,
		logger:    logger,
		orderRepo: orderRepo,
		userRepo:  userRepo,
		sender:    sender,
		metrics:   m,
		tracer:    otel.Tracer("service/notification"),
	}
}

// SendOrderConfirmation dispatches the "order confirmed" email at most once
// per order. The sent flag is claimed under the order row lock and committed
// BEFORE the SMTP attempt: a crash between commit and send loses one email,
// but a send failure can never trigger a duplicate on retry. Failures here
// are logged and absorbed, never surfaced.
func (s *NotificationService) SendOrderConfirmation(ctx context.Context, orderID int64) {
	ctx, span := s.tracer.Start(ctx, "NotificationService.SendOrderConfirmation")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
	)

	confirmation, err := s.claimDispatch(ctx, orderID)
	if err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to claim confirmation email dispatch",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)

		return
	}
	if confirmation == nil {
		mylogger.Info(
			ctx,
			s.logger,
			"Confirmation email not needed (already sent or order not approved)",
			zap.Int64("order_id", orderID),
		)

		return
	}

	if err := s.sender.SendOrderConfirmation(ctx, confirmation); err != nil {
		// The flag stays set: at-most-once beats a retry storm re-locking
		// the same row.
		s.metrics.EmailsFailed.Inc()
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to send confirmation email, will not retry",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)

		return
	}

	s.metrics.EmailsSent.Inc()

	mylogger.Info(
		ctx,
		s.logger,
		"Confirmation email dispatched",
		zap.Int64("order_id", orderID),
	)
}

// claimDispatch flips confirmation_email_sent under the row lock and commits.
// A nil confirmation with nil error means another caller already claimed it,
// or the order is not in a state that warrants an email.
func (s *NotificationService) claimDispatch(ctx context.Context, orderID int64) (*email.OrderConfirmation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)
		if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(shutdownCtx, s.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	order, err := s.orderRepo.LockByID(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, nil
		}

		return nil, err
	}

	if order.ConfirmationEmailSent || order.PaymentStatus != domain.PaymentStatusApproved {
		return nil, nil
	}

	if err := s.orderRepo.MarkConfirmationEmailSent(ctx, tx, orderID); err != nil {
		return nil, err
	}

	lines, err := s.orderRepo.GetLines(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, order.UserID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	order.Lines = lines

	confirmation := &email.OrderConfirmation{
		To:       user.Email,
		UserName: user.Name,
		OrderID:  order.ID,
		Total:    order.Total(),
	}

	for _, line := range lines {
		confirmation.Lines = append(confirmation.Lines, email.ConfirmationLine{
			Name:     line.Name,
			Quantity: line.Quantity,
			Subtotal: line.UnitPrice.Mul(decimal.NewFromInt32(line.Quantity)),
		})
	}

	return confirmation, nil
}
