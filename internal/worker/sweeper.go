package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drypzz/api-StockSystem/internal/domain"
	"github.com/drypzz/api-StockSystem/internal/gateway/mercadopago"
	"github.com/drypzz/api-StockSystem/internal/metrics"
	"github.com/drypzz/api-StockSystem/internal/repository"
	"github.com/drypzz/api-StockSystem/pkg/mylogger"
)

// ExpirationSweeper periodically cancels pending orders whose payment
// window has lapsed and returns their reserved stock. Expired rows are
// claimed with SKIP LOCKED, so multiple instances can run side by side.
type ExpirationSweeper struct {
	pool        *pgxpool.Pool
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	gateway     mercadopago.Gateway
	metrics     *metrics.Metrics
	logger      *zap.Logger
	interval    time.Duration
	batchSize   int
	tracer      trace.Tracer
}

func NewExpirationSweeper(
	pool *pgxpool.Pool,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	gateway mercadopago.Gateway,
	metrics *metrics.Metrics,
	logger *zap.Logger,
	interval time.Duration,
	batchSize int,
) *ExpirationSweeper {
	return &ExpirationSweeper{
		pool:        pool,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		gateway:     gateway,
		metrics:     metrics,
		logger:      logger,
		interval:    interval,
		batchSize:   batchSize,
		tracer:      otel.Tracer("worker/sweeper"),
	}
}

func (s *ExpirationSweeper) Start(ctx context.Context) {
	mylogger.Info(
		ctx,
		s.logger,
		"Starting expiration sweeper",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(
				ctx,
				s.logger,
				"Expiration sweeper stopping",
			)

			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				mylogger.Error(
					ctx,
					s.logger,
					"Error sweeping expired orders",
					zap.Error(err),
				)
			}
		}
	}
}

// Sweep runs a single pass. Exposed so tests can drive the sweeper
// without waiting on the ticker.
func (s *ExpirationSweeper) Sweep(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "ExpirationSweeper.Sweep")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(
				cleanupCtx,
				s.logger,
				"Sweeper failed to rollback transaction",
				zap.Error(err),
			)
		}
	}()

	orders, err := s.orderRepo.LockExpiredPending(ctx, tx, time.Now(), s.batchSize)
	if err != nil {
		return err
	}

	if len(orders) == 0 {
		return nil
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Expiring pending orders",
		zap.Int("count", len(orders)),
	)

	for _, order := range orders {
		if err := s.expireOrder(ctx, tx, &order); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *ExpirationSweeper) expireOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	if order.PaymentID != nil {
		if err := s.gateway.CancelPayment(ctx, *order.PaymentID); err != nil {
			mylogger.Warn(
				ctx,
				s.logger,
				"Failed to cancel payment at gateway, expiring order anyway",
				zap.Int64("order_id", order.ID),
				zap.String("payment_id", *order.PaymentID),
				zap.Error(err),
			)
		}
	}

	moved, err := s.orderRepo.TransitionStatus(ctx, tx, order.ID, domain.PaymentStatusPending, domain.PaymentStatusCancelled)
	if err != nil {
		return err
	}

	// Someone else moved the order first; its stock is not ours to touch.
	if !moved {
		mylogger.Warn(
			ctx,
			s.logger,
			"Order left pending state during sweep, skipping",
			zap.Int64("order_id", order.ID),
		)

		return nil
	}

	lines, err := s.orderRepo.GetLines(ctx, tx, order.ID)
	if err != nil {
		return err
	}

	for _, line := range lines {
		if err := s.productRepo.IncreaseStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}

	s.metrics.OrdersExpired.Inc()

	mylogger.Info(
		ctx,
		s.logger,
		"Order expired",
		zap.Int64("order_id", order.ID),
		zap.String("public_id", order.PublicID),
	)

	return nil
}
