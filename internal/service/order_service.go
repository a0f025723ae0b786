package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drypzz/api-StockSystem/internal/domain"
	"github.com/drypzz/api-StockSystem/internal/gateway/mercadopago"
	"github.com/drypzz/api-StockSystem/internal/metrics"
	"github.com/drypzz/api-StockSystem/internal/repository"
	"github.com/drypzz/api-StockSystem/pkg/mylogger"
)

type CreateOrderItem struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int32 `json:"quantity" validate:"required,gt=0"`
}

type OrderService interface {
	CreateOrder(ctx context.Context, userID int64, items []CreateOrderItem) (*domain.Order, error)
	GetOrder(ctx context.Context, userID int64, publicID string) (*domain.Order, error)
	ListUserOrders(ctx context.Context, userID int64) ([]domain.Order, error)
	CancelOrder(ctx context.Context, userID int64, publicID string) error
}

type orderService struct {
	pool        *pgxpool.Pool
	logger      *zap.Logger
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	gateway     mercadopago.Gateway
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

func NewOrderService(
	pool *pgxpool.Pool,
	logger *zap.Logger,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	gateway mercadopago.Gateway,
	m *metrics.Metrics,
) OrderService {
	return &orderService{
		pool:        pool,
		logger:      logger,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		gateway:     gateway,
		metrics:     m,
		tracer:      otel.Tracer("service/order"),
	}
}

func (s *orderService) CreateOrder(ctx context.Context, userID int64, items []CreateOrderItem) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int("item_count", len(items)),
	)

	if len(items) == 0 {
		return nil, domain.MissingValues("items")
	}

	productIDs := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			return nil, domain.MissingValues("productId", "quantity")
		}
		if seen[item.ProductID] {
			return nil, domain.Conflict("duplicate product %d in order", item.ProductID)
		}
		seen[item.ProductID] = true
		productIDs = append(productIDs, item.ProductID)
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domain.NotFound("user not found")
		}

		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to begin transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)
		if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(shutdownCtx, s.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	products, err := s.productRepo.LockForUpdate(ctx, tx, productIDs)
	if err != nil {
		return nil, err
	}

	// Every line is validated against the locked rows before any stock
	// moves, so a multi-item order can never partially reserve.
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, domain.NotFound("product %d not found", item.ProductID)
		}
		if int64(item.Quantity) > product.StockQuantity {
			return nil, domain.Conflict(
				"insufficient stock for product %q: requested %d, available %d",
				product.Name, item.Quantity, product.StockQuantity,
			)
		}
	}

	order := &domain.Order{
		PublicID:      uuid.NewString(),
		UserID:        userID,
		PaymentStatus: domain.PaymentStatusPending,
		Lines:         make([]domain.OrderLine, 0, len(items)),
	}

	for _, item := range items {
		product := products[item.ProductID]

		if err := s.productRepo.DecreaseStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				return nil, domain.Conflict("insufficient stock for product %q", product.Name)
			}

			return nil, err
		}

		order.Lines = append(order.Lines, domain.OrderLine{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  item.Quantity,
		})
	}

	if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.metrics.OrdersCreated.Inc()

	mylogger.Info(
		ctx,
		s.logger,
		"Order created",
		zap.Int64("order_id", order.ID),
		zap.String("public_id", order.PublicID),
		zap.Int64("user_id", userID),
	)

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, userID int64, publicID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder")
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
		return nil, domain.Unauthorized("you do not have access to this order")
	}

	return order, nil
}

func (s *orderService) ListUserOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListUserOrders")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
	)

	return s.orderRepo.ListByUser(ctx, userID)
}

// CancelOrder tears down an unpaid order: remote intent cancelled
// best-effort, stock released, order and lines removed, all under the order
// row lock so a racing webhook or sweeper cannot interleave.
func (s *orderService) CancelOrder(ctx context.Context, userID int64, publicID string) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.CancelOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("public_id", publicID),
	)

	order, err := s.orderRepo.GetByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return domain.NotFound("order not found")
		}

		return err
	}

	if order.UserID != userID {
		return domain.Unauthorized("you do not have access to this order")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)
		if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(shutdownCtx, s.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	// Re-read under lock: the webhook may have approved the order between
	// the ownership check and here.
	locked, err := s.orderRepo.LockByID(ctx, tx, order.ID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return domain.NotFound("order not found")
		}

		return err
	}

	if locked.PaymentStatus != domain.PaymentStatusPending {
		return domain.Conflict("order can no longer be cancelled (status %s)", locked.PaymentStatus)
	}

	// The gateway is not the source of truth for local state: a failed
	// remote cancel is logged and the local cancellation proceeds.
	if locked.PaymentID != nil {
		if err := s.gateway.CancelPayment(ctx, *locked.PaymentID); err != nil {
			mylogger.Warn(
				ctx,
				s.logger,
				"Failed to cancel payment on gateway, proceeding with local cancellation",
				zap.Int64("order_id", locked.ID),
				zap.String("payment_id", *locked.PaymentID),
				zap.Error(err),
			)
		}
	}

	lines, err := s.orderRepo.GetLines(ctx, tx, locked.ID)
	if err != nil {
		return err
	}

	for _, line := range lines {
		if err := s.productRepo.IncreaseStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}

	if err := s.orderRepo.DeleteOrder(ctx, tx, locked.ID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.metrics.OrdersCancelled.Inc()

	mylogger.Info(
		ctx,
		s.logger,
		"Order cancelled by owner",
		zap.Int64("order_id", locked.ID),
		zap.String("public_id", publicID),
	)

	return nil
}
