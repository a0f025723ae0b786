package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drypzz/api-StockSystem/internal/domain"
	"github.com/drypzz/api-StockSystem/pkg/mylogger"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByPublicID(ctx context.Context, publicID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	GetLines(ctx context.Context, tx pgx.Tx, orderID int64) ([]domain.OrderLine, error)

	// Locking reads. Every racing flow (webhook, sweeper, user cancel,
	// notification) takes the order row lock before deciding anything.
	LockByID(ctx context.Context, tx pgx.Tx, orderID int64) (*domain.Order, error)
	LockByPaymentID(ctx context.Context, tx pgx.Tx, paymentID string) (*domain.Order, error)
	LockExpiredPending(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]domain.Order, error)

	SavePaymentIntent(ctx context.Context, orderID int64, paymentID, qrCode, qrCodeBase64 string, expiresAt time.Time) error
	TransitionStatus(ctx context.Context, tx pgx.Tx, orderID int64, from, to domain.PaymentStatus) (bool, error)
	MarkConfirmationEmailSent(ctx context.Context, tx pgx.Tx, orderID int64) error
	DeleteOrder(ctx context.Context, tx pgx.Tx, orderID int64) error
}

type orderRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewOrderRepository(pool *pgxpool.Pool, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/order"),
	}
}

const orderColumns = `
	id, public_id, user_id, payment_status, payment_id, payment_qr_code,
	payment_qr_code_base64, payment_expires_at, confirmation_email_sent,
	created_at, updated_at
`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.PublicID,
		&o.UserID,
		&o.PaymentStatus,
		&o.PaymentID,
		&o.PaymentQrCode,
		&o.PaymentQrCodeBase64,
		&o.PaymentExpiresAt,
		&o.ConfirmationEmailSent,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &o, nil
}

func (r *orderRepo) CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", order.UserID),
		attribute.Int("line_count", len(order.Lines)),
	)

	queryOrder := `
		INSERT INTO orders (public_id, user_id, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	if err := tx.QueryRow(
		ctx,
		queryOrder,
		order.PublicID,
		order.UserID,
		string(order.PaymentStatus),
	).Scan(
		&order.ID,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Failed to insert order",
			zap.Int64("user_id", order.UserID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert order: %w", err)
	}

	queryLine := `
		INSERT INTO order_lines (order_id, product_id, name, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	for i := range order.Lines {
		line := &order.Lines[i]
		line.OrderID = order.ID

		if err := tx.QueryRow(
			ctx,
			queryLine,
			order.ID,
			line.ProductID,
			line.Name,
			line.UnitPrice,
			line.Quantity,
		).Scan(&line.ID); err != nil {
			span.RecordError(err)
			mylogger.Error(
				ctx,
				r.logger,
				"Failed to insert order line",
				zap.Int64("order_id", order.ID),
				zap.Int64("product_id", line.ProductID),
				zap.Error(err),
			)

			return fmt.Errorf("failed to insert order line: %w", err)
		}
	}

	return nil
}

func (r *orderRepo) GetByPublicID(ctx context.Context, publicID string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByPublicID")
	defer span.End()

	span.SetAttributes(
		attribute.String("public_id", publicID),
	)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE public_id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, publicID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Failed to query order",
			zap.String("public_id", publicID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	lines, err := r.loadLines(ctx, r.pool, order.ID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	order.Lines = lines

	return order, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListByUser")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
	)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to list orders", zap.Error(err))

		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		lines, err := r.loadLines(ctx, r.pool, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}

	span.SetAttributes(attribute.Int("result_count", len(orders)))

	return orders, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *orderRepo) loadLines(ctx context.Context, q queryer, orderID int64) ([]domain.OrderLine, error) {
	query := `
		SELECT id, order_id, product_id, name, unit_price, quantity
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.ProductID,
			&line.Name,
			&line.UnitPrice,
			&line.Quantity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}

		lines = append(lines, line)
	}

	return lines, rows.Err()
}

func (r *orderRepo) GetLines(ctx context.Context, tx pgx.Tx, orderID int64) ([]domain.OrderLine, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetLines")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
	)

	return r.loadLines(ctx, tx, orderID)
}

func (r *orderRepo) LockByID(ctx context.Context, tx pgx.Tx, orderID int64) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.LockByID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
	)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	order, err := scanOrder(tx.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	return order, nil
}

func (r *orderRepo) LockByPaymentID(ctx context.Context, tx pgx.Tx, paymentID string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.LockByPaymentID")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment_id", paymentID),
	)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_id = $1 FOR UPDATE`

	order, err := scanOrder(tx.QueryRow(ctx, query, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("failed to lock order by payment id: %w", err)
	}

	return order, nil
}

// LockExpiredPending grabs a batch of pending orders whose payment window
// lapsed. SKIP LOCKED keeps the sweeper out of the way of a webhook or a
// user cancel that already holds one of the rows.
func (r *orderRepo) LockExpiredPending(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.LockExpiredPending")
	defer span.End()

	span.SetAttributes(
		attribute.Int("batch_size", limit),
	)

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE payment_status = $1 AND payment_expires_at < $2
		ORDER BY payment_expires_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.Query(ctx, query, string(domain.PaymentStatusPending), now, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query expired orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan expired order: %w", err)
		}

		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("result_count", len(orders)))

	return orders, nil
}

func (r *orderRepo) SavePaymentIntent(ctx context.Context, orderID int64, paymentID, qrCode, qrCodeBase64 string, expiresAt time.Time) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.SavePaymentIntent")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
		attribute.String("payment_id", paymentID),
	)

	query := `
		UPDATE orders
		SET payment_id = $2,
			payment_qr_code = $3,
			payment_qr_code_base64 = $4,
			payment_expires_at = $5,
			updated_at = NOW()
		WHERE id = $1
	`

	commandTag, err := r.pool.Exec(ctx, query, orderID, paymentID, qrCode, qrCodeBase64, expiresAt)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Failed to save payment intent",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to save payment intent: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// TransitionStatus is the compare-and-swap at the heart of the state
// machine: the update applies only when the row still holds the expected
// status, and the boolean tells the caller whether it won the race.
func (r *orderRepo) TransitionStatus(ctx context.Context, tx pgx.Tx, orderID int64, from, to domain.PaymentStatus) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.TransitionStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	)

	if !domain.CanTransition(from, to) {
		return false, fmt.Errorf("illegal order transition %s -> %s", from, to)
	}

	query := `
		UPDATE orders
		SET payment_status = $3, updated_at = NOW()
		WHERE id = $1 AND payment_status = $2
	`

	commandTag, err := tx.Exec(ctx, query, orderID, string(from), string(to))
	if err != nil {
		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Failed to transition order status",
			zap.Int64("order_id", orderID),
			zap.String("to", string(to)),
			zap.Error(err),
		)

		return false, fmt.Errorf("failed to transition order status: %w", err)
	}

	return commandTag.RowsAffected() == 1, nil
}

func (r *orderRepo) MarkConfirmationEmailSent(ctx context.Context, tx pgx.Tx, orderID int64) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.MarkConfirmationEmailSent")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
	)

	query := `
		UPDATE orders
		SET confirmation_email_sent = TRUE, updated_at = NOW()
		WHERE id = $1 AND confirmation_email_sent = FALSE
	`

	commandTag, err := tx.Exec(ctx, query, orderID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to mark confirmation email sent: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *orderRepo) DeleteOrder(ctx context.Context, tx pgx.Tx, orderID int64) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.DeleteOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
	)

	// order_lines go with the order via ON DELETE CASCADE
	commandTag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Failed to delete order",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to delete order: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}
