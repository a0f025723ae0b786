package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drypzz/api-StockSystem/internal/config"
	"github.com/drypzz/api-StockSystem/pkg/mylogger"
)

type ConfirmationLine struct {
	Name     string
	Quantity int32
	Subtotal decimal.Decimal
}

type OrderConfirmation struct {
	To       string
	UserName string
	OrderID  int64
	Lines    []ConfirmationLine
	Total    decimal.Decimal
}

// Sender is the transactional email collaborator. Delivery is best-effort;
// callers must never roll anything back on a send failure.
type Sender interface {
	SendOrderConfirmation(ctx context.Context, confirmation *OrderConfirmation) error
}

type smtpSender struct {
	from     string
	password string
	host     string
	port     string
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewSMTPSender(cfg config.SMTP, logger *zap.Logger) Sender {
	return &smtpSender{
		from:     cfg.User,
		password: cfg.Password,
		host:     cfg.Host,
		port:     cfg.Port,
		logger:   logger,
		tracer:   otel.Tracer("email/smtp"),
	}
}

func (s *smtpSender) SendOrderConfirmation(ctx context.Context, confirmation *OrderConfirmation) error {
	ctx, span := s.tracer.Start(ctx, "smtp.SendOrderConfirmation")
	defer span.End()

	span.SetAttributes(
		attribute.String("to.email", confirmation.To),
		attribute.Int64("order_id", confirmation.OrderID),
	)

	var rows strings.Builder
	for _, line := range confirmation.Lines {
		rows.WriteString(fmt.Sprintf(
			"<tr><td><strong>%s</strong> x%d</td><td align=\"right\">R$ %s</td></tr>",
			line.Name,
			line.Quantity,
			line.Subtotal.StringFixed(2),
		))
	}

	subject := fmt.Sprintf("Subject: Your order #%d is confirmed!\n", confirmation.OrderID)
	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	body := fmt.Sprintf(`
		<h1>Payment confirmed!</h1>
		<p>Hi %s, we received the payment confirmation for your order #%d. Thanks for your purchase!</p>
		<table width="100%%">
			%s
			<tr><td><strong>Total</strong></td><td align="right"><strong>R$ %s</strong></td></tr>
		</table>
	`, confirmation.UserName, confirmation.OrderID, rows.String(), confirmation.Total.StringFixed(2))

	msg := []byte(subject + mime + body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	auth := smtp.PlainAuth("", s.from, s.password, s.host)

	mylogger.Info(
		ctx,
		s.logger,
		"Sending order confirmation email",
		zap.String("to", confirmation.To),
		zap.Int64("order_id", confirmation.OrderID),
	)

	if err := smtp.SendMail(addr, auth, s.from, []string{confirmation.To}, msg); err != nil {
		span.RecordError(err)
		mylogger.Error(
			ctx,
			s.logger,
			"Error sending order confirmation email",
			zap.String("to", confirmation.To),
			zap.Int64("order_id", confirmation.OrderID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to send mail: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order confirmation email sent successfully",
		zap.Int64("order_id", confirmation.OrderID),
	)

	return nil
}
