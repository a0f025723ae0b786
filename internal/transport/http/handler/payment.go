package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/drypzz/api-StockSystem/internal/service"
	"github.com/drypzz/api-StockSystem/pkg/mylogger"
)

type PaymentHandler struct {
	service service.PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(service service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger,
	}
}

func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	payment, err := h.service.GetOrCreatePayment(c.UserContext(), userID, c.Params("publicId"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(payment)
}

type webhookBody struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
	Data  struct {
		ID any `json:"id"`
	} `json:"data"`
}

// Webhook is the gateway callback. It always answers 200 so the gateway
// stops retrying; the authoritative payment status is re-fetched from the
// gateway rather than trusted from the request.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	paymentID := c.Query("id")
	if paymentID == "" {
		paymentID = c.Query("data.id")
	}

	topic := c.Query("topic")
	if topic == "" {
		topic = c.Query("type")
	}

	body := new(webhookBody)
	if err := c.BodyParser(body); err == nil {
		if body.Data.ID != nil {
			paymentID = webhookID(body.Data.ID)
		}
		if body.Type != "" {
			topic = body.Type
		} else if body.Topic != "" {
			topic = body.Topic
		}
	}

	if topic != "" && topic != "payment" {
		mylogger.Debug(
			c.UserContext(),
			h.logger,
			"Ignoring webhook for unrelated topic",
			zap.String("topic", topic),
		)

		return c.SendString("ok")
	}

	if paymentID == "" {
		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"Webhook without payment id",
		)

		return c.SendString("ok")
	}

	if err := h.service.HandleWebhookNotification(c.UserContext(), paymentID); err != nil {
		mylogger.Error(
			c.UserContext(),
			h.logger,
			"Webhook processing failed",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
	}

	return c.SendString("ok")
}

// webhookID normalizes the id field, which the gateway sends either as a
// JSON number or a string.
func webhookID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	default:
		return ""
	}
}
