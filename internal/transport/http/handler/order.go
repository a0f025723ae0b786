package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/drypzz/api-StockSystem/internal/domain"
	"github.com/drypzz/api-StockSystem/internal/service"
)

type OrderHandler struct {
	service  service.OrderService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewOrderHandler(service service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

type createOrderInput struct {
	Items []service.CreateOrderItem `json:"items" validate:"required,min=1,dive"`
}

type orderLineResponse struct {
	ProductID int64           `json:"productId"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	PaymentStatus string              `json:"paymentStatus"`
	Total         decimal.Decimal     `json:"total"`
	Lines         []orderLineResponse `json:"items"`
	CreatedAt     time.Time           `json:"createdAt"`
}

func toOrderResponse(order *domain.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineResponse{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	return orderResponse{
		ID:            order.PublicID,
		PaymentStatus: string(order.PaymentStatus),
		Total:         order.Total(),
		Lines:         lines,
		CreatedAt:     order.CreatedAt,
	}
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	input := new(createOrderInput)
	if err := c.BodyParser(input); err != nil {
		h.logger.Warn(
			"failed to parse body in create order",
			zap.Error(err),
		)

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	order, err := h.service.CreateOrder(c.UserContext(), userID, input.Items)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(toOrderResponse(order))
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	order, err := h.service.GetOrder(c.UserContext(), userID, c.Params("publicId"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(toOrderResponse(order))
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	orders, err := h.service.ListUserOrders(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	responses := make([]orderResponse, 0, len(orders))
	for i := range orders {
		responses = append(responses, toOrderResponse(&orders[i]))
	}

	return c.JSON(fiber.Map{
		"orders": responses,
	})
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	if err := h.service.CancelOrder(c.UserContext(), userID, c.Params("publicId")); err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"status": "cancelled",
	})
}
