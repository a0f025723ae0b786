package handler

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/drypzz/api-StockSystem/internal/domain"
	"github.com/drypzz/api-StockSystem/internal/service"
	"github.com/drypzz/api-StockSystem/pkg/mylogger"
)

type ProductHandler struct {
	service  service.ProductService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewProductHandler(service service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

type createProductInput struct {
	Name          string          `json:"name" validate:"required,min=3,max=100"`
	Description   string          `json:"description" validate:"max=1000"`
	Price         decimal.Decimal `json:"price" validate:"required"`
	StockQuantity int64           `json:"stock_quantity" validate:"gte=0"`
	CategoryID    int64           `json:"category_id" validate:"required,gt=0"`
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	input := new(createProductInput)
	if err := c.BodyParser(input); err != nil {
		h.logger.Warn(
			"failed to parse body in create product",
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

	product := &domain.Product{
		Name:          input.Name,
		Description:   input.Description,
		Price:         input.Price,
		StockQuantity: input.StockQuantity,
		CategoryID:    input.CategoryID,
	}

	id, err := h.service.Create(c.UserContext(), product)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	mylogger.Info(
		c.UserContext(),
		h.logger,
		"create product succeeded",
		zap.Int64("created_id", id),
	)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id": id,
	})
}

func (h *ProductHandler) FindByID(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Id is invalid",
		})
	}

	product, err := h.service.FindByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(product)
}

func (h *ProductHandler) List(c *fiber.Ctx) error {
	limit := int64(c.QueryInt("limit", 20))
	offset := int64(c.QueryInt("offset", 0))
	search := c.Query("search")

	products, total, err := h.service.List(c.UserContext(), limit, offset, search)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"products": products,
		"total":    total,
	})
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Id is invalid",
		})
	}

	input := new(domain.UpdateProductInput)
	if err := c.BodyParser(input); err != nil {
		h.logger.Warn(
			"failed to parse body in update product",
			zap.Error(err),
		)

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := h.service.Update(c.UserContext(), id, input); err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"status": "success",
	})
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Id is invalid",
		})
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"status": "success",
	})
}
