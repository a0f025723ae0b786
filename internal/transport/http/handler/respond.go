package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/drypzz/api-StockSystem/internal/domain"
	"github.com/drypzz/api-StockSystem/pkg/mylogger"
)

// respondError maps business errors onto status codes in one place.
// Anything without a known kind becomes an opaque 500; the detail stays
// in the server log.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	kind, ok := domain.KindOf(err)
	if !ok {
		mylogger.Error(
			c.UserContext(),
			logger,
			"request failed with unexpected error",
			zap.String("path", c.Path()),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	status := fiber.StatusInternalServerError
	switch kind {
	case domain.KindMissingValues:
		status = fiber.StatusBadRequest
	case domain.KindConflict:
		status = fiber.StatusConflict
	case domain.KindNotFound:
		status = fiber.StatusNotFound
	case domain.KindUnauthorized:
		status = fiber.StatusUnauthorized
	}

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func userIDFromLocals(c *fiber.Ctx) (int64, bool) {
	userID, ok := c.Locals("userId").(int64)
	return userID, ok
}
