package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/drypzz/api-StockSystem/internal/auth"
	"github.com/drypzz/api-StockSystem/internal/transport/http/handler"
	"github.com/drypzz/api-StockSystem/internal/transport/http/middleware"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Order    *handler.OrderHandler
	Payment  *handler.PaymentHandler
	Product  *handler.ProductHandler
	Category *handler.CategoryHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers, tokens *auth.TokenManager) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.Post("/register", h.Auth.Register)
	authGroup.Post("/login", h.Auth.Login)

	// The gateway calls back here without credentials.
	v1.Post("/payments/webhook", h.Payment.Webhook)

	api := v1.Group("", middleware.NewAuthMiddleware(tokens))
	api.Get("/me", h.Auth.GetMe)

	product := api.Group("/products")
	product.Post("", h.Product.Create)
	product.Get("", h.Product.List)
	product.Get("/:id", h.Product.FindByID)
	product.Patch("/:id", h.Product.Update)
	product.Delete("/:id", h.Product.Delete)

	category := api.Group("/categories")
	category.Post("", h.Category.Create)
	category.Get("", h.Category.List)
	category.Get("/:id", h.Category.FindByID)
	category.Patch("/:id", h.Category.Update)
	category.Delete("/:id", h.Category.Delete)

	order := api.Group("/orders")
	order.Post("", h.Order.Create)
	order.Get("", h.Order.List)
	order.Get("/:publicId", h.Order.Get)
	order.Delete("/:publicId", h.Order.Cancel)
	order.Post("/:publicId/payment", h.Payment.CreatePayment)
}
