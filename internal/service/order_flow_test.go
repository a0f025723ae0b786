package service

import (
	"github.com/shopspring/decimal"

	"github.com/drypzz/api-StockSystem/internal/domain"
)

func (s *IntegrationTestSuite) TestCreateOrderReservesStock() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	categoryID := s.seedCategory("books")
	productID := s.seedProduct("Go in Action", "10.00", 5, categoryID)

	order, err := s.Orders.CreateOrder(s.Ctx, userID, []CreateOrderItem{
		{ProductID: productID, Quantity: 2},
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(order.PublicID)
	s.Require().Equal(domain.PaymentStatusPending, order.PaymentStatus)
	s.Require().True(order.Total().Equal(decimal.RequireFromString("20.00")))

	s.Require().EqualValues(3, s.stockOf(productID))
}

func (s *IntegrationTestSuite) TestCreateOrderInsufficientStockIsAtomic() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	categoryID := s.seedCategory("books")
	plentiful := s.seedProduct("Plentiful", "10.00", 100, categoryID)
	scarce := s.seedProduct("Scarce", "5.00", 1, categoryID)

	_, err := s.Orders.CreateOrder(s.Ctx, userID, []CreateOrderItem{
		{ProductID: plentiful, Quantity: 3},
		{ProductID: scarce, Quantity: 2},
	})
	s.Require().Error(err)

	kind, ok := domain.KindOf(err)
	s.Require().True(ok)
	s.Require().Equal(domain.KindConflict, kind)

	// Neither product lost stock.
	s.Require().EqualValues(100, s.stockOf(plentiful))
	s.Require().EqualValues(1, s.stockOf(scarce))
}

func (s *IntegrationTestSuite) TestCreateOrderUnknownProduct() {
	userID := s.seedUser("Ana Silva", "ana@example.com")

	_, err := s.Orders.CreateOrder(s.Ctx, userID, []CreateOrderItem{
		{ProductID: 424242, Quantity: 1},
	})
	s.Require().Error(err)

	kind, ok := domain.KindOf(err)
	s.Require().True(ok)
	s.Require().Equal(domain.KindNotFound, kind)
}

func (s *IntegrationTestSuite) TestCreateOrderRejectsDuplicateItems() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	categoryID := s.seedCategory("books")
	productID := s.seedProduct("Go in Action", "10.00", 5, categoryID)

	_, err := s.Orders.CreateOrder(s.Ctx, userID, []CreateOrderItem{
		{ProductID: productID, Quantity: 1},
		{ProductID: productID, Quantity: 1},
	})
	s.Require().Error(err)

	kind, ok := domain.KindOf(err)
	s.Require().True(ok)
	s.Require().Equal(domain.KindConflict, kind)
}

func (s *IntegrationTestSuite) TestGetOrderOwnerOnly() {
	owner := s.seedUser("Ana Silva", "ana@example.com")
	stranger := s.seedUser("Bob Jones", "bob@example.com")
	categoryID := s.seedCategory("books")
	productID := s.seedProduct("Go in Action", "10.00", 5, categoryID)

	order, err := s.Orders.CreateOrder(s.Ctx, owner, []CreateOrderItem{
		{ProductID: productID, Quantity: 1},
	})
	s.Require().NoError(err)

	_, err = s.Orders.GetOrder(s.Ctx, stranger, order.PublicID)
	s.Require().Error(err)

	kind, ok := domain.KindOf(err)
	s.Require().True(ok)
	s.Require().Equal(domain.KindUnauthorized, kind)

	got, err := s.Orders.GetOrder(s.Ctx, owner, order.PublicID)
	s.Require().NoError(err)
	s.Require().Equal(order.PublicID, got.PublicID)
	s.Require().Len(got.Lines, 1)
}

func (s *IntegrationTestSuite) TestCancelPendingOrderReleasesStock() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	categoryID := s.seedCategory("books")
	productID := s.seedProduct("Go in Action", "10.00", 5, categoryID)

	order, err := s.Orders.CreateOrder(s.Ctx, userID, []CreateOrderItem{
		{ProductID: productID, Quantity: 2},
	})
	s.Require().NoError(err)
	s.Require().EqualValues(3, s.stockOf(productID))

	s.Require().NoError(s.Orders.CancelOrder(s.Ctx, userID, order.PublicID))

	s.Require().EqualValues(5, s.stockOf(productID))

	// Cancelled pre-payment orders are removed entirely.
	_, err = s.Orders.GetOrder(s.Ctx, userID, order.PublicID)
	s.Require().Error(err)

	kind, ok := domain.KindOf(err)
	s.Require().True(ok)
	s.Require().Equal(domain.KindNotFound, kind)
}

func (s *IntegrationTestSuite) TestCancelAlsoCancelsGatewayPayment() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	categoryID := s.seedCategory("books")
	productID := s.seedProduct("Go in Action", "10.00", 5, categoryID)

	order, err := s.Orders.CreateOrder(s.Ctx, userID, []CreateOrderItem{
		{ProductID: productID, Quantity: 1},
	})
	s.Require().NoError(err)

	payment, err := s.Payments.GetOrCreatePayment(s.Ctx, userID, order.PublicID)
	s.Require().NoError(err)

	s.Require().NoError(s.Orders.CancelOrder(s.Ctx, userID, order.PublicID))
	s.Require().Contains(s.Gateway.cancelledIDs(), payment.PaymentID)
}

func (s *IntegrationTestSuite) TestCancelApprovedOrderConflicts() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	categoryID := s.seedCategory("books")
	productID := s.seedProduct("Go in Action", "10.00", 5, categoryID)

	order, err := s.Orders.CreateOrder(s.Ctx, userID, []CreateOrderItem{
		{ProductID: productID, Quantity: 2},
	})
	s.Require().NoError(err)

	payment, err := s.Payments.GetOrCreatePayment(s.Ctx, userID, order.PublicID)
	s.Require().NoError(err)

	s.Gateway.setStatus(payment.PaymentID, "approved")
	s.Require().NoError(s.Payments.HandleWebhookNotification(s.Ctx, payment.PaymentID))

	err = s.Orders.CancelOrder(s.Ctx, userID, order.PublicID)
	s.Require().Error(err)

	kind, ok := domain.KindOf(err)
	s.Require().True(ok)
	s.Require().Equal(domain.KindConflict, kind)

	// Approved orders keep their stock reserved.
	s.Require().EqualValues(3, s.stockOf(productID))
}
