package service

import (
	"github.com/drypzz/api-StockSystem/internal/gateway/mercadopago"
)

func (s *IntegrationTestSuite) TestSweeperLeavesFreshOrdersAlone() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	publicID := s.createPaidableOrder(userID)

	_, err := s.Payments.GetOrCreatePayment(s.Ctx, userID, publicID)
	s.Require().NoError(err)

	s.Require().NoError(s.Sweeper.Sweep(s.Ctx))
	s.Require().Equal("pending", s.orderStatus(publicID))
}

func (s *IntegrationTestSuite) TestSweeperExpiresOverdueOrders() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	categoryID := s.seedCategory("books")
	productID := s.seedProduct("Go in Action", "10.00", 5, categoryID)

	order, err := s.Orders.CreateOrder(s.Ctx, userID, []CreateOrderItem{
		{ProductID: productID, Quantity: 2},
	})
	s.Require().NoError(err)

	payment, err := s.Payments.GetOrCreatePayment(s.Ctx, userID, order.PublicID)
	s.Require().NoError(err)
	s.Require().EqualValues(3, s.stockOf(productID))

	s.expirePayment(order.PublicID)

	s.Require().NoError(s.Sweeper.Sweep(s.Ctx))

	s.Require().Equal("cancelled", s.orderStatus(order.PublicID))
	s.Require().EqualValues(5, s.stockOf(productID))
	s.Require().Contains(s.Gateway.cancelledIDs(), payment.PaymentID)

	// Second pass finds nothing: the stock is released exactly once.
	s.Require().NoError(s.Sweeper.Sweep(s.Ctx))
	s.Require().EqualValues(5, s.stockOf(productID))
}

func (s *IntegrationTestSuite) TestSweeperSkipsApprovedOrders() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	categoryID := s.seedCategory("books")
	productID := s.seedProduct("Go in Action", "10.00", 5, categoryID)

	order, err := s.Orders.CreateOrder(s.Ctx, userID, []CreateOrderItem{
		{ProductID: productID, Quantity: 2},
	})
	s.Require().NoError(err)

	payment, err := s.Payments.GetOrCreatePayment(s.Ctx, userID, order.PublicID)
	s.Require().NoError(err)

	// The webhook wins before the sweeper runs.
	s.Gateway.setStatus(payment.PaymentID, mercadopago.StatusApproved)
	s.Require().NoError(s.Payments.HandleWebhookNotification(s.Ctx, payment.PaymentID))

	s.expirePayment(order.PublicID)
	s.Require().NoError(s.Sweeper.Sweep(s.Ctx))

	s.Require().Equal("approved", s.orderStatus(order.PublicID))
	s.Require().EqualValues(3, s.stockOf(productID))
}

func (s *IntegrationTestSuite) TestSweeperSurvivesGatewayCancelFailure() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	categoryID := s.seedCategory("books")
	productID := s.seedProduct("Go in Action", "10.00", 5, categoryID)

	order, err := s.Orders.CreateOrder(s.Ctx, userID, []CreateOrderItem{
		{ProductID: productID, Quantity: 1},
	})
	s.Require().NoError(err)

	_, err = s.Payments.GetOrCreatePayment(s.Ctx, userID, order.PublicID)
	s.Require().NoError(err)

	s.Gateway.cancelErr = errAlwaysFails
	s.expirePayment(order.PublicID)

	s.Require().NoError(s.Sweeper.Sweep(s.Ctx))

	// Local expiry still goes through when the gateway is unreachable.
	s.Require().Equal("cancelled", s.orderStatus(order.PublicID))
	s.Require().EqualValues(5, s.stockOf(productID))
}
