package service

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/drypzz/api-StockSystem/internal/domain"
	"github.com/drypzz/api-StockSystem/internal/gateway/mercadopago"
)

func (s *IntegrationTestSuite) createPaidableOrder(userID int64) string {
	categoryID := s.seedCategory("books")
	productID := s.seedProduct("Go in Action", "10.00", 5, categoryID)

	order, err := s.Orders.CreateOrder(s.Ctx, userID, []CreateOrderItem{
		{ProductID: productID, Quantity: 2},
	})
	s.Require().NoError(err)

	return order.PublicID
}

func (s *IntegrationTestSuite) TestGetOrCreatePaymentIsIdempotent() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	publicID := s.createPaidableOrder(userID)

	first, err := s.Payments.GetOrCreatePayment(s.Ctx, userID, publicID)
	s.Require().NoError(err)
	s.Require().NotEmpty(first.PaymentID)
	s.Require().NotEmpty(first.QrCode)
	s.Require().True(first.Amount.Equal(decimal.RequireFromString("20.00")))

	second, err := s.Payments.GetOrCreatePayment(s.Ctx, userID, publicID)
	s.Require().NoError(err)

	// The live intent is reused instead of opening a second charge.
	s.Require().Equal(first.PaymentID, second.PaymentID)
	s.Require().Equal(first.QrCode, second.QrCode)
	s.Require().Equal(1, s.Gateway.createCount())
}

func (s *IntegrationTestSuite) TestGetOrCreatePaymentExpiredIntentOpensNewCharge() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	publicID := s.createPaidableOrder(userID)

	first, err := s.Payments.GetOrCreatePayment(s.Ctx, userID, publicID)
	s.Require().NoError(err)

	s.expirePayment(publicID)

	second, err := s.Payments.GetOrCreatePayment(s.Ctx, userID, publicID)
	s.Require().NoError(err)
	s.Require().NotEqual(first.PaymentID, second.PaymentID)
	s.Require().Equal(2, s.Gateway.createCount())
}

func (s *IntegrationTestSuite) TestGetOrCreatePaymentOwnerOnly() {
	owner := s.seedUser("Ana Silva", "ana@example.com")
	stranger := s.seedUser("Bob Jones", "bob@example.com")
	publicID := s.createPaidableOrder(owner)

	_, err := s.Payments.GetOrCreatePayment(s.Ctx, stranger, publicID)
	s.Require().Error(err)

	kind, ok := domain.KindOf(err)
	s.Require().True(ok)
	s.Require().Equal(domain.KindUnauthorized, kind)
}

func (s *IntegrationTestSuite) TestGetOrCreatePaymentAlreadyPaid() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	publicID := s.createPaidableOrder(userID)

	payment, err := s.Payments.GetOrCreatePayment(s.Ctx, userID, publicID)
	s.Require().NoError(err)

	s.Gateway.setStatus(payment.PaymentID, mercadopago.StatusApproved)
	s.Require().NoError(s.Payments.HandleWebhookNotification(s.Ctx, payment.PaymentID))

	_, err = s.Payments.GetOrCreatePayment(s.Ctx, userID, publicID)
	s.Require().Error(err)

	kind, ok := domain.KindOf(err)
	s.Require().True(ok)
	s.Require().Equal(domain.KindConflict, kind)
}

func (s *IntegrationTestSuite) TestWebhookApprovesAndSendsEmailOnce() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	publicID := s.createPaidableOrder(userID)

	payment, err := s.Payments.GetOrCreatePayment(s.Ctx, userID, publicID)
	s.Require().NoError(err)

	s.Gateway.setStatus(payment.PaymentID, mercadopago.StatusApproved)

	s.Require().NoError(s.Payments.HandleWebhookNotification(s.Ctx, payment.PaymentID))
	s.Require().Equal("approved", s.orderStatus(publicID))
	s.Require().Equal(1, s.Sender.sentCount())

	sent := s.Sender.lastSent()
	s.Require().Equal("ana@example.com", sent.To)
	s.Require().True(sent.Total.Equal(decimal.RequireFromString("20.00")))

	// Re-delivery of the same webhook is a no-op.
	s.Require().NoError(s.Payments.HandleWebhookNotification(s.Ctx, payment.PaymentID))
	s.Require().Equal("approved", s.orderStatus(publicID))
	s.Require().Equal(1, s.Sender.sentCount())
}

func (s *IntegrationTestSuite) TestConcurrentWebhooksSendSingleEmail() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	publicID := s.createPaidableOrder(userID)

	payment, err := s.Payments.GetOrCreatePayment(s.Ctx, userID, publicID)
	s.Require().NoError(err)

	s.Gateway.setStatus(payment.PaymentID, mercadopago.StatusApproved)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Payments.HandleWebhookNotification(s.Ctx, payment.PaymentID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		s.Require().NoError(err)
	}

	s.Require().Equal("approved", s.orderStatus(publicID))
	s.Require().Equal(1, s.Sender.sentCount())
}

func (s *IntegrationTestSuite) TestWebhookIgnoresNonApprovedAndUnknownPayments() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	publicID := s.createPaidableOrder(userID)

	payment, err := s.Payments.GetOrCreatePayment(s.Ctx, userID, publicID)
	s.Require().NoError(err)

	// Still pending on the gateway: nothing moves.
	s.Require().NoError(s.Payments.HandleWebhookNotification(s.Ctx, payment.PaymentID))
	s.Require().Equal("pending", s.orderStatus(publicID))
	s.Require().Equal(0, s.Sender.sentCount())

	// Unknown on the gateway: absorbed.
	s.Require().NoError(s.Payments.HandleWebhookNotification(s.Ctx, "does-not-exist"))
}

func (s *IntegrationTestSuite) TestEmailFailureDoesNotBlockApproval() {
	userID := s.seedUser("Ana Silva", "ana@example.com")
	publicID := s.createPaidableOrder(userID)

	payment, err := s.Payments.GetOrCreatePayment(s.Ctx, userID, publicID)
	s.Require().NoError(err)

	s.Gateway.setStatus(payment.PaymentID, mercadopago.StatusApproved)
	s.Sender.sendErr = errAlwaysFails

	s.Require().NoError(s.Payments.HandleWebhookNotification(s.Ctx, payment.PaymentID))
	s.Require().Equal("approved", s.orderStatus(publicID))

	// The flag was claimed before the failed send: a later webhook must not
	// retry the email.
	s.Sender.sendErr = nil
	s.Require().NoError(s.Payments.HandleWebhookNotification(s.Ctx, payment.PaymentID))
	s.Require().Equal(0, s.Sender.sentCount())
}
