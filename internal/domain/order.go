package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// pending is the only non-terminal state.
var validNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentStatusPending: {
		PaymentStatusApproved:  true,
		PaymentStatusCancelled: true,
		PaymentStatusFailed:    true,
	},
	PaymentStatusApproved:  {},
	PaymentStatusCancelled: {},
	PaymentStatusFailed:    {},
}

func CanTransition(from, to PaymentStatus) bool {
	return validNext[from][to]
}

type Order struct {
	ID                    int64         `db:"id"`
	PublicID              string        `db:"public_id"`
	UserID                int64         `db:"user_id"`
	PaymentStatus         PaymentStatus `db:"payment_status"`
	PaymentID             *string       `db:"payment_id"`
	PaymentQrCode         *string       `db:"payment_qr_code"`
	PaymentQrCodeBase64   *string       `db:"payment_qr_code_base64"`
	PaymentExpiresAt      *time.Time    `db:"payment_expires_at"`
	ConfirmationEmailSent bool          `db:"confirmation_email_sent"`
	Lines                 []OrderLine   `db:"-"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// OrderLine snapshots product price and quantity at order time. It never
// tracks the live product row.
type OrderLine struct {
	ID        int64           `db:"id"`
	OrderID   int64           `db:"order_id"`
	ProductID int64           `db:"product_id"`
	Name      string          `db:"name"`
	UnitPrice decimal.Decimal `db:"unit_price"`
	Quantity  int32           `db:"quantity"`
}

func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.Lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt32(line.Quantity)))
	}
	return total
}

// HasLivePaymentIntent reports whether the cached gateway charge is still
// payable, meaning repeated pay requests must not create a new one.
func (o *Order) HasLivePaymentIntent(now time.Time) bool {
	return o.PaymentID != nil && o.PaymentExpiresAt != nil && now.Before(*o.PaymentExpiresAt)
}
