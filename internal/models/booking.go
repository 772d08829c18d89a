package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Vertical string

const (
	VerticalStay      Vertical = "stay"
	VerticalAdventure Vertical = "adventure"
	VerticalEvent     Vertical = "event"
)

func (v Vertical) Valid() bool {
	switch v {
	case VerticalStay, VerticalAdventure, VerticalEvent:
		return true
	}
	return false
}

type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusSuccess PaymentStatus = "success"
	StatusFailed  PaymentStatus = "failed"
)

type RefundStatus string

const (
	RefundNone     RefundStatus = ""
	RefundPending  RefundStatus = "pending"
	RefundApproved RefundStatus = "approved"
	RefundRejected RefundStatus = "rejected"
)

type LineItem struct {
	Label     string  `json:"label"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Amount    float64 `json:"amount"`
}

// Refund is stored inline on the booking row as refund_* columns.
type Refund struct {
	Requested       bool         `bun:"requested,notnull,default:false" json:"requested"`
	Status          RefundStatus `bun:"status,notnull,default:''" json:"status"`
	Approved        bool         `bun:"approved,notnull,default:false" json:"approved"`
	RequestedAt     time.Time    `bun:"requested_at,nullzero" json:"requested_at,omitempty"`
	Percentage      int          `bun:"percentage,notnull,default:0" json:"percentage"`
	Amount          float64      `bun:"amount,notnull,default:0" json:"amount"`
	Reason          string       `bun:"reason,notnull,default:''" json:"reason,omitempty"`
	GatewayRefundID string       `bun:"gateway_refund_id,notnull,default:''" json:"gateway_refund_id,omitempty"`
	DecidedAt       time.Time    `bun:"decided_at,nullzero" json:"decided_at,omitempty"`
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	BookingID string   `bun:"booking_id,pk" json:"booking_id"`
	Vertical  Vertical `bun:"vertical,notnull" json:"vertical"`
	ItemID    string   `bun:"item_id,notnull" json:"item_id"`
	ItemName  string   `bun:"item_name,notnull" json:"item_name"`

	UserID    string `bun:"user_id,notnull" json:"user_id"`
	UserEmail string `bun:"user_email,notnull" json:"user_email"`
	GuestName string `bun:"guest_name,notnull,default:''" json:"guest_name"`
	Phone     string `bun:"phone,notnull,default:''" json:"phone,omitempty"`

	StartDate time.Time `bun:"start_date,notnull" json:"start_date"`
	EndDate   time.Time `bun:"end_date,nullzero" json:"end_date,omitempty"`
	Quantity  int       `bun:"quantity,notnull" json:"quantity"`
	Guests    int       `bun:"guests,notnull" json:"guests"`

	LineItems   []LineItem `bun:"line_items,type:jsonb" json:"line_items"`
	TotalAmount float64    `bun:"total_amount,notnull" json:"total_amount"`
	Currency    string     `bun:"currency,notnull" json:"currency"`

	PaymentStatus     PaymentStatus `bun:"payment_status,notnull" json:"payment_status"`
	FailureReason     string        `bun:"failure_reason,notnull,default:''" json:"failure_reason,omitempty"`
	RazorpayOrderID   string        `bun:"razorpay_order_id,notnull,default:''" json:"razorpay_order_id"`
	RazorpayPaymentID string        `bun:"razorpay_payment_id,notnull,default:''" json:"razorpay_payment_id,omitempty"`
	RazorpaySignature string        `bun:"razorpay_signature,notnull,default:''" json:"-"`
	PaidAt            time.Time     `bun:"paid_at,nullzero" json:"paid_at,omitempty"`

	Refund Refund `bun:"embed:refund_" json:"refund"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// IsOwnedBy reports whether userID placed the booking.
func (b *Booking) IsOwnedBy(userID string) bool {
	return userID != "" && b.UserID == userID
}

// Nights is the number of nights of a stay booking, zero for other verticals.
func (b *Booking) Nights() int {
	if b.Vertical != VerticalStay || b.EndDate.IsZero() {
		return 0
	}
	return int(b.EndDate.Sub(b.StartDate).Hours()+23) / 24
}
