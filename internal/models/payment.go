package models

import (
	"time"
)

// VerifyPaymentRequest is the checkout callback payload posted by the browser.
type VerifyPaymentRequest struct {
	BookingID         string `json:"booking_id"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// GatewayOrder is an order created at the payment gateway. Amount is in minor units (paise).
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type CreateBookingRequest struct {
	ItemID    string `json:"item_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	Quantity  int    `json:"quantity"`
	Guests    int    `json:"guests"`
	GuestName string `json:"guest_name"`
	Phone     string `json:"phone"`
}

// CheckoutResponse carries what the browser needs to open the gateway checkout.
type CheckoutResponse struct {
	Booking  *Booking `json:"booking"`
	OrderID  string   `json:"razorpay_order_id"`
	KeyID    string   `json:"key_id"`
	Amount   int64    `json:"amount"`
	Currency string   `json:"currency"`
}

type RefundRequest struct {
	Reason string `json:"reason"`
}

type RefundDecisionRequest struct {
	Note string `json:"note,omitempty"`
}

type RefundQuote struct {
	BookingID     string    `json:"booking_id"`
	ReferenceDate time.Time `json:"reference_date"`
	DaysLeft      int       `json:"days_left"`
	Percentage    int       `json:"percentage"`
	Amount        float64   `json:"amount"`
	TotalAmount   float64   `json:"total_amount"`
}

const (
	EventPaymentSuccess = "payment.success"
	EventPaymentFailed  = "payment.failed"
	EventBookingCreated = "booking.created"
	EventRefundRequest  = "refund.requested"
	EventRefundApproved = "refund.approved"
	EventRefundRejected = "refund.rejected"
)

// BookingEvent is published to Kafka and streamed to admin SSE subscribers.
type BookingEvent struct {
	Type      string    `json:"type"`
	BookingID string    `json:"booking_id"`
	Vertical  Vertical  `json:"vertical"`
	Booking   *Booking  `json:"booking"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBookingEvent(eventType string, b *Booking, now time.Time) BookingEvent {
	return BookingEvent{
		Type:      eventType,
		BookingID: b.BookingID,
		Vertical:  b.Vertical,
		Booking:   b,
		Timestamp: now,
	}
}
