package models

// VerticalSummary aggregates bookings of one vertical for the admin dashboard.
type VerticalSummary struct {
	Vertical              Vertical       `json:"vertical"`
	BookingsByStatus      map[string]int `json:"bookings_by_status"`
	Revenue               float64        `json:"revenue"`
	RefundsByStatus       map[string]int `json:"refunds_by_status"`
	RefundedAmount        float64        `json:"refunded_amount"`
	PendingRefundRequests int            `json:"pending_refund_requests"`
}
