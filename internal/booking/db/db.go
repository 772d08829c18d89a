package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"resort-booking/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// ---------------- BOOKINGS ----------------

// CreateBooking → insert a new pending booking
func (d *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	_, err := d.Bun.NewInsert().Model(b).Exec(ctx)
	return err
}

// GetBookingByID → fetch one booking, models.ErrNotFound if missing
func (d *DB) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := d.Bun.NewSelect().
		Model(&b).
		Where("booking_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBookingsByUser → caller's bookings, newest first, optionally one vertical
func (d *DB) ListBookingsByUser(ctx context.Context, userID string, vertical models.Vertical) ([]models.Booking, error) {
	bookings := []models.Booking{}
	q := d.Bun.NewSelect().
		Model(&bookings).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if vertical != "" {
		q = q.Where("vertical = ?", vertical)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListRefundRequests → bookings with a refund request, oldest request first
func (d *DB) ListRefundRequests(ctx context.Context, status models.RefundStatus, vertical models.Vertical) ([]models.Booking, error) {
	bookings := []models.Booking{}
	q := d.Bun.NewSelect().
		Model(&bookings).
		Where("refund_requested = ?", true).
		Order("refund_requested_at ASC")
	if status != models.RefundNone {
		q = q.Where("refund_status = ?", status)
	}
	if vertical != "" {
		q = q.Where("vertical = ?", vertical)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return bookings, nil
}

// MarkPaymentSuccess → pending to success. models.ErrInvalidTransition if the booking was not pending.
func (d *DB) MarkPaymentSuccess(ctx context.Context, id, paymentID, signature string, paidAt time.Time) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("payment_status = ?", models.StatusSuccess).
		Set("razorpay_payment_id = ?", paymentID).
		Set("razorpay_signature = ?", signature).
		Set("paid_at = ?", paidAt).
		Set("failure_reason = ?", "").
		Set("updated_at = ?", paidAt).
		Where("booking_id = ?", id).
		Where("payment_status = ?", models.StatusPending).
		Exec(ctx)
	return expectOneRow(res, err, id)
}

// MarkPaymentFailed → pending to failed with a reason
func (d *DB) MarkPaymentFailed(ctx context.Context, id, paymentID, reason string, at time.Time) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("payment_status = ?", models.StatusFailed).
		Set("razorpay_payment_id = ?", paymentID).
		Set("failure_reason = ?", reason).
		Set("updated_at = ?", at).
		Where("booking_id = ?", id).
		Where("payment_status = ?", models.StatusPending).
		Exec(ctx)
	return expectOneRow(res, err, id)
}

// RequestRefund → open a refund on a paid booking that has none yet
func (d *DB) RequestRefund(ctx context.Context, id string, r models.Refund) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("refund_requested = ?", true).
		Set("refund_status = ?", models.RefundPending).
		Set("refund_approved = ?", false).
		Set("refund_requested_at = ?", r.RequestedAt).
		Set("refund_percentage = ?", r.Percentage).
		Set("refund_amount = ?", r.Amount).
		Set("refund_reason = ?", r.Reason).
		Set("updated_at = ?", r.RequestedAt).
		Where("booking_id = ?", id).
		Where("payment_status = ?", models.StatusSuccess).
		Where("refund_requested = ?", false).
		Exec(ctx)
	return expectOneRow(res, err, id)
}

// DecideRefund → pending refund to approved or rejected
func (d *DB) DecideRefund(ctx context.Context, id string, status models.RefundStatus, gatewayRefundID string, at time.Time) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("refund_status = ?", status).
		Set("refund_approved = ?", status == models.RefundApproved).
		Set("refund_gateway_refund_id = ?", gatewayRefundID).
		Set("refund_decided_at = ?", at).
		Set("updated_at = ?", at).
		Where("booking_id = ?", id).
		Where("refund_status = ?", models.RefundPending).
		Exec(ctx)
	return expectOneRow(res, err, id)
}

func expectOneRow(res sql.Result, err error, id string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("booking %s: %w", id, models.ErrInvalidTransition)
	}
	return nil
}
