package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"resort-booking/internal/logger"
	"resort-booking/internal/models"
	"resort-booking/internal/refund"
	"resort-booking/internal/utils"
)

type DBLayer interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	ListBookingsByUser(ctx context.Context, userID string, vertical models.Vertical) ([]models.Booking, error)
	ListRefundRequests(ctx context.Context, status models.RefundStatus, vertical models.Vertical) ([]models.Booking, error)
	MarkPaymentSuccess(ctx context.Context, id, paymentID, signature string, paidAt time.Time) error
	MarkPaymentFailed(ctx context.Context, id, paymentID, reason string, at time.Time) error
	RequestRefund(ctx context.Context, id string, r models.Refund) error
	DecideRefund(ctx context.Context, id string, status models.RefundStatus, gatewayRefundID string, at time.Time) error
}

type CatalogReader interface {
	GetItem(ctx context.Context, vertical models.Vertical, id string) (models.CatalogItem, error)
}

type Gateway interface {
	KeyID() string
	Verify(orderID, paymentID, signature string) bool
	CreateOrder(ctx context.Context, amount float64, receipt string, notes map[string]string) (*models.GatewayOrder, error)
	Refund(ctx context.Context, paymentID string, amount float64, notes map[string]string) (string, error)
}

type PaymentLock interface {
	Acquire(ctx context.Context, orderID, token string) (bool, error)
	Release(ctx context.Context, orderID, token string) error
}

type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, evt models.BookingEvent) error
}

type Notifier interface {
	SendBookingConfirmation(ctx context.Context, b *models.Booking) error
}

type Feed interface {
	Emit(evt models.BookingEvent)
}

// PaymentHolds bounds how long a booking may stay pending.
type PaymentHolds interface {
	Hold(ctx context.Context, bookingID string) error
	Release(ctx context.Context, bookingID string) error
}

type BookingService struct {
	DB       DBLayer
	Catalog  CatalogReader
	Gateway  Gateway
	Lock     PaymentLock
	Events   EventPublisher
	Notifier Notifier
	Feed     Feed
	Holds    PaymentHolds
	Logger   *logger.Logger

	Currency    string
	MailTimeout time.Duration
	Now         func() time.Time
}

func NewBookingService(db DBLayer, catalog CatalogReader, gateway Gateway, lock PaymentLock,
	events EventPublisher, notifier Notifier, feed Feed, log *logger.Logger) *BookingService {
	return &BookingService{
		DB:          db,
		Catalog:     catalog,
		Gateway:     gateway,
		Lock:        lock,
		Events:      events,
		Notifier:    notifier,
		Feed:        feed,
		Logger:      log,
		Currency:    "INR",
		MailTimeout: 10 * time.Second,
		Now:         time.Now,
	}
}

func (s *BookingService) now() time.Time {
	return s.Now().UTC()
}

// ---------------- CHECKOUT ----------------

// CreateBooking prices the request against the catalog, opens a gateway order
// and stores the booking as pending.
func (s *BookingService) CreateBooking(ctx context.Context, caller *models.Claims, vertical models.Vertical, req models.CreateBookingRequest) (*models.CheckoutResponse, error) {
	if caller == nil || caller.ID == "" {
		return nil, models.ErrUnauthorized
	}
	if !vertical.Valid() {
		return nil, fmt.Errorf("%w: unknown vertical %q", models.ErrValidation, vertical)
	}
	if strings.TrimSpace(req.ItemID) == "" {
		return nil, fmt.Errorf("%w: item_id is required", models.ErrValidation)
	}

	item, err := s.Catalog.GetItem(ctx, vertical, req.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return nil, fmt.Errorf("%w: %s is not available for booking", models.ErrValidation, item.Name)
	}

	b, err := s.itemize(vertical, item, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	b.BookingID = utils.GenerateID()
	b.UserID = caller.ID
	b.UserEmail = caller.Email
	b.GuestName = strings.TrimSpace(req.GuestName)
	b.Phone = strings.TrimSpace(req.Phone)
	b.Currency = s.Currency
	b.PaymentStatus = models.StatusPending
	b.CreatedAt = now
	b.UpdatedAt = now

	order, err := s.Gateway.CreateOrder(ctx, b.TotalAmount, utils.GenerateReceipt(b.BookingID), map[string]string{
		"booking_id": b.BookingID,
		"vertical":   string(vertical),
		"item_id":    item.ID,
	})
	if err != nil {
		return nil, err
	}
	b.RazorpayOrderID = order.ID

	if err := s.DB.CreateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("store booking: %w", err)
	}
	s.Logger.LogBooking("CREATE", b.BookingID, fmt.Sprintf("%s %s for %s, %.2f %s, order %s",
		vertical, item.Name, caller.Email, b.TotalAmount, b.Currency, order.ID))

	if s.Holds != nil {
		if err := s.Holds.Hold(ctx, b.BookingID); err != nil {
			s.Logger.Warn("REDIS", fmt.Sprintf("Booking %s has no payment window: %v", b.BookingID, err))
		}
	}
	s.publish(ctx, models.EventBookingCreated, b)

	return &models.CheckoutResponse{
		Booking:  b,
		OrderID:  order.ID,
		KeyID:    s.Gateway.KeyID(),
		Amount:   order.Amount,
		Currency: order.Currency,
	}, nil
}

// itemize validates dates and quantities for the vertical and builds the line items.
func (s *BookingService) itemize(vertical models.Vertical, item models.CatalogItem, req models.CreateBookingRequest) (*models.Booking, error) {
	today := utils.StartOfDay(s.now())
	b := &models.Booking{
		Vertical: vertical,
		ItemID:   item.ID,
		ItemName: item.Name,
		Quantity: req.Quantity,
		Guests:   req.Guests,
	}

	switch vertical {
	case models.VerticalStay:
		start, err := utils.ParseDate(req.StartDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: start_date: %v", models.ErrValidation, err)
		}
		end, err := utils.ParseDate(req.EndDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: end_date: %v", models.ErrValidation, err)
		}
		start, end = utils.StartOfDay(start), utils.StartOfDay(end)
		if start.Before(today) {
			return nil, fmt.Errorf("%w: check-in cannot be in the past", models.ErrValidation)
		}
		if !end.After(start) {
			return nil, fmt.Errorf("%w: check-out must be after check-in", models.ErrValidation)
		}
		if b.Quantity <= 0 {
			b.Quantity = 1
		}
		if b.Guests <= 0 {
			b.Guests = 1
		}
		if b.Quantity > item.Capacity {
			return nil, fmt.Errorf("%w: only %d rooms available", models.ErrValidation, item.Capacity)
		}
		if item.MaxGuests > 0 && b.Guests > item.MaxGuests*b.Quantity {
			return nil, fmt.Errorf("%w: at most %d guests per room", models.ErrValidation, item.MaxGuests)
		}
		b.StartDate, b.EndDate = start, end
		nights := b.Nights()
		b.LineItems = []models.LineItem{lineItem("Room night", item.Price, nights*b.Quantity)}

	case models.VerticalAdventure:
		start, err := utils.ParseDate(req.StartDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: start_date: %v", models.ErrValidation, err)
		}
		if start.Before(today) {
			return nil, fmt.Errorf("%w: adventure date cannot be in the past", models.ErrValidation)
		}
		if b.Quantity <= 0 {
			b.Quantity = b.Guests
		}
		if b.Quantity <= 0 {
			b.Quantity = 1
		}
		if b.Quantity > item.Capacity {
			return nil, fmt.Errorf("%w: at most %d persons per slot", models.ErrValidation, item.Capacity)
		}
		b.Guests = b.Quantity
		b.StartDate = start
		b.LineItems = []models.LineItem{lineItem("Person", item.Price, b.Quantity)}

	case models.VerticalEvent:
		if !item.Date.After(s.now()) {
			return nil, fmt.Errorf("%w: %s has already taken place", models.ErrValidation, item.Name)
		}
		if b.Quantity <= 0 {
			b.Quantity = 1
		}
		if b.Quantity > item.Capacity {
			return nil, fmt.Errorf("%w: only %d tickets available", models.ErrValidation, item.Capacity)
		}
		b.Guests = b.Quantity
		b.StartDate = item.Date
		b.LineItems = []models.LineItem{lineItem("Ticket", item.Price, b.Quantity)}
	}

	var total float64
	for _, li := range b.LineItems {
		total += li.Amount
	}
	b.TotalAmount = round2(total)
	if b.TotalAmount <= 0 {
		return nil, fmt.Errorf("%w: booking total must be positive", models.ErrValidation)
	}
	return b, nil
}

func lineItem(label string, unit float64, qty int) models.LineItem {
	return models.LineItem{Label: label, UnitPrice: unit, Quantity: qty, Amount: round2(unit * float64(qty))}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ---------------- PAYMENT ----------------

// VerifyPayment checks the checkout callback signature and settles the booking.
// Replaying a callback for an already settled payment returns the booking unchanged.
func (s *BookingService) VerifyPayment(ctx context.Context, caller *models.Claims, vertical models.Vertical, req models.VerifyPaymentRequest) (*models.Booking, error) {
	if caller == nil || caller.ID == "" {
		return nil, models.ErrUnauthorized
	}
	if req.BookingID == "" || req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		return nil, fmt.Errorf("%w: booking_id, razorpay_order_id, razorpay_payment_id and razorpay_signature are required", models.ErrValidation)
	}

	token := utils.GenerateID()
	ok, err := s.Lock.Acquire(ctx, req.RazorpayOrderID, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrVerificationInProgress
	}
	defer func() {
		if err := s.Lock.Release(context.WithoutCancel(ctx), req.RazorpayOrderID, token); err != nil {
			s.Logger.Warn("PAYMENT", fmt.Sprintf("Failed to release lock for order %s: %v", req.RazorpayOrderID, err))
		}
	}()

	b, err := s.DB.GetBookingByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if b.Vertical != vertical {
		return nil, fmt.Errorf("%w: booking %s is not a %s booking", models.ErrValidation, b.BookingID, vertical)
	}
	if !b.IsOwnedBy(caller.ID) {
		s.Logger.LogSecurity("VERIFY_FOREIGN_BOOKING", fmt.Sprintf("user %s tried to verify booking %s", caller.ID, b.BookingID))
		return nil, models.ErrForbidden
	}
	if b.RazorpayOrderID != req.RazorpayOrderID {
		s.Logger.LogSecurity("ORDER_MISMATCH", fmt.Sprintf("booking %s has order %s, callback sent %s", b.BookingID, b.RazorpayOrderID, req.RazorpayOrderID))
		return nil, fmt.Errorf("%w: order id does not match booking", models.ErrValidation)
	}

	switch b.PaymentStatus {
	case models.StatusSuccess:
		if b.RazorpayPaymentID == req.RazorpayPaymentID {
			s.Logger.LogBooking("VERIFY", b.BookingID, "already verified, returning settled booking")
			return b, nil
		}
		return nil, fmt.Errorf("%w: booking %s is already paid", models.ErrInvalidTransition, b.BookingID)
	case models.StatusFailed:
		return nil, fmt.Errorf("%w: booking %s payment already failed", models.ErrInvalidTransition, b.BookingID)
	}

	now := s.now()
	if !s.Gateway.Verify(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		s.Logger.LogSecurity("SIGNATURE_MISMATCH", fmt.Sprintf("booking %s order %s payment %s", b.BookingID, req.RazorpayOrderID, req.RazorpayPaymentID))
		reason := "payment signature verification failed"
		if err := s.DB.MarkPaymentFailed(ctx, b.BookingID, req.RazorpayPaymentID, reason, now); err != nil {
			return nil, fmt.Errorf("mark booking %s failed: %w", b.BookingID, err)
		}
		b.PaymentStatus = models.StatusFailed
		b.FailureReason = reason
		b.RazorpayPaymentID = req.RazorpayPaymentID
		b.UpdatedAt = now
		s.releaseHold(ctx, b.BookingID)
		s.publish(ctx, models.EventPaymentFailed, b)
		return nil, models.ErrInvalidSignature
	}

	if err := s.DB.MarkPaymentSuccess(ctx, b.BookingID, req.RazorpayPaymentID, req.RazorpaySignature, now); err != nil {
		return nil, fmt.Errorf("mark booking %s paid: %w", b.BookingID, err)
	}
	b.PaymentStatus = models.StatusSuccess
	b.RazorpayPaymentID = req.RazorpayPaymentID
	b.RazorpaySignature = req.RazorpaySignature
	b.PaidAt = now
	b.UpdatedAt = now
	s.Logger.LogBooking("VERIFY", b.BookingID, fmt.Sprintf("payment %s verified", req.RazorpayPaymentID))
	s.releaseHold(ctx, b.BookingID)

	s.publish(ctx, models.EventPaymentSuccess, b)
	s.sendConfirmation(ctx, b)
	return b, nil
}

// ExpireBooking fails a booking whose payment window lapsed. Settled bookings and
// bookings with a verification in flight are left alone.
func (s *BookingService) ExpireBooking(ctx context.Context, id string) error {
	b, err := s.DB.GetBookingByID(ctx, id)
	if err != nil {
		return err
	}
	if b.PaymentStatus != models.StatusPending {
		return nil
	}

	token := utils.GenerateID()
	ok, err := s.Lock.Acquire(ctx, b.RazorpayOrderID, token)
	if err != nil {
		return err
	}
	if !ok {
		s.Logger.LogBooking("EXPIRE", id, "verification in progress, not expiring")
		return nil
	}
	defer func() {
		if err := s.Lock.Release(context.WithoutCancel(ctx), b.RazorpayOrderID, token); err != nil {
			s.Logger.Warn("PAYMENT", fmt.Sprintf("Failed to release lock for order %s: %v", b.RazorpayOrderID, err))
		}
	}()

	now := s.now()
	reason := "payment window expired"
	err = s.DB.MarkPaymentFailed(ctx, id, "", reason, now)
	if errors.Is(err, models.ErrInvalidTransition) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("expire booking %s: %w", id, err)
	}
	b.PaymentStatus = models.StatusFailed
	b.FailureReason = reason
	b.UpdatedAt = now
	s.Logger.LogBooking("EXPIRE", id, reason)
	s.publish(ctx, models.EventPaymentFailed, b)
	return nil
}

func (s *BookingService) releaseHold(ctx context.Context, id string) {
	if s.Holds == nil {
		return
	}
	if err := s.Holds.Release(context.WithoutCancel(ctx), id); err != nil {
		s.Logger.Warn("REDIS", fmt.Sprintf("Failed to release payment hold for %s: %v", id, err))
	}
}

// sendConfirmation is best-effort: failures are logged and the payment stays settled.
func (s *BookingService) sendConfirmation(ctx context.Context, b *models.Booking) {
	if s.Notifier == nil {
		return
	}
	mailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.MailTimeout)
	defer cancel()
	if err := s.Notifier.SendBookingConfirmation(mailCtx, b); err != nil {
		s.Logger.Error("EMAIL", fmt.Sprintf("Confirmation email for booking %s not sent: %v", b.BookingID, err))
	}
}

// ---------------- QUERIES ----------------

// GetBooking returns a booking to its owner or to an admin.
func (s *BookingService) GetBooking(ctx context.Context, caller *models.Claims, id string) (*models.Booking, error) {
	b, err := s.DB.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsOwnedBy(caller.ID) && !caller.IsAdmin() {
		return nil, models.ErrForbidden
	}
	return b, nil
}

func (s *BookingService) ListMyBookings(ctx context.Context, caller *models.Claims, vertical models.Vertical) ([]models.Booking, error) {
	if vertical != "" && !vertical.Valid() {
		return nil, fmt.Errorf("%w: unknown vertical %q", models.ErrValidation, vertical)
	}
	return s.DB.ListBookingsByUser(ctx, caller.ID, vertical)
}

// ---------------- REFUNDS ----------------

// RefundQuote previews what a refund requested now would return.
func (s *BookingService) RefundQuote(ctx context.Context, caller *models.Claims, id string) (*models.RefundQuote, error) {
	b, err := s.GetBooking(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if b.PaymentStatus != models.StatusSuccess {
		return nil, fmt.Errorf("%w: only paid bookings can be refunded", models.ErrInvalidTransition)
	}
	q := refund.Compute(b.TotalAmount, b.StartDate, s.now())
	return &models.RefundQuote{
		BookingID:     b.BookingID,
		ReferenceDate: b.StartDate,
		DaysLeft:      q.DaysLeft,
		Percentage:    q.Percentage,
		Amount:        q.Amount,
		TotalAmount:   b.TotalAmount,
	}, nil
}

// RequestRefund opens a refund for the owner's paid booking. Only one request per booking.
func (s *BookingService) RequestRefund(ctx context.Context, caller *models.Claims, id, reason string) (*models.Booking, error) {
	b, err := s.DB.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsOwnedBy(caller.ID) {
		return nil, models.ErrForbidden
	}
	if b.Refund.Requested {
		return nil, fmt.Errorf("booking %s: %w", id, models.ErrRefundAlreadyRequested)
	}
	if b.PaymentStatus != models.StatusSuccess {
		return nil, fmt.Errorf("%w: only paid bookings can be refunded", models.ErrInvalidTransition)
	}

	now := s.now()
	q := refund.Compute(b.TotalAmount, b.StartDate, now)
	r := models.Refund{
		Requested:   true,
		Status:      models.RefundPending,
		RequestedAt: now,
		Percentage:  q.Percentage,
		Amount:      q.Amount,
		Reason:      strings.TrimSpace(reason),
	}
	if err := s.DB.RequestRefund(ctx, id, r); err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			// lost a race with a concurrent request
			return nil, fmt.Errorf("booking %s: %w", id, models.ErrRefundAlreadyRequested)
		}
		return nil, err
	}
	b.Refund = r
	b.UpdatedAt = now
	s.Logger.LogBooking("REFUND_REQUEST", id, fmt.Sprintf("%d days left, %d%% = %.2f", q.DaysLeft, q.Percentage, q.Amount))

	s.publish(ctx, models.EventRefundRequest, b)
	return b, nil
}

// ListRefunds returns refund requests for admins, optionally filtered by status and vertical.
func (s *BookingService) ListRefunds(ctx context.Context, caller *models.Claims, status models.RefundStatus, vertical models.Vertical) ([]models.Booking, error) {
	if !caller.IsAdmin() {
		return nil, models.ErrForbidden
	}
	switch status {
	case models.RefundNone, models.RefundPending, models.RefundApproved, models.RefundRejected:
	default:
		return nil, fmt.Errorf("%w: unknown refund status %q", models.ErrValidation, status)
	}
	return s.DB.ListRefundRequests(ctx, status, vertical)
}

// ApproveRefund pays the quoted amount back through the gateway and closes the request.
// A gateway failure leaves the request pending.
func (s *BookingService) ApproveRefund(ctx context.Context, caller *models.Claims, id string) (*models.Booking, error) {
	return s.withPendingRefund(ctx, caller, id, func(b *models.Booking) (*models.Booking, error) {
		var gatewayRefundID string
		if b.Refund.Amount > 0 {
			var err error
			gatewayRefundID, err = s.Gateway.Refund(ctx, b.RazorpayPaymentID, b.Refund.Amount, map[string]string{
				"booking_id": b.BookingID,
				"reason":     b.Refund.Reason,
			})
			if err != nil {
				return nil, err
			}
		}
		return s.decide(ctx, caller, b, models.RefundApproved, gatewayRefundID)
	})
}

func (s *BookingService) RejectRefund(ctx context.Context, caller *models.Claims, id string) (*models.Booking, error) {
	return s.withPendingRefund(ctx, caller, id, func(b *models.Booking) (*models.Booking, error) {
		return s.decide(ctx, caller, b, models.RefundRejected, "")
	})
}

// withPendingRefund runs fn on the booking while holding its order lock.
// The booking is re-read under the lock so a refund is paid out at most once.
func (s *BookingService) withPendingRefund(ctx context.Context, caller *models.Claims, id string, fn func(b *models.Booking) (*models.Booking, error)) (*models.Booking, error) {
	b, err := s.pendingRefund(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	token := utils.GenerateID()
	ok, err := s.Lock.Acquire(ctx, b.RazorpayOrderID, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.Logger.LogBooking("REFUND", id, "decision already in progress")
		return nil, models.ErrRefundInProgress
	}
	defer func() {
		if err := s.Lock.Release(context.WithoutCancel(ctx), b.RazorpayOrderID, token); err != nil {
			s.Logger.Warn("REFUND", fmt.Sprintf("Failed to release lock for order %s: %v", b.RazorpayOrderID, err))
		}
	}()

	current, err := s.pendingRefund(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return fn(current)
}

func (s *BookingService) pendingRefund(ctx context.Context, caller *models.Claims, id string) (*models.Booking, error) {
	if !caller.IsAdmin() {
		return nil, models.ErrForbidden
	}
	b, err := s.DB.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Refund.Status != models.RefundPending {
		return nil, fmt.Errorf("%w: booking %s has no pending refund", models.ErrInvalidTransition, id)
	}
	return b, nil
}

func (s *BookingService) decide(ctx context.Context, caller *models.Claims, b *models.Booking, status models.RefundStatus, gatewayRefundID string) (*models.Booking, error) {
	now := s.now()
	if err := s.DB.DecideRefund(ctx, b.BookingID, status, gatewayRefundID, now); err != nil {
		if gatewayRefundID != "" {
			s.Logger.Error("REFUND", fmt.Sprintf("Gateway refund %s issued but booking %s not updated: %v", gatewayRefundID, b.BookingID, err))
		}
		return nil, err
	}
	b.Refund.Status = status
	b.Refund.Approved = status == models.RefundApproved
	b.Refund.GatewayRefundID = gatewayRefundID
	b.Refund.DecidedAt = now
	b.UpdatedAt = now
	s.Logger.LogBooking("REFUND_"+strings.ToUpper(string(status)), b.BookingID, fmt.Sprintf("by %s, amount %.2f", caller.Email, b.Refund.Amount))

	eventType := models.EventRefundRejected
	if status == models.RefundApproved {
		eventType = models.EventRefundApproved
	}
	s.publish(ctx, eventType, b)
	return b, nil
}

// publish sends the event to Kafka and the admin feed. Delivery failures are logged only.
func (s *BookingService) publish(ctx context.Context, eventType string, b *models.Booking) {
	evt := models.NewBookingEvent(eventType, b, s.now())
	if s.Events != nil {
		if err := s.Events.PublishBookingEvent(ctx, evt); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s for %s: %v", eventType, b.BookingID, err))
		}
	}
	if s.Feed != nil {
		s.Feed.Emit(evt)
	}
}
