package booking

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"resort-booking/internal/booking/db"
	"resort-booking/internal/logger"
	"resort-booking/internal/models"
	"resort-booking/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

const testSecret = "rzp_test_secret"

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// ---- fakes ----

type fakeCatalog map[string]models.CatalogItem

func (f fakeCatalog) GetItem(_ context.Context, vertical models.Vertical, id string) (models.CatalogItem, error) {
	item, ok := f[id]
	if !ok || item.Vertical != vertical {
		return models.CatalogItem{}, models.ErrNotFound
	}
	return item, nil
}

type mockGateway struct{ mock.Mock }

func (g *mockGateway) KeyID() string { return "rzp_test_key" }

func (g *mockGateway) Verify(orderID, paymentID, signature string) bool {
	return payment.VerifySignature(orderID, paymentID, signature, testSecret)
}

func (g *mockGateway) CreateOrder(ctx context.Context, amount float64, receipt string, notes map[string]string) (*models.GatewayOrder, error) {
	args := g.Called(amount, notes["vertical"])
	o, _ := args.Get(0).(*models.GatewayOrder)
	return o, args.Error(1)
}

func (g *mockGateway) Refund(ctx context.Context, paymentID string, amount float64, notes map[string]string) (string, error) {
	args := g.Called(paymentID, amount)
	return args.String(0), args.Error(1)
}

type memLock struct {
	mu   sync.Mutex
	held map[string]string
}

func (l *memLock) Acquire(_ context.Context, orderID, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[orderID]; ok {
		return false, nil
	}
	l.held[orderID] = token
	return true, nil
}

func (l *memLock) Release(_ context.Context, orderID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[orderID] == token {
		delete(l.held, orderID)
	}
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []models.BookingEvent
}

func (r *recordingEvents) PublishBookingEvent(_ context.Context, evt models.BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingEvents) Emit(evt models.BookingEvent) {}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type mockNotifier struct{ mock.Mock }

func (n *mockNotifier) SendBookingConfirmation(ctx context.Context, b *models.Booking) error {
	return n.Called(b.BookingID).Error(0)
}

// ---- setup ----

type testEnv struct {
	svc      *BookingService
	db       *db.DB
	gateway  *mockGateway
	notifier *mockNotifier
	events   *recordingEvents
	lock     *memLock
}

var (
	guest = &models.Claims{ID: "user-1", Email: "guest@example.com", Role: models.RoleUser}
	other = &models.Claims{ID: "user-2", Email: "other@example.com", Role: models.RoleUser}
	admin = &models.Claims{ID: "admin-1", Email: "owner@resort.test", Role: models.RoleAdmin}
)

func setup(t *testing.T) *testEnv {
	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })
	_, err = bunDB.NewCreateTable().Model((*models.Booking)(nil)).Exec(context.Background())
	require.NoError(t, err)

	catalog := fakeCatalog{
		"stay-1":   {ID: "stay-1", Vertical: models.VerticalStay, Name: "Lakeside Cottage", Price: 4000, Capacity: 3, MaxGuests: 2, Active: true},
		"stay-off": {ID: "stay-off", Vertical: models.VerticalStay, Name: "Closed Villa", Price: 9000, Capacity: 1, MaxGuests: 2, Active: false},
		"adv-1":    {ID: "adv-1", Vertical: models.VerticalAdventure, Name: "River Rafting", Price: 1500, Capacity: 8, Active: true},
		"event-1": {ID: "event-1", Vertical: models.VerticalEvent, Name: "New Moon Concert", Price: 999.5, Capacity: 100,
			Date: fixedNow.Add(20 * 24 * time.Hour), Active: true},
	}

	env := &testEnv{
		db:       db.New(bunDB),
		gateway:  new(mockGateway),
		notifier: new(mockNotifier),
		events:   &recordingEvents{},
		lock:     &memLock{held: map[string]string{}},
	}
	env.svc = NewBookingService(env.db, catalog, env.gateway, env.lock, env.events, env.notifier, env.events, logger.Discard())
	env.svc.Now = func() time.Time { return fixedNow }
	env.svc.MailTimeout = time.Second
	return env
}

// paidBooking books stay-1 checking in daysAhead days after fixedNow and verifies its payment.
func (e *testEnv) paidBooking(t *testing.T, daysAhead int) *models.Booking {
	t.Helper()
	start := fixedNow.Add(time.Duration(daysAhead) * 24 * time.Hour)
	e.gateway.On("CreateOrder", mock.Anything, "stay").Return(&models.GatewayOrder{ID: "order_" + start.Format("0102"), Amount: 800000, Currency: "INR"}, nil).Once()
	e.notifier.On("SendBookingConfirmation", mock.Anything).Return(nil).Maybe()

	resp, err := e.svc.CreateBooking(context.Background(), guest, models.VerticalStay, models.CreateBookingRequest{
		ItemID:    "stay-1",
		StartDate: start.Format("2006-01-02"),
		EndDate:   start.Add(48 * time.Hour).Format("2006-01-02"),
		Quantity:  1,
		Guests:    2,
	})
	require.NoError(t, err)

	b, err := e.svc.VerifyPayment(context.Background(), guest, models.VerticalStay, verifyReq(resp.Booking.BookingID, resp.OrderID, "pay_"+resp.OrderID))
	require.NoError(t, err)
	return b
}

func verifyReq(bookingID, orderID, paymentID string) models.VerifyPaymentRequest {
	return models.VerifyPaymentRequest{
		BookingID:         bookingID,
		RazorpayOrderID:   orderID,
		RazorpayPaymentID: paymentID,
		RazorpaySignature: payment.Sign(orderID, paymentID, testSecret),
	}
}

// ---- checkout ----

func TestCreateBooking_Stay(t *testing.T) {
	env := setup(t)
	env.gateway.On("CreateOrder", 16000.0, "stay").Return(&models.GatewayOrder{ID: "order_A", Amount: 1600000, Currency: "INR"}, nil)

	resp, err := env.svc.CreateBooking(context.Background(), guest, models.VerticalStay, models.CreateBookingRequest{
		ItemID:    "stay-1",
		StartDate: "2026-03-10",
		EndDate:   "2026-03-12",
		Quantity:  2,
		Guests:    3,
		GuestName: "Asha",
	})
	require.NoError(t, err)

	assert.Equal(t, "order_A", resp.OrderID)
	assert.Equal(t, "rzp_test_key", resp.KeyID)
	assert.Equal(t, int64(1600000), resp.Amount)
	assert.Equal(t, 16000.0, resp.Booking.TotalAmount)
	require.Len(t, resp.Booking.LineItems, 1)
	assert.Equal(t, 4, resp.Booking.LineItems[0].Quantity)

	stored, err := env.db.GetBookingByID(context.Background(), resp.Booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.PaymentStatus)
	assert.Equal(t, "order_A", stored.RazorpayOrderID)
	assert.Equal(t, guest.ID, stored.UserID)
	assert.Equal(t, []string{models.EventBookingCreated}, env.events.types())
}

func TestCreateBooking_EventUsesEventDate(t *testing.T) {
	env := setup(t)
	env.gateway.On("CreateOrder", 2998.5, "event").Return(&models.GatewayOrder{ID: "order_E", Amount: 299850, Currency: "INR"}, nil)

	resp, err := env.svc.CreateBooking(context.Background(), guest, models.VerticalEvent, models.CreateBookingRequest{
		ItemID:   "event-1",
		Quantity: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(20*24*time.Hour), resp.Booking.StartDate)
	assert.Equal(t, 3, resp.Booking.Guests)
}

func TestCreateBooking_Validation(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	cases := map[string]struct {
		vertical models.Vertical
		req      models.CreateBookingRequest
		want     error
	}{
		"past check-in":      {models.VerticalStay, models.CreateBookingRequest{ItemID: "stay-1", StartDate: "2026-02-20", EndDate: "2026-02-22"}, models.ErrValidation},
		"checkout before in": {models.VerticalStay, models.CreateBookingRequest{ItemID: "stay-1", StartDate: "2026-03-10", EndDate: "2026-03-10"}, models.ErrValidation},
		"too many rooms":     {models.VerticalStay, models.CreateBookingRequest{ItemID: "stay-1", StartDate: "2026-03-10", EndDate: "2026-03-11", Quantity: 4}, models.ErrValidation},
		"too many guests":    {models.VerticalStay, models.CreateBookingRequest{ItemID: "stay-1", StartDate: "2026-03-10", EndDate: "2026-03-11", Quantity: 1, Guests: 3}, models.ErrValidation},
		"inactive stay":      {models.VerticalStay, models.CreateBookingRequest{ItemID: "stay-off", StartDate: "2026-03-10", EndDate: "2026-03-11"}, models.ErrValidation},
		"unknown item":       {models.VerticalAdventure, models.CreateBookingRequest{ItemID: "nope", StartDate: "2026-03-10"}, models.ErrNotFound},
		"wrong vertical":     {models.VerticalAdventure, models.CreateBookingRequest{ItemID: "stay-1", StartDate: "2026-03-10"}, models.ErrNotFound},
		"adventure overfull": {models.VerticalAdventure, models.CreateBookingRequest{ItemID: "adv-1", StartDate: "2026-03-10", Quantity: 9}, models.ErrValidation},
		"missing item":       {models.VerticalEvent, models.CreateBookingRequest{}, models.ErrValidation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.CreateBooking(ctx, guest, tc.vertical, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	env.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestCreateBooking_GatewayFailureStoresNothing(t *testing.T) {
	env := setup(t)
	env.gateway.On("CreateOrder", 1500.0, "adventure").Return(nil, &payment.GatewayError{Operation: "create_order", StatusCode: 502, Err: errors.New("down")})

	_, err := env.svc.CreateBooking(context.Background(), guest, models.VerticalAdventure, models.CreateBookingRequest{ItemID: "adv-1", StartDate: "2026-03-05"})
	assert.ErrorIs(t, err, models.ErrGateway)

	list, err := env.db.ListBookingsByUser(context.Background(), guest.ID, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

// ---- verify ----

func TestVerifyPayment_SuccessAndReplay(t *testing.T) {
	env := setup(t)
	b := env.paidBooking(t, 10)

	assert.Equal(t, models.StatusSuccess, b.PaymentStatus)
	stored, err := env.db.GetBookingByID(context.Background(), b.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, stored.PaymentStatus)
	assert.Equal(t, b.RazorpayPaymentID, stored.RazorpayPaymentID)
	env.notifier.AssertCalled(t, "SendBookingConfirmation", b.BookingID)
	assert.Contains(t, env.events.types(), models.EventPaymentSuccess)

	// same callback again is idempotent
	again, err := env.svc.VerifyPayment(context.Background(), guest, models.VerticalStay, verifyReq(b.BookingID, b.RazorpayOrderID, b.RazorpayPaymentID))
	require.NoError(t, err)
	assert.Equal(t, b.BookingID, again.BookingID)

	// a different payment for a paid booking is a conflict
	_, err = env.svc.VerifyPayment(context.Background(), guest, models.VerticalStay, verifyReq(b.BookingID, b.RazorpayOrderID, "pay_other"))
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Empty(t, env.lock.held)
}

func TestVerifyPayment_BadSignatureFailsBookingForGood(t *testing.T) {
	env := setup(t)
	env.gateway.On("CreateOrder", mock.Anything, "adventure").Return(&models.GatewayOrder{ID: "order_F", Amount: 150000}, nil)

	resp, err := env.svc.CreateBooking(context.Background(), guest, models.VerticalAdventure, models.CreateBookingRequest{ItemID: "adv-1", StartDate: "2026-03-05"})
	require.NoError(t, err)

	bad := verifyReq(resp.Booking.BookingID, "order_F", "pay_1")
	bad.RazorpaySignature = payment.Sign("order_F", "pay_1", "wrong-secret")
	_, err = env.svc.VerifyPayment(context.Background(), guest, models.VerticalAdventure, bad)
	assert.ErrorIs(t, err, models.ErrInvalidSignature)

	stored, err := env.db.GetBookingByID(context.Background(), resp.Booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.PaymentStatus)
	assert.NotEmpty(t, stored.FailureReason)

	// a correct signature afterwards cannot resurrect it
	_, err = env.svc.VerifyPayment(context.Background(), guest, models.VerticalAdventure, verifyReq(resp.Booking.BookingID, "order_F", "pay_1"))
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	env.notifier.AssertNotCalled(t, "SendBookingConfirmation", mock.Anything)
	assert.Contains(t, env.events.types(), models.EventPaymentFailed)
}

func TestVerifyPayment_Guards(t *testing.T) {
	env := setup(t)
	env.gateway.On("CreateOrder", mock.Anything, "stay").Return(&models.GatewayOrder{ID: "order_G", Amount: 400000}, nil)
	resp, err := env.svc.CreateBooking(context.Background(), guest, models.VerticalStay, models.CreateBookingRequest{
		ItemID: "stay-1", StartDate: "2026-03-10", EndDate: "2026-03-11",
	})
	require.NoError(t, err)
	id := resp.Booking.BookingID
	ctx := context.Background()

	_, err = env.svc.VerifyPayment(ctx, other, models.VerticalStay, verifyReq(id, "order_G", "pay_1"))
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.svc.VerifyPayment(ctx, guest, models.VerticalStay, verifyReq(id, "order_other", "pay_1"))
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = env.svc.VerifyPayment(ctx, guest, models.VerticalEvent, verifyReq(id, "order_G", "pay_1"))
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = env.svc.VerifyPayment(ctx, guest, models.VerticalStay, models.VerifyPaymentRequest{BookingID: id})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = env.svc.VerifyPayment(ctx, guest, models.VerticalStay, verifyReq("missing", "order_G", "pay_1"))
	assert.ErrorIs(t, err, models.ErrNotFound)

	env.lock.held["order_G"] = "someone-else"
	_, err = env.svc.VerifyPayment(ctx, guest, models.VerticalStay, verifyReq(id, "order_G", "pay_1"))
	assert.ErrorIs(t, err, models.ErrVerificationInProgress)

	stored, err := env.db.GetBookingByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.PaymentStatus)
}

func TestVerifyPayment_EmailFailureDoesNotFailPayment(t *testing.T) {
	env := setup(t)
	env.gateway.On("CreateOrder", mock.Anything, "stay").Return(&models.GatewayOrder{ID: "order_M", Amount: 400000}, nil)
	env.notifier.On("SendBookingConfirmation", mock.Anything).Return(errors.New("smtp down"))

	resp, err := env.svc.CreateBooking(context.Background(), guest, models.VerticalStay, models.CreateBookingRequest{
		ItemID: "stay-1", StartDate: "2026-03-10", EndDate: "2026-03-11",
	})
	require.NoError(t, err)

	b, err := env.svc.VerifyPayment(context.Background(), guest, models.VerticalStay, verifyReq(resp.Booking.BookingID, "order_M", "pay_M"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, b.PaymentStatus)
}

// ---- refunds ----

func TestRefundQuoteAndRequest(t *testing.T) {
	env := setup(t)
	b := env.paidBooking(t, 5) // check-in 5 days minus 10h away

	q, err := env.svc.RefundQuote(context.Background(), guest, b.BookingID)
	require.NoError(t, err)
	assert.Equal(t, 5, q.DaysLeft)
	assert.Equal(t, 50, q.Percentage)
	assert.Equal(t, 4000.0, q.Amount)

	_, err = env.svc.RequestRefund(context.Background(), other, b.BookingID, "nope")
	assert.ErrorIs(t, err, models.ErrForbidden)

	r, err := env.svc.RequestRefund(context.Background(), guest, b.BookingID, " change of plans ")
	require.NoError(t, err)
	assert.True(t, r.Refund.Requested)
	assert.Equal(t, models.RefundPending, r.Refund.Status)
	assert.Equal(t, "change of plans", r.Refund.Reason)

	_, err = env.svc.RequestRefund(context.Background(), guest, b.BookingID, "again")
	assert.ErrorIs(t, err, models.ErrRefundAlreadyRequested)

	list, err := env.svc.ListRefunds(context.Background(), admin, models.RefundPending, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 4000.0, list[0].Refund.Amount)

	_, err = env.svc.ListRefunds(context.Background(), guest, "", "")
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = env.svc.ListRefunds(context.Background(), admin, "bogus", "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestRequestRefund_UnpaidBooking(t *testing.T) {
	env := setup(t)
	env.gateway.On("CreateOrder", mock.Anything, "stay").Return(&models.GatewayOrder{ID: "order_U", Amount: 400000}, nil)
	resp, err := env.svc.CreateBooking(context.Background(), guest, models.VerticalStay, models.CreateBookingRequest{
		ItemID: "stay-1", StartDate: "2026-03-10", EndDate: "2026-03-11",
	})
	require.NoError(t, err)

	_, err = env.svc.RequestRefund(context.Background(), guest, resp.Booking.BookingID, "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = env.svc.RefundQuote(context.Background(), guest, resp.Booking.BookingID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestApproveRefund(t *testing.T) {
	env := setup(t)
	b := env.paidBooking(t, 30)
	_, err := env.svc.RequestRefund(context.Background(), guest, b.BookingID, "")
	require.NoError(t, err)

	_, err = env.svc.ApproveRefund(context.Background(), guest, b.BookingID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	env.gateway.On("Refund", b.RazorpayPaymentID, 8000.0).Return("rfnd_1", nil).Once()
	approved, err := env.svc.ApproveRefund(context.Background(), admin, b.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.RefundApproved, approved.Refund.Status)
	assert.True(t, approved.Refund.Approved)
	assert.Equal(t, "rfnd_1", approved.Refund.GatewayRefundID)

	// decided refunds are terminal
	_, err = env.svc.RejectRefund(context.Background(), admin, b.BookingID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Contains(t, env.events.types(), models.EventRefundApproved)
	env.gateway.AssertExpectations(t)
}

func TestApproveRefund_GatewayFailureKeepsPending(t *testing.T) {
	env := setup(t)
	b := env.paidBooking(t, 6)
	_, err := env.svc.RequestRefund(context.Background(), guest, b.BookingID, "")
	require.NoError(t, err)

	env.gateway.On("Refund", b.RazorpayPaymentID, 6000.0).Return("", &payment.GatewayError{Operation: "refund", StatusCode: 502, Err: errors.New("timeout")})
	_, err = env.svc.ApproveRefund(context.Background(), admin, b.BookingID)
	assert.ErrorIs(t, err, models.ErrGateway)

	stored, err := env.db.GetBookingByID(context.Background(), b.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.RefundPending, stored.Refund.Status)
}

func TestApproveRefund_ConcurrentApprovalsRefundOnce(t *testing.T) {
	env := setup(t)
	b := env.paidBooking(t, 6)
	_, err := env.svc.RequestRefund(context.Background(), guest, b.BookingID, "")
	require.NoError(t, err)

	env.gateway.On("Refund", b.RazorpayPaymentID, 6000.0).Return("rfnd_1", nil).After(50 * time.Millisecond)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.ApproveRefund(context.Background(), admin, b.BookingID)
		}(i)
	}
	wg.Wait()

	env.gateway.AssertNumberOfCalls(t, "Refund", 1)
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, models.ErrRefundInProgress) || errors.Is(err, models.ErrInvalidTransition), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	stored, err := env.db.GetBookingByID(context.Background(), b.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.RefundApproved, stored.Refund.Status)
	assert.Equal(t, "rfnd_1", stored.Refund.GatewayRefundID)
}

func TestApproveRefund_LockedOrderIsNotRefunded(t *testing.T) {
	env := setup(t)
	b := env.paidBooking(t, 30)
	_, err := env.svc.RequestRefund(context.Background(), guest, b.BookingID, "")
	require.NoError(t, err)

	ok, err := env.lock.Acquire(context.Background(), b.RazorpayOrderID, "other-admin")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.svc.ApproveRefund(context.Background(), admin, b.BookingID)
	assert.ErrorIs(t, err, models.ErrRefundInProgress)
	_, err = env.svc.RejectRefund(context.Background(), admin, b.BookingID)
	assert.ErrorIs(t, err, models.ErrRefundInProgress)
	env.gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)

	stored, err := env.db.GetBookingByID(context.Background(), b.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.RefundPending, stored.Refund.Status)
}

func TestApproveRefund_ZeroAmountSkipsGateway(t *testing.T) {
	env := setup(t)
	b := env.paidBooking(t, 2)
	r, err := env.svc.RequestRefund(context.Background(), guest, b.BookingID, "")
	require.NoError(t, err)
	require.Equal(t, 0, r.Refund.Percentage)

	approved, err := env.svc.ApproveRefund(context.Background(), admin, b.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.RefundApproved, approved.Refund.Status)
	env.gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
}

func TestRejectRefund(t *testing.T) {
	env := setup(t)
	b := env.paidBooking(t, 10)
	_, err := env.svc.RequestRefund(context.Background(), guest, b.BookingID, "")
	require.NoError(t, err)

	rejected, err := env.svc.RejectRefund(context.Background(), admin, b.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.RefundRejected, rejected.Refund.Status)
	assert.False(t, rejected.Refund.Approved)

	_, err = env.svc.RequestRefund(context.Background(), guest, b.BookingID, "")
	assert.ErrorIs(t, err, models.ErrRefundAlreadyRequested)
}

func TestGetBooking_Access(t *testing.T) {
	env := setup(t)
	b := env.paidBooking(t, 10)

	_, err := env.svc.GetBooking(context.Background(), guest, b.BookingID)
	assert.NoError(t, err)
	_, err = env.svc.GetBooking(context.Background(), admin, b.BookingID)
	assert.NoError(t, err)
	_, err = env.svc.GetBooking(context.Background(), other, b.BookingID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	mine, err := env.svc.ListMyBookings(context.Background(), guest, models.VerticalStay)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	_, err = env.svc.ListMyBookings(context.Background(), guest, "spa")
	assert.ErrorIs(t, err, models.ErrValidation)
}

// ---- payment window ----

type memHolds struct {
	mu   sync.Mutex
	held map[string]bool
}

func (h *memHolds) Hold(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.held[id] = true
	return nil
}

func (h *memHolds) Release(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.held, id)
	return nil
}

func TestPaymentHold_ReleasedOnVerify(t *testing.T) {
	env := setup(t)
	holds := &memHolds{held: map[string]bool{}}
	env.svc.Holds = holds

	b := env.paidBooking(t, 10)
	assert.NotContains(t, holds.held, b.BookingID)
}

func TestExpireBooking_FailsPendingBooking(t *testing.T) {
	env := setup(t)
	holds := &memHolds{held: map[string]bool{}}
	env.svc.Holds = holds
	env.gateway.On("CreateOrder", mock.Anything, "adventure").Return(&models.GatewayOrder{ID: "order_X", Amount: 300000, Currency: "INR"}, nil)

	resp, err := env.svc.CreateBooking(context.Background(), guest, models.VerticalAdventure, models.CreateBookingRequest{
		ItemID: "adv-1", StartDate: "2026-03-05", Quantity: 2,
	})
	require.NoError(t, err)
	id := resp.Booking.BookingID
	assert.True(t, holds.held[id])

	require.NoError(t, env.svc.ExpireBooking(context.Background(), id))

	stored, err := env.db.GetBookingByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.PaymentStatus)
	assert.Equal(t, "payment window expired", stored.FailureReason)
	assert.Equal(t, []string{models.EventBookingCreated, models.EventPaymentFailed}, env.events.types())

	// a late callback cannot revive it
	_, err = env.svc.VerifyPayment(context.Background(), guest, models.VerticalAdventure, verifyReq(id, "order_X", "pay_late"))
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestExpireBooking_LeavesPaidAndInFlightBookings(t *testing.T) {
	env := setup(t)

	paid := env.paidBooking(t, 10)
	require.NoError(t, env.svc.ExpireBooking(context.Background(), paid.BookingID))
	stored, err := env.db.GetBookingByID(context.Background(), paid.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, stored.PaymentStatus)

	env.gateway.On("CreateOrder", mock.Anything, "adventure").Return(&models.GatewayOrder{ID: "order_busy", Amount: 150000, Currency: "INR"}, nil)
	resp, err := env.svc.CreateBooking(context.Background(), guest, models.VerticalAdventure, models.CreateBookingRequest{
		ItemID: "adv-1", StartDate: "2026-03-05", Quantity: 1,
	})
	require.NoError(t, err)

	// a verification holds the order lock
	ok, _ := env.lock.Acquire(context.Background(), "order_busy", "verify")
	require.True(t, ok)
	require.NoError(t, env.svc.ExpireBooking(context.Background(), resp.Booking.BookingID))

	stored, err = env.db.GetBookingByID(context.Background(), resp.Booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.PaymentStatus)
}
