package booking_api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"resort-booking/internal/auth"
	"resort-booking/internal/logger"
	"resort-booking/internal/models"
	"resort-booking/internal/sse"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockService struct{ mock.Mock }

func (m *mockService) CreateBooking(ctx context.Context, c *models.Claims, v models.Vertical, req models.CreateBookingRequest) (*models.CheckoutResponse, error) {
	args := m.Called(c.ID, v, req)
	resp, _ := args.Get(0).(*models.CheckoutResponse)
	return resp, args.Error(1)
}

func (m *mockService) VerifyPayment(ctx context.Context, c *models.Claims, v models.Vertical, req models.VerifyPaymentRequest) (*models.Booking, error) {
	args := m.Called(c.ID, v, req)
	b, _ := args.Get(0).(*models.Booking)
	return b, args.Error(1)
}

func (m *mockService) GetBooking(ctx context.Context, c *models.Claims, id string) (*models.Booking, error) {
	args := m.Called(c.ID, id)
	b, _ := args.Get(0).(*models.Booking)
	return b, args.Error(1)
}

func (m *mockService) ListMyBookings(ctx context.Context, c *models.Claims, v models.Vertical) ([]models.Booking, error) {
	args := m.Called(c.ID, v)
	b, _ := args.Get(0).([]models.Booking)
	return b, args.Error(1)
}

func (m *mockService) RefundQuote(ctx context.Context, c *models.Claims, id string) (*models.RefundQuote, error) {
	args := m.Called(c.ID, id)
	q, _ := args.Get(0).(*models.RefundQuote)
	return q, args.Error(1)
}

func (m *mockService) RequestRefund(ctx context.Context, c *models.Claims, id, reason string) (*models.Booking, error) {
	args := m.Called(c.ID, id, reason)
	b, _ := args.Get(0).(*models.Booking)
	return b, args.Error(1)
}

func (m *mockService) ListRefunds(ctx context.Context, c *models.Claims, s models.RefundStatus, v models.Vertical) ([]models.Booking, error) {
	args := m.Called(c.ID, s, v)
	b, _ := args.Get(0).([]models.Booking)
	return b, args.Error(1)
}

func (m *mockService) ApproveRefund(ctx context.Context, c *models.Claims, id string) (*models.Booking, error) {
	args := m.Called(c.ID, id)
	b, _ := args.Get(0).(*models.Booking)
	return b, args.Error(1)
}

func (m *mockService) RejectRefund(ctx context.Context, c *models.Claims, id string) (*models.Booking, error) {
	args := m.Called(c.ID, id)
	b, _ := args.Get(0).(*models.Booking)
	return b, args.Error(1)
}

// headerAuth trusts X-User and X-Role; enough to drive routing in tests.
func headerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-User")
		if id == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		c := &models.Claims{ID: id, Email: id + "@example.com", Role: r.Header.Get("X-Role")}
		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), c)))
	})
}

func newRouter(svc BookingService, feed *sse.BookingEventEmitter) http.Handler {
	r := chi.NewRouter()
	NewHandler(svc, feed, logger.Discard()).RegisterRoutes(r, headerAuth)
	return r
}

func do(h http.Handler, method, path, user, role, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-User", user)
		req.Header.Set("X-Role", role)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestCreateBooking_RoutesVertical(t *testing.T) {
	svc := new(mockService)
	h := newRouter(svc, sse.NewBookingEventEmitter())

	req := models.CreateBookingRequest{ItemID: "adv-1", StartDate: "2026-05-01", Quantity: 2}
	svc.On("CreateBooking", "u1", models.VerticalAdventure, req).Return(&models.CheckoutResponse{
		Booking: &models.Booking{BookingID: "b-1"}, OrderID: "order_1", KeyID: "rzp_key", Amount: 300000, Currency: "INR",
	}, nil)

	rr := do(h, http.MethodPost, "/api/adventure/booking", "u1", "user", `{"item_id":"adv-1","start_date":"2026-05-01","quantity":2}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "order_1", body["data"].(map[string]interface{})["razorpay_order_id"])
	svc.AssertExpectations(t)
}

func TestCreateBooking_BadJSON(t *testing.T) {
	h := newRouter(new(mockService), sse.NewBookingEventEmitter())
	rr := do(h, http.MethodPost, "/api/stay/booking", "u1", "user", `{`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVerifyPayment_StatusMapping(t *testing.T) {
	cases := []struct {
		path     string
		vertical models.Vertical
		err      error
		want     int
	}{
		{"/api/payment/verify", models.VerticalStay, nil, http.StatusOK},
		{"/api/adventure/payment/verify", models.VerticalAdventure, models.ErrInvalidSignature, http.StatusBadRequest},
		{"/api/event/payment/verify", models.VerticalEvent, models.ErrForbidden, http.StatusForbidden},
		{"/api/payment/verify", models.VerticalStay, fmt.Errorf("b: %w", models.ErrNotFound), http.StatusNotFound},
		{"/api/payment/verify", models.VerticalStay, models.ErrInvalidTransition, http.StatusConflict},
		{"/api/payment/verify", models.VerticalStay, errors.New("db exploded"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := new(mockService)
		h := newRouter(svc, sse.NewBookingEventEmitter())
		req := models.VerifyPaymentRequest{BookingID: "b-1", RazorpayOrderID: "order_1", RazorpayPaymentID: "pay_1", RazorpaySignature: "abc"}
		if tc.err == nil {
			svc.On("VerifyPayment", "u1", tc.vertical, req).Return(&models.Booking{BookingID: "b-1", PaymentStatus: models.StatusSuccess}, nil)
		} else {
			svc.On("VerifyPayment", "u1", tc.vertical, req).Return(nil, tc.err)
		}

		rr := do(h, http.MethodPost, tc.path, "u1", "user",
			`{"booking_id":"b-1","razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"abc"}`)
		assert.Equal(t, tc.want, rr.Code, "%s %v", tc.path, tc.err)
		if tc.want == http.StatusInternalServerError {
			assert.NotContains(t, rr.Body.String(), "db exploded")
		}
	}
}

func TestRequiresAuth(t *testing.T) {
	h := newRouter(new(mockService), sse.NewBookingEventEmitter())
	rr := do(h, http.MethodGet, "/api/bookings", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestListMyBookings(t *testing.T) {
	svc := new(mockService)
	h := newRouter(svc, sse.NewBookingEventEmitter())
	svc.On("ListMyBookings", "u1", models.VerticalEvent).Return([]models.Booking{{BookingID: "b-1"}, {BookingID: "b-2"}}, nil)

	rr := do(h, http.MethodGet, "/api/bookings?vertical=event", "u1", "user", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["data"], 2)
}

func TestRefundEndpoints(t *testing.T) {
	svc := new(mockService)
	h := newRouter(svc, sse.NewBookingEventEmitter())

	svc.On("RefundQuote", "u1", "b-1").Return(&models.RefundQuote{BookingID: "b-1", DaysLeft: 6, Percentage: 75, Amount: 750}, nil)
	svc.On("RequestRefund", "u1", "b-1", "sick").Return(&models.Booking{BookingID: "b-1", Refund: models.Refund{Requested: true, Status: models.RefundPending}}, nil).Once()
	svc.On("RequestRefund", "u1", "b-1", "").Return(nil, models.ErrRefundAlreadyRequested).Once()

	rr := do(h, http.MethodGet, "/api/bookings/b-1/refund", "u1", "user", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 75.0, decode(t, rr)["data"].(map[string]interface{})["percentage"])

	rr = do(h, http.MethodPost, "/api/bookings/b-1/refund", "u1", "user", `{"reason":"sick"}`)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = do(h, http.MethodPost, "/api/bookings/b-1/refund", "u1", "user", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	svc.AssertExpectations(t)
}

func TestAdminRefundRoutes(t *testing.T) {
	svc := new(mockService)
	h := newRouter(svc, sse.NewBookingEventEmitter())

	rr := do(h, http.MethodGet, "/api/payment/refunds", "u1", "user", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	svc.On("ListRefunds", "a1", models.RefundPending, models.Vertical("")).Return([]models.Booking{{BookingID: "b-1"}}, nil)
	svc.On("ApproveRefund", "a1", "b-1").Return(&models.Booking{BookingID: "b-1"}, nil)
	svc.On("RejectRefund", "a1", "b-2").Return(nil, fmt.Errorf("refund: %w", models.ErrGateway))

	rr = do(h, http.MethodGet, "/api/payment/refunds?status=pending", "a1", "admin", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(h, http.MethodPost, "/api/payment/refunds/b-1/approve", "a1", "admin", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(h, http.MethodPost, "/api/payment/refunds/b-2/reject", "a1", "admin", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	svc.AssertExpectations(t)
}

func TestStreamBookings(t *testing.T) {
	feed := sse.NewBookingEventEmitter()
	srv := httptest.NewServer(newRouter(new(mockService), feed))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/admin/bookings/stream?vertical=stay", nil)
	require.NoError(t, err)
	req.Header.Set("X-User", "a1")
	req.Header.Set("X-Role", "admin")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream;charset=UTF-8", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	// wait for the subscription before emitting
	require.Eventually(t, func() bool { return feed.Subscribers("stay") == 1 }, time.Second, 10*time.Millisecond)
	feed.Emit(models.BookingEvent{Type: models.EventPaymentSuccess, BookingID: "b-7", Vertical: models.VerticalStay})

	var got []string
	for len(got) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: payment.success") || strings.Contains(line, `"booking_id":"b-7"`) {
			got = append(got, line)
		}
	}
	assert.Len(t, got, 2)
}
