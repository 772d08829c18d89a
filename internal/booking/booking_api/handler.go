package booking_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"resort-booking/internal/auth"
	"resort-booking/internal/logger"
	"resort-booking/internal/models"
	"resort-booking/internal/sse"
	"resort-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

// BookingService is the booking lifecycle the handlers drive.
type BookingService interface {
	CreateBooking(ctx context.Context, caller *models.Claims, vertical models.Vertical, req models.CreateBookingRequest) (*models.CheckoutResponse, error)
	VerifyPayment(ctx context.Context, caller *models.Claims, vertical models.Vertical, req models.VerifyPaymentRequest) (*models.Booking, error)
	GetBooking(ctx context.Context, caller *models.Claims, id string) (*models.Booking, error)
	ListMyBookings(ctx context.Context, caller *models.Claims, vertical models.Vertical) ([]models.Booking, error)
	RefundQuote(ctx context.Context, caller *models.Claims, id string) (*models.RefundQuote, error)
	RequestRefund(ctx context.Context, caller *models.Claims, id, reason string) (*models.Booking, error)
	ListRefunds(ctx context.Context, caller *models.Claims, status models.RefundStatus, vertical models.Vertical) ([]models.Booking, error)
	ApproveRefund(ctx context.Context, caller *models.Claims, id string) (*models.Booking, error)
	RejectRefund(ctx context.Context, caller *models.Claims, id string) (*models.Booking, error)
}

type Handler struct {
	Service BookingService
	Feed    *sse.BookingEventEmitter
	Logger  *logger.Logger
}

func NewHandler(service BookingService, feed *sse.BookingEventEmitter, log *logger.Logger) *Handler {
	return &Handler{Service: service, Feed: feed, Logger: log}
}

// RegisterRoutes mounts booking, payment and refund endpoints. authn must
// populate auth claims; admin routes additionally require the admin role.
func (h *Handler) RegisterRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authn)

		r.Post("/api/stay/booking", h.CreateBooking(models.VerticalStay))
		r.Post("/api/adventure/booking", h.CreateBooking(models.VerticalAdventure))
		r.Post("/api/event/booking", h.CreateBooking(models.VerticalEvent))

		r.Post("/api/payment/verify", h.VerifyPayment(models.VerticalStay))
		r.Post("/api/adventure/payment/verify", h.VerifyPayment(models.VerticalAdventure))
		r.Post("/api/event/payment/verify", h.VerifyPayment(models.VerticalEvent))

		r.Get("/api/bookings", h.ListMyBookings)
		r.Get("/api/bookings/{bookingId}", h.GetBooking)
		r.Get("/api/bookings/{bookingId}/refund", h.RefundQuote)
		r.Post("/api/bookings/{bookingId}/refund", h.RequestRefund)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Get("/api/payment/refunds", h.ListRefunds)
			r.Post("/api/payment/refunds/{bookingId}/approve", h.ApproveRefund)
			r.Post("/api/payment/refunds/{bookingId}/reject", h.RejectRefund)
			r.Get("/api/admin/bookings/stream", h.StreamBookings)
		})
	})
}

func (h *Handler) CreateBooking(vertical models.Vertical) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := auth.ClaimsFromContext(r.Context())
		h.Logger.Info("API", fmt.Sprintf("CreateBooking: vertical=%s user=%s", vertical, caller.ID))

		var req models.CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.Logger.Error("API", fmt.Sprintf("CreateBooking: failed to decode request body: %v", err))
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
			return
		}

		resp, err := h.Service.CreateBooking(r.Context(), caller, vertical, req)
		if err != nil {
			h.fail(w, "CreateBooking", "Could not create booking", err)
			return
		}

		h.Logger.Info("API", fmt.Sprintf("CreateBooking: booking %s created with order %s", resp.Booking.BookingID, resp.OrderID))
		utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Booking created, complete payment to confirm", resp))
	}
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")
	h.Logger.Info("API", fmt.Sprintf("GetBooking: bookingId=%s", bookingID))

	b, err := h.Service.GetBooking(r.Context(), auth.ClaimsFromContext(r.Context()), bookingID)
	if err != nil {
		h.fail(w, "GetBooking", "Could not load booking", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking retrieved", b))
}

func (h *Handler) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	caller := auth.ClaimsFromContext(r.Context())
	vertical := models.Vertical(r.URL.Query().Get("vertical"))
	h.Logger.Info("API", fmt.Sprintf("ListMyBookings: user=%s vertical=%q", caller.ID, vertical))

	bookings, err := h.Service.ListMyBookings(r.Context(), caller, vertical)
	if err != nil {
		h.fail(w, "ListMyBookings", "Could not list bookings", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d bookings", len(bookings)), bookings))
}

// fail logs err with its operation and writes the mapped status.
func (h *Handler) fail(w http.ResponseWriter, op, message string, err error) {
	status := utils.WriteError(w, message, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		return
	}
	h.Logger.Warn("API", fmt.Sprintf("%s: %d %v", op, status, err))
}
