package booking_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"resort-booking/internal/auth"
	"resort-booking/internal/models"
	"resort-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) RefundQuote(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")
	h.Logger.Info("REFUND", fmt.Sprintf("RefundQuote: bookingId=%s", bookingID))

	q, err := h.Service.RefundQuote(r.Context(), auth.ClaimsFromContext(r.Context()), bookingID)
	if err != nil {
		h.fail(w, "RefundQuote", "Could not compute refund", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Refund preview", q))
}

func (h *Handler) RequestRefund(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")
	h.Logger.Info("REFUND", fmt.Sprintf("RequestRefund: bookingId=%s", bookingID))

	// the body is optional
	var req models.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.Logger.Error("REFUND", fmt.Sprintf("RequestRefund: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	b, err := h.Service.RequestRefund(r.Context(), auth.ClaimsFromContext(r.Context()), bookingID, req.Reason)
	if err != nil {
		h.fail(w, "RequestRefund", "Could not request refund", err)
		return
	}

	h.Logger.Info("REFUND", fmt.Sprintf("RequestRefund: booking %s refund of %.2f pending", b.BookingID, b.Refund.Amount))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Refund requested", b))
}

func (h *Handler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	status := models.RefundStatus(r.URL.Query().Get("status"))
	vertical := models.Vertical(r.URL.Query().Get("vertical"))
	h.Logger.Info("REFUND", fmt.Sprintf("ListRefunds: status=%q vertical=%q", status, vertical))

	bookings, err := h.Service.ListRefunds(r.Context(), auth.ClaimsFromContext(r.Context()), status, vertical)
	if err != nil {
		h.fail(w, "ListRefunds", "Could not list refunds", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d refund requests", len(bookings)), bookings))
}

func (h *Handler) ApproveRefund(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")
	h.Logger.Info("REFUND", fmt.Sprintf("ApproveRefund: bookingId=%s", bookingID))

	b, err := h.Service.ApproveRefund(r.Context(), auth.ClaimsFromContext(r.Context()), bookingID)
	if err != nil {
		h.fail(w, "ApproveRefund", "Could not approve refund", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Refund approved", b))
}

func (h *Handler) RejectRefund(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")
	h.Logger.Info("REFUND", fmt.Sprintf("RejectRefund: bookingId=%s", bookingID))

	b, err := h.Service.RejectRefund(r.Context(), auth.ClaimsFromContext(r.Context()), bookingID)
	if err != nil {
		h.fail(w, "RejectRefund", "Could not reject refund", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Refund rejected", b))
}
