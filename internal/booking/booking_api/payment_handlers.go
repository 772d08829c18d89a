package booking_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"resort-booking/internal/auth"
	"resort-booking/internal/models"
	"resort-booking/internal/utils"
)

// VerifyPayment handles the browser's post-checkout callback for one vertical.
func (h *Handler) VerifyPayment(vertical models.Vertical) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := auth.ClaimsFromContext(r.Context())

		var req models.VerifyPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.Logger.Error("PAYMENT", fmt.Sprintf("VerifyPayment: failed to decode request body: %v", err))
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
			return
		}
		h.Logger.Info("PAYMENT", fmt.Sprintf("VerifyPayment: vertical=%s booking=%s order=%s payment=%s",
			vertical, req.BookingID, req.RazorpayOrderID, req.RazorpayPaymentID))

		b, err := h.Service.VerifyPayment(r.Context(), caller, vertical, req)
		if err != nil {
			h.fail(w, "VerifyPayment", "Payment verification failed", err)
			return
		}

		h.Logger.Info("PAYMENT", fmt.Sprintf("VerifyPayment: booking %s confirmed", b.BookingID))
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Payment verified, booking confirmed", b))
	}
}
