package users_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"resort-booking/internal/auth"
	"resort-booking/internal/logger"
	"resort-booking/internal/models"
	"resort-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

type UserService interface {
	SendOTP(ctx context.Context, email, name string) error
	VerifyOTP(ctx context.Context, email, code string) (*models.TokenResponse, error)
	Me(ctx context.Context, caller *models.Claims) (*models.User, error)
}

type Handler struct {
	Service UserService
	Logger  *logger.Logger
}

func NewHandler(service UserService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

type sendOTPRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (h *Handler) RegisterRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/otp/send", h.SendOTP)
		r.Post("/otp/verify", h.VerifyOTP)
		r.With(authn).Get("/me", h.Me)
	})
}

func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("SendOTP: invalid body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	if err := h.Service.SendOTP(r.Context(), req.Email, req.Name); err != nil {
		h.fail(w, "SendOTP", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OTP sent", nil))
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("VerifyOTP: invalid body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	tok, err := h.Service.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.fail(w, "VerifyOTP", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Login successful", tok))
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Service.Me(r.Context(), auth.ClaimsFromContext(r.Context()))
	if err != nil {
		h.fail(w, "Me", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Current user", u))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := utils.WriteError(w, "Authentication request failed", err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		return
	}
	h.Logger.Warn("API", fmt.Sprintf("%s: %d %v", op, status, err))
}
