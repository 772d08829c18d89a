package analytics_api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resort-booking/internal/analytics"
	"resort-booking/internal/auth"
	"resort-booking/internal/logger"
	"resort-booking/internal/models"
	"resort-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

type AnalyticsService interface {
	Summary(ctx context.Context, rng analytics.Range) ([]models.VerticalSummary, error)
	Daily(ctx context.Context, rng analytics.Range) ([]analytics.DailyRevenue, error)
}

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service AnalyticsService
	Logger  *logger.Logger
}

func NewHandler(service AnalyticsService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes mounts the admin analytics routes behind authn and the admin role.
func (h *Handler) RegisterRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Route("/api/admin/analytics", func(r chi.Router) {
		r.Use(authn, auth.RequireRole(models.RoleAdmin))
		r.Get("/", h.GetSummary)
		r.Get("/daily", h.GetDaily)
	})
}

// GetSummary answers per-vertical booking and refund totals. Optional from/to are YYYY-MM-DD;
// to is inclusive.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		h.Logger.Warn("ANALYTICS", fmt.Sprintf("GetSummary: %v", err))
		utils.WriteError(w, "Invalid date range", err)
		return
	}

	summary, err := h.Service.Summary(r.Context(), rng)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("GetSummary: %v", err))
		utils.WriteError(w, "Failed to load analytics", err)
		return
	}
	h.Logger.Info("ANALYTICS", fmt.Sprintf("Summary served for %d verticals", len(summary)))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking analytics", summary))
}

func (h *Handler) GetDaily(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		h.Logger.Warn("ANALYTICS", fmt.Sprintf("GetDaily: %v", err))
		utils.WriteError(w, "Invalid date range", err)
		return
	}

	daily, err := h.Service.Daily(r.Context(), rng)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("GetDaily: %v", err))
		utils.WriteError(w, "Failed to load analytics", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Daily revenue", daily))
}

func parseRange(r *http.Request) (analytics.Range, error) {
	var rng analytics.Range
	if v := r.URL.Query().Get("from"); v != "" {
		from, err := utils.ParseDate(v, time.UTC)
		if err != nil {
			return rng, fmt.Errorf("%w: from: %v", models.ErrValidation, err)
		}
		rng.From = from
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err := utils.ParseDate(v, time.UTC)
		if err != nil {
			return rng, fmt.Errorf("%w: to: %v", models.ErrValidation, err)
		}
		rng.To = to.AddDate(0, 0, 1)
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && !rng.From.Before(rng.To) {
		return rng, fmt.Errorf("%w: from must not be after to", models.ErrValidation)
	}
	return rng, nil
}
