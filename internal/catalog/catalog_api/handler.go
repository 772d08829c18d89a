package catalog_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"resort-booking/internal/auth"
	"resort-booking/internal/catalog"
	"resort-booking/internal/logger"
	"resort-booking/internal/models"
	"resort-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *catalog.CatalogService
	Logger  *logger.Logger
}

func NewHandler(service *catalog.CatalogService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes mounts /api/stays, /api/adventures and /api/events. Reads are
// public (optional reads attach claims when present); writes need an admin.
func (h *Handler) RegisterRoutes(r chi.Router, optional, authn func(http.Handler) http.Handler) {
	for path, kind := range map[string]models.Vertical{
		"/api/stays":      models.VerticalStay,
		"/api/adventures": models.VerticalAdventure,
		"/api/events":     models.VerticalEvent,
	} {
		r.Route(path, func(r chi.Router) {
			r.With(optional).Get("/", h.List(kind))
			r.With(optional).Get("/{id}", h.Get(kind))

			r.Group(func(r chi.Router) {
				r.Use(authn, auth.RequireRole(models.RoleAdmin))
				r.Post("/", h.Create(kind))
				r.Put("/{id}", h.Update(kind))
				r.Delete("/{id}", h.Delete(kind))
			})
		})
	}
}

func (h *Handler) List(kind models.Vertical) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := r.URL.Query().Get("all") == "true"
		h.Logger.Info("API", fmt.Sprintf("ListCatalog: kind=%s all=%t", kind, all))

		entries, err := h.Service.List(r.Context(), auth.ClaimsFromContext(r.Context()), kind, all)
		if err != nil {
			h.fail(w, "ListCatalog", err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d %s entries", len(entries), kind), entries))
	}
}

func (h *Handler) Get(kind models.Vertical) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		h.Logger.Info("API", fmt.Sprintf("GetCatalog: kind=%s id=%s", kind, id))

		entry, err := h.Service.Get(r.Context(), auth.ClaimsFromContext(r.Context()), kind, id)
		if err != nil {
			h.fail(w, "GetCatalog", err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Entry retrieved", entry))
	}
}

func (h *Handler) Create(kind models.Vertical) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, ok := h.decode(w, r, kind)
		if !ok {
			return
		}
		created, err := h.Service.Create(r.Context(), auth.ClaimsFromContext(r.Context()), entry)
		if err != nil {
			h.fail(w, "CreateCatalog", err)
			return
		}
		h.Logger.Info("API", fmt.Sprintf("CreateCatalog: %s %s created", kind, created.Key()))
		utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Entry created", created))
	}
}

func (h *Handler) Update(kind models.Vertical) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		entry, ok := h.decode(w, r, kind)
		if !ok {
			return
		}
		updated, err := h.Service.Update(r.Context(), auth.ClaimsFromContext(r.Context()), id, entry)
		if err != nil {
			h.fail(w, "UpdateCatalog", err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Entry updated", updated))
	}
}

func (h *Handler) Delete(kind models.Vertical) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		h.Logger.Info("API", fmt.Sprintf("DeleteCatalog: kind=%s id=%s", kind, id))

		if err := h.Service.Delete(r.Context(), auth.ClaimsFromContext(r.Context()), kind, id); err != nil {
			h.fail(w, "DeleteCatalog", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, kind models.Vertical) (models.CatalogEntry, bool) {
	entry, err := models.NewCatalogEntry(kind)
	if err != nil {
		h.fail(w, "DecodeCatalog", err)
		return nil, false
	}
	if err := json.NewDecoder(r.Body).Decode(entry); err != nil {
		h.Logger.Error("API", fmt.Sprintf("DecodeCatalog: failed to decode %s: %v", kind, err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return nil, false
	}
	return entry, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := utils.WriteError(w, "Catalog request failed", err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		return
	}
	h.Logger.Warn("API", fmt.Sprintf("%s: %d %v", op, status, err))
}
