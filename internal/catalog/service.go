package catalog

import (
	"context"
	"fmt"
	"time"

	"resort-booking/internal/logger"
	"resort-booking/internal/models"
	"resort-booking/internal/utils"
)

type DBLayer interface {
	Create(ctx context.Context, entry models.CatalogEntry) error
	Get(ctx context.Context, kind models.Vertical, id string) (models.CatalogEntry, error)
	List(ctx context.Context, kind models.Vertical, includeInactive bool) ([]models.CatalogEntry, error)
	Update(ctx context.Context, entry models.CatalogEntry) error
	Deactivate(ctx context.Context, kind models.Vertical, id string, at time.Time) error
}

// CatalogService manages stays, adventures and events. Writes are admin-only.
type CatalogService struct {
	DB     DBLayer
	Logger *logger.Logger
	Now    func() time.Time
}

func NewCatalogService(db DBLayer, log *logger.Logger) *CatalogService {
	return &CatalogService{DB: db, Logger: log, Now: time.Now}
}

// List returns active entries; admins may ask for inactive ones too.
func (s *CatalogService) List(ctx context.Context, caller *models.Claims, kind models.Vertical, all bool) ([]models.CatalogEntry, error) {
	return s.DB.List(ctx, kind, all && caller.IsAdmin())
}

// Get hides inactive entries from non-admins.
func (s *CatalogService) Get(ctx context.Context, caller *models.Claims, kind models.Vertical, id string) (models.CatalogEntry, error) {
	entry, err := s.DB.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !entry.Item().Active && !caller.IsAdmin() {
		return nil, fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return entry, nil
}

// GetItem is the booking view of an entry.
func (s *CatalogService) GetItem(ctx context.Context, kind models.Vertical, id string) (models.CatalogItem, error) {
	entry, err := s.DB.Get(ctx, kind, id)
	if err != nil {
		return models.CatalogItem{}, err
	}
	return entry.Item(), nil
}

func (s *CatalogService) Create(ctx context.Context, caller *models.Claims, entry models.CatalogEntry) (models.CatalogEntry, error) {
	if !caller.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	entry.SetKey(utils.GenerateID())
	entry.Touch(s.Now().UTC())
	if err := s.DB.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("store %s: %w", entry.Kind(), err)
	}
	s.Logger.LogDatabase("INSERT", string(entry.Kind()), fmt.Sprintf("%s %q created by %s", entry.Key(), entry.Item().Name, caller.Email))
	return entry, nil
}

// Update replaces the entry with id by entry, keeping its creation time.
func (s *CatalogService) Update(ctx context.Context, caller *models.Claims, id string, entry models.CatalogEntry) (models.CatalogEntry, error) {
	if !caller.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.DB.Get(ctx, entry.Kind(), id); err != nil {
		return nil, err
	}
	entry.SetKey(id)
	entry.Touch(s.Now().UTC())
	if err := s.DB.Update(ctx, entry); err != nil {
		return nil, err
	}
	s.Logger.LogDatabase("UPDATE", string(entry.Kind()), fmt.Sprintf("%s updated by %s", id, caller.Email))
	return s.DB.Get(ctx, entry.Kind(), id)
}

// Delete deactivates the entry; bookings keep referring to it.
func (s *CatalogService) Delete(ctx context.Context, caller *models.Claims, kind models.Vertical, id string) error {
	if !caller.IsAdmin() {
		return models.ErrForbidden
	}
	if err := s.DB.Deactivate(ctx, kind, id, s.Now().UTC()); err != nil {
		return err
	}
	s.Logger.LogDatabase("DEACTIVATE", string(kind), fmt.Sprintf("%s deactivated by %s", id, caller.Email))
	return nil
}
