package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"resort-booking/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// Create → insert a new catalog entry
func (d *DB) Create(ctx context.Context, entry models.CatalogEntry) error {
	_, err := d.Bun.NewInsert().Model(entry).Exec(ctx)
	return err
}

// Get → one entry of kind by id, models.ErrNotFound if missing
func (d *DB) Get(ctx context.Context, kind models.Vertical, id string) (models.CatalogEntry, error) {
	entry, err := models.NewCatalogEntry(kind)
	if err != nil {
		return nil, err
	}
	err = d.Bun.NewSelect().Model(entry).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List → entries of kind, newest first (events by date); inactive ones only when includeInactive
func (d *DB) List(ctx context.Context, kind models.Vertical, includeInactive bool) ([]models.CatalogEntry, error) {
	switch kind {
	case models.VerticalStay:
		var rows []models.Stay
		if err := d.listQuery(&rows, includeInactive, "created_at DESC").Scan(ctx); err != nil {
			return nil, err
		}
		out := make([]models.CatalogEntry, len(rows))
		for i := range rows {
			out[i] = &rows[i]
		}
		return out, nil
	case models.VerticalAdventure:
		var rows []models.Adventure
		if err := d.listQuery(&rows, includeInactive, "created_at DESC").Scan(ctx); err != nil {
			return nil, err
		}
		out := make([]models.CatalogEntry, len(rows))
		for i := range rows {
			out[i] = &rows[i]
		}
		return out, nil
	case models.VerticalEvent:
		var rows []models.Event
		if err := d.listQuery(&rows, includeInactive, "event_date ASC").Scan(ctx); err != nil {
			return nil, err
		}
		out := make([]models.CatalogEntry, len(rows))
		for i := range rows {
			out[i] = &rows[i]
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown catalog kind %q", models.ErrValidation, kind)
}

func (d *DB) listQuery(model interface{}, includeInactive bool, order string) *bun.SelectQuery {
	q := d.Bun.NewSelect().Model(model).Order(order)
	if !includeInactive {
		q = q.Where("active = ?", true)
	}
	return q
}

// Update → overwrite all columns except created_at
func (d *DB) Update(ctx context.Context, entry models.CatalogEntry) error {
	res, err := d.Bun.NewUpdate().
		Model(entry).
		ExcludeColumn("created_at").
		WherePK().
		Exec(ctx)
	return expectOneRow(res, err, entry)
}

// Deactivate → soft delete
func (d *DB) Deactivate(ctx context.Context, kind models.Vertical, id string, at time.Time) error {
	entry, err := models.NewCatalogEntry(kind)
	if err != nil {
		return err
	}
	entry.SetKey(id)
	res, err := d.Bun.NewUpdate().
		Model(entry).
		Set("active = ?", false).
		Set("updated_at = ?", at).
		WherePK().
		Exec(ctx)
	return expectOneRow(res, err, entry)
}

func expectOneRow(res sql.Result, err error, entry models.CatalogEntry) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entry.Kind(), entry.Key(), models.ErrNotFound)
	}
	return nil
}
