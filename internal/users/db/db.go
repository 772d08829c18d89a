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

// GetUserByEmail → models.ErrNotFound if no account uses email
func (d *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := d.Bun.NewSelect().Model(&u).Where("email = ?", email).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := d.Bun.NewSelect().Model(&u).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertVerifiedUser → create the account on first login, otherwise mark it verified.
// The role is only raised to admin, never lowered.
func (d *DB) UpsertVerifiedUser(ctx context.Context, u *models.User, at time.Time) (*models.User, error) {
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var existing models.User
		err := tx.NewSelect().Model(&existing).Where("email = ?", u.Email).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			u.Verified = true
			u.CreatedAt = at
			u.UpdatedAt = at
			_, err = tx.NewInsert().Model(u).Exec(ctx)
			return err
		}
		if err != nil {
			return err
		}

		existing.Verified = true
		existing.UpdatedAt = at
		if u.FullName != "" {
			existing.FullName = u.FullName
		}
		if u.Role == models.RoleAdmin {
			existing.Role = models.RoleAdmin
		}
		_, err = tx.NewUpdate().Model(&existing).
			Column("verified", "full_name", "role", "updated_at").
			WherePK().
			Exec(ctx)
		*u = existing
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}
