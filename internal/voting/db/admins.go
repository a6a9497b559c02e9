package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-voting/internal/models"
)

// GetAdminByUsername returns sql.ErrNoRows (wrapped) for an unknown user so
// callers can answer with a generic credentials error.
func (d *DB) GetAdminByUsername(ctx context.Context, username string) (*models.Admin, error) {
	var admin models.Admin
	err := d.read(ctx, func(ctx context.Context) error {
		return d.Bun.NewSelect().Model(&admin).Where("username = ?", username).Limit(1).Scan(ctx)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("admin %q: %w", username, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &admin, nil
}
