package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-voting/internal/apperr"
	"ms-voting/internal/models"
)

func (d *DB) GetStand(ctx context.Context, id int64) (*models.Stand, error) {
	var stand models.Stand
	err := d.read(ctx, func(ctx context.Context) error {
		return d.Bun.NewSelect().Model(&stand).Where("id = ?", id).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrStandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stand %d: %w", id, err)
	}
	return &stand, nil
}

// ListStands returns every stand with the club currently holding it.
func (d *DB) ListStands(ctx context.Context) ([]models.Stand, map[int64]models.StandClub, error) {
	stands := make([]models.Stand, 0)
	holders := make(map[int64]models.StandClub)

	err := d.read(ctx, func(ctx context.Context) error {
		if err := d.Bun.NewSelect().Model(&stands).OrderExpr("id ASC").Scan(ctx); err != nil {
			return err
		}

		var clubs []models.Club
		err := d.Bun.NewSelect().
			Model(&clubs).
			Column("id", "name", "stand_id").
			Where("stand_id IS NOT NULL").
			Scan(ctx)
		if err != nil {
			return err
		}
		for _, c := range clubs {
			holders[*c.StandID] = models.StandClub{ID: c.ID, Name: c.Name}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list stands: %w", err)
	}
	return stands, holders, nil
}

// UpdateStand writes one stand's editable fields.
func (d *DB) UpdateStand(ctx context.Context, stand *models.Stand) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	stand.UpdatedAt = time.Now().UTC()
	res, err := d.Bun.NewUpdate().
		Model(stand).
		Column("name", "pos_x", "pos_y", "pos_z", "color", "available", "width_m", "depth_m", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update stand %d: %w", stand.ID, err)
	}
	if rowsAffected(res) == 0 {
		return apperr.ErrStandNotFound
	}
	return nil
}

// AssignStand points clubID at standID, first clearing any other club that
// holds the stand. A nil standID clears the club's own assignment. It
// returns how many other clubs were unassigned.
func (d *DB) AssignStand(ctx context.Context, clubID int64, standID *int64) (cleared int64, err error) {
	err = d.inTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.Club)(nil)).Where("id = ?", clubID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.ErrClubNotFound
		}

		if standID == nil {
			_, err := tx.NewUpdate().
				Model((*models.Club)(nil)).
				Set("stand_id = NULL").
				Where("id = ?", clubID).
				Exec(ctx)
			return err
		}

		exists, err = tx.NewSelect().Model((*models.Stand)(nil)).Where("id = ?", *standID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.ErrStandNotFound
		}

		res, err := tx.NewUpdate().
			Model((*models.Club)(nil)).
			Set("stand_id = NULL").
			Where("stand_id = ?", *standID).
			Where("id <> ?", clubID).
			Exec(ctx)
		if err != nil {
			return err
		}
		cleared = rowsAffected(res)

		_, err = tx.NewUpdate().
			Model((*models.Club)(nil)).
			Set("stand_id = ?", *standID).
			Where("id = ?", clubID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("assign stand: %w", err)
	}
	return cleared, nil
}
