package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-voting/internal/apperr"
	"ms-voting/internal/models"
)

func (d *DB) GetClub(ctx context.Context, id int64) (*models.Club, error) {
	var club models.Club
	err := d.read(ctx, func(ctx context.Context) error {
		return d.Bun.NewSelect().Model(&club).Where("id = ?", id).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrClubNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get club %d: %w", id, err)
	}
	return &club, nil
}

// ListClubs returns every club ordered by name.
func (d *DB) ListClubs(ctx context.Context) ([]models.Club, error) {
	clubs := make([]models.Club, 0)
	err := d.read(ctx, func(ctx context.Context) error {
		return d.Bun.NewSelect().Model(&clubs).OrderExpr("name ASC, id ASC").Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list clubs: %w", err)
	}
	return clubs, nil
}

// ListClubsByVotes returns clubs ordered by vote count, ties broken by name.
func (d *DB) ListClubsByVotes(ctx context.Context) ([]models.Club, error) {
	clubs := make([]models.Club, 0)
	err := d.read(ctx, func(ctx context.Context) error {
		return d.Bun.NewSelect().Model(&clubs).OrderExpr("vote_count DESC, name ASC, id ASC").Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list clubs by votes: %w", err)
	}
	return clubs, nil
}

func (d *DB) CountClubs(ctx context.Context) (int, error) {
	var count int
	err := d.read(ctx, func(ctx context.Context) error {
		var err error
		count, err = d.Bun.NewSelect().Model((*models.Club)(nil)).Count(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("count clubs: %w", err)
	}
	return count, nil
}

func (d *DB) CreateClub(ctx context.Context, club *models.Club) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	if _, err := d.Bun.NewInsert().Model(club).Exec(ctx); err != nil {
		return fmt.Errorf("create club: %w", err)
	}
	return nil
}

// CreateClubs inserts clubs in one transaction, skipping rows that fail.
func (d *DB) CreateClubs(ctx context.Context, clubs []models.Club) (created []models.Club, failures []string, err error) {
	err = d.inTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		for i := range clubs {
			c := clubs[i]
			itemErr := withSavepoint(ctx, tx, func() error {
				_, err := tx.NewInsert().Model(&c).Exec(ctx)
				return err
			})
			var failed *itemError
			switch {
			case errors.As(itemErr, &failed):
				failures = append(failures, fmt.Sprintf("%s: %v", c.Name, failed.err))
			case itemErr != nil:
				return itemErr
			default:
				created = append(created, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create clubs: %w", err)
	}
	return created, failures, nil
}

// DeleteClub removes a club that holds no votes.
func (d *DB) DeleteClub(ctx context.Context, id int64) error {
	err := d.inTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var club models.Club
		q := tx.NewSelect().Model(&club).Where("id = ?", id).Limit(1)
		if err := forUpdate(tx, q).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.ErrClubNotFound
			}
			return err
		}

		ledger, err := tx.NewSelect().Model((*models.Vote)(nil)).Where("club_id = ?", id).Count(ctx)
		if err != nil {
			return err
		}
		if club.VoteCount > 0 || ledger > 0 {
			return apperr.ErrClubHasVotes
		}

		_, err = tx.NewDelete().Model((*models.Club)(nil)).Where("id = ?", id).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete club %d: %w", id, err)
	}
	return nil
}

// DeleteAllClubs unassigns every stand and then deletes every club. It
// refuses while any vote is recorded, since the ledger and tickets would be
// left pointing at clubs that no longer exist.
func (d *DB) DeleteAllClubs(ctx context.Context) (models.DeleteAllClubsResult, error) {
	var result models.DeleteAllClubsResult
	err := d.inTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := lockVoteTables(ctx, tx); err != nil {
			return err
		}
		ledger, err := tx.NewSelect().Model((*models.Vote)(nil)).Count(ctx)
		if err != nil {
			return err
		}
		voted, err := tx.NewSelect().Model((*models.Ticket)(nil)).Where("has_voted = ?", true).Count(ctx)
		if err != nil {
			return err
		}
		if ledger > 0 || voted > 0 {
			return apperr.ErrVotesRecorded
		}

		res, err := tx.NewUpdate().
			Model((*models.Club)(nil)).
			Set("stand_id = NULL").
			Where("stand_id IS NOT NULL").
			Exec(ctx)
		if err != nil {
			return err
		}
		result.StandsUnassigned = rowsAffected(res)

		res, err = tx.NewDelete().Model((*models.Club)(nil)).Where("1 = 1").Exec(ctx)
		if err != nil {
			return err
		}
		result.ClubsDeleted = rowsAffected(res)
		return nil
	})
	if err != nil {
		return models.DeleteAllClubsResult{}, fmt.Errorf("delete all clubs: %w", err)
	}
	return result, nil
}
