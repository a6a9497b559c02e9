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

// CastVote commits one vote as a single unit: the ticket is marked spent
// only if it is still unspent, the club counter is incremented and a ledger
// row is appended. Nothing is written unless all three succeed.
//
// A failed rollback after the ticket was marked spent cannot be proven
// harmless and is reported as an integrity violation.
func (d *DB) CastVote(ctx context.Context, ticketID, clubID int64, originIP string, at time.Time) (*models.Club, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	tx, err := d.Bun.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("cast vote: begin: %w", err)
	}

	club, spent, err := d.castVoteInTx(ctx, tx, ticketID, clubID, originIP, at)
	if err != nil {
		if rbErr := d.rollbackTx(tx); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) && spent {
			return nil, apperr.Wrap(apperr.KindIntegrityViolation, "VOTE_ROLLBACK_FAILED",
				fmt.Sprintf("ticket %d marked spent for club %d but rollback failed", ticketID, clubID),
				fmt.Errorf("%v; rollback: %w", err, rbErr))
		}
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("cast vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("cast vote: commit: %w", err)
	}
	return club, nil
}

func (d *DB) castVoteInTx(ctx context.Context, tx bun.Tx, ticketID, clubID int64, originIP string, at time.Time) (club *models.Club, spent bool, err error) {
	club = new(models.Club)
	if err := tx.NewSelect().Model(club).Where("id = ?", clubID).Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, apperr.ErrInvalidClub
		}
		return nil, false, err
	}

	res, err := tx.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("has_voted = ?", true).
		Set("voted_for = ?", clubID).
		Set("voted_at = ?", at).
		Where("id = ?", ticketID).
		Where("has_voted = ?", false).
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}
	if rowsAffected(res) == 0 {
		return nil, false, apperr.ErrAlreadyVoted
	}
	spent = true

	if d.afterMarkSpent != nil {
		if err := d.afterMarkSpent(ctx, tx); err != nil {
			return nil, spent, err
		}
	}

	res, err = tx.NewUpdate().
		Model((*models.Club)(nil)).
		Set("vote_count = vote_count + 1").
		Where("id = ?", clubID).
		Exec(ctx)
	if err != nil {
		return nil, spent, err
	}
	if rowsAffected(res) == 0 {
		return nil, spent, apperr.ErrInvalidClub
	}

	vote := &models.Vote{TicketID: ticketID, ClubID: clubID, Timestamp: at, OriginIP: originIP}
	if _, err := tx.NewInsert().Model(vote).Exec(ctx); err != nil {
		return nil, spent, err
	}

	club.VoteCount++
	return club, spent, nil
}

func (d *DB) rollbackTx(tx bun.Tx) error {
	if d.rollback != nil {
		return d.rollback(tx)
	}
	return tx.Rollback()
}

// ResetVotes clears every ticket, zeroes every counter and empties the
// ledger in one transaction.
func (d *DB) ResetVotes(ctx context.Context) (models.ResetVotesResult, error) {
	var result models.ResetVotesResult
	err := d.inTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := lockVoteTables(ctx, tx); err != nil {
			return err
		}
		res, err := tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("has_voted = ?", false).
			Set("voted_for = NULL").
			Set("voted_at = NULL").
			Where("has_voted = ? OR voted_for IS NOT NULL OR voted_at IS NOT NULL", true).
			Exec(ctx)
		if err != nil {
			return err
		}
		result.TicketsCleared = rowsAffected(res)

		res, err = tx.NewUpdate().
			Model((*models.Club)(nil)).
			Set("vote_count = ?", 0).
			Where("vote_count <> ?", 0).
			Exec(ctx)
		if err != nil {
			return err
		}
		result.ClubsZeroed = rowsAffected(res)

		res, err = tx.NewDelete().Model((*models.Vote)(nil)).Where("1 = 1").Exec(ctx)
		if err != nil {
			return err
		}
		result.VotesDeleted = rowsAffected(res)
		return nil
	})
	if err != nil {
		return models.ResetVotesResult{}, fmt.Errorf("reset votes: %w", err)
	}
	return result, nil
}

// CountVotedTickets is the results denominator.
func (d *DB) CountVotedTickets(ctx context.Context) (int64, error) {
	var count int
	err := d.read(ctx, func(ctx context.Context) error {
		var err error
		count, err = d.Bun.NewSelect().Model((*models.Ticket)(nil)).Where("has_voted = ?", true).Count(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("count voted tickets: %w", err)
	}
	return int64(count), nil
}

func (d *DB) ListVotes(ctx context.Context) ([]models.Vote, error) {
	votes := make([]models.Vote, 0)
	err := d.read(ctx, func(ctx context.Context) error {
		return d.Bun.NewSelect().Model(&votes).OrderExpr("id ASC").Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	return votes, nil
}
