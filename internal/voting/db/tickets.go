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

// GetTicketByCode looks a ticket up by its normalized code.
func (d *DB) GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.read(ctx, func(ctx context.Context) error {
		return d.Bun.NewSelect().
			Model(&ticket).
			Where("ticket_code = ?", code).
			Limit(1).
			Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket by code: %w", err)
	}
	return &ticket, nil
}

func (d *DB) GetTicketByID(ctx context.Context, id int64) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.read(ctx, func(ctx context.Context) error {
		return d.Bun.NewSelect().Model(&ticket).Where("id = ?", id).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %d: %w", id, err)
	}
	return &ticket, nil
}

// ListTickets returns every ticket ordered by class then name.
func (d *DB) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	tickets := make([]models.Ticket, 0)
	err := d.read(ctx, func(ctx context.Context) error {
		return d.Bun.NewSelect().
			Model(&tickets).
			OrderExpr("class ASC, name ASC, id ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

// CountTickets returns the number of tickets and how many of them voted.
func (d *DB) CountTickets(ctx context.Context) (total, voted int, err error) {
	err = d.read(ctx, func(ctx context.Context) error {
		var err error
		total, err = d.Bun.NewSelect().Model((*models.Ticket)(nil)).Count(ctx)
		if err != nil {
			return err
		}
		voted, err = d.Bun.NewSelect().Model((*models.Ticket)(nil)).Where("has_voted = ?", true).Count(ctx)
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("count tickets: %w", err)
	}
	return total, voted, nil
}

// CreateTickets inserts tickets in one transaction. A row that fails is
// reported in failures and skipped; the rest commit together.
func (d *DB) CreateTickets(ctx context.Context, tickets []models.Ticket) (created []models.Ticket, failures []string, err error) {
	err = d.inTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		for i := range tickets {
			t := tickets[i]
			itemErr := withSavepoint(ctx, tx, func() error {
				_, err := tx.NewInsert().Model(&t).Exec(ctx)
				return err
			})
			var failed *itemError
			switch {
			case errors.As(itemErr, &failed):
				failures = append(failures, fmt.Sprintf("%s: %v", t.DisplayName, failed.err))
			case itemErr != nil:
				return itemErr
			default:
				created = append(created, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create tickets: %w", err)
	}
	return created, failures, nil
}

// DeleteTicket removes one ticket. If it had voted, its ledger rows go with
// it and the club counter drops by the same amount, in one transaction.
func (d *DB) DeleteTicket(ctx context.Context, id int64) (votesDeleted int64, err error) {
	err = d.inTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var ticket models.Ticket
		q := tx.NewSelect().Model(&ticket).Where("id = ?", id).Limit(1)
		if err := forUpdate(tx, q).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.ErrStudentNotFound
			}
			return err
		}

		res, err := tx.NewDelete().Model((*models.Vote)(nil)).Where("student_id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		votesDeleted = rowsAffected(res)

		if ticket.HasVoted && ticket.VotedForClubID != nil && votesDeleted > 0 {
			_, err := tx.NewUpdate().
				Model((*models.Club)(nil)).
				Set("vote_count = vote_count - ?", votesDeleted).
				Where("id = ?", *ticket.VotedForClubID).
				Where("vote_count >= ?", votesDeleted).
				Exec(ctx)
			if err != nil {
				return err
			}
		}

		_, err = tx.NewDelete().Model((*models.Ticket)(nil)).Where("id = ?", id).Exec(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete ticket %d: %w", id, err)
	}
	return votesDeleted, nil
}

// DeleteAllTickets removes every ticket and ledger row and zeroes every club
// counter so the three vote counts stay equal.
func (d *DB) DeleteAllTickets(ctx context.Context) (models.DeleteAllStudentsResult, error) {
	var result models.DeleteAllStudentsResult
	err := d.inTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := lockVoteTables(ctx, tx); err != nil {
			return err
		}
		res, err := tx.NewDelete().Model((*models.Vote)(nil)).Where("1 = 1").Exec(ctx)
		if err != nil {
			return err
		}
		result.VotesDeleted = rowsAffected(res)

		res, err = tx.NewDelete().Model((*models.Ticket)(nil)).Where("1 = 1").Exec(ctx)
		if err != nil {
			return err
		}
		result.StudentsDeleted = rowsAffected(res)

		_, err = tx.NewUpdate().
			Model((*models.Club)(nil)).
			Set("vote_count = ?", 0).
			Where("vote_count <> ?", 0).
			Exec(ctx)
		return err
	})
	if err != nil {
		return models.DeleteAllStudentsResult{}, fmt.Errorf("delete all tickets: %w", err)
	}
	return result, nil
}
