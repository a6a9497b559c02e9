package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-voting/internal/models"
)

// ClubTally is the three independent vote counts for one club.
type ClubTally struct {
	ClubID      int64 `bun:"id"`
	VoteCount   int64 `bun:"vote_count"`
	TicketCount int64 `bun:"ticket_count"`
	LedgerCount int64 `bun:"ledger_count"`
}

// ClubTallies reads every club's counter next to the counts derived from
// tickets and from the ledger, in one statement.
func (d *DB) ClubTallies(ctx context.Context) ([]ClubTally, error) {
	tallies := make([]ClubTally, 0)
	err := d.read(ctx, func(ctx context.Context) error {
		return d.Bun.NewRaw(`
			SELECT c.id, c.vote_count,
				(SELECT COUNT(*) FROM students s WHERE s.voted_for = c.id AND s.has_voted = ?) AS ticket_count,
				(SELECT COUNT(*) FROM votes v WHERE v.club_id = c.id) AS ledger_count
			FROM clubs c
			ORDER BY c.id`, true).
			Scan(ctx, &tallies)
	})
	if err != nil {
		return nil, fmt.Errorf("club tallies: %w", err)
	}
	return tallies, nil
}

// InconsistentTickets returns tickets whose voted flag, chosen club and
// timestamp disagree, or that voted without a ledger row, or that point at
// a club that no longer exists.
func (d *DB) InconsistentTickets(ctx context.Context) ([]int64, error) {
	ids := make([]int64, 0)
	err := d.read(ctx, func(ctx context.Context) error {
		return d.Bun.NewSelect().
			Model((*models.Ticket)(nil)).
			Column("id").
			WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.
					WhereOr("has_voted = ? AND (voted_for IS NULL OR voted_at IS NULL)", true).
					WhereOr("has_voted = ? AND (voted_for IS NOT NULL OR voted_at IS NOT NULL)", false).
					WhereOr("has_voted = ? AND NOT EXISTS (SELECT 1 FROM votes v WHERE v.student_id = ticket.id)", true).
					WhereOr("voted_for IS NOT NULL AND NOT EXISTS (SELECT 1 FROM clubs c WHERE c.id = ticket.voted_for)")
			}).
			OrderExpr("id ASC").
			Scan(ctx, &ids)
	})
	if err != nil {
		return nil, fmt.Errorf("inconsistent tickets: %w", err)
	}
	return ids, nil
}

// OrphanVotes counts ledger rows whose ticket or club is gone.
func (d *DB) OrphanVotes(ctx context.Context) (int, error) {
	var count int
	err := d.read(ctx, func(ctx context.Context) error {
		var err error
		count, err = d.Bun.NewSelect().
			Model((*models.Vote)(nil)).
			Where("NOT EXISTS (SELECT 1 FROM students s WHERE s.id = vote.student_id)").
			WhereOr("NOT EXISTS (SELECT 1 FROM clubs c WHERE c.id = vote.club_id)").
			Count(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("orphan votes: %w", err)
	}
	return count, nil
}
