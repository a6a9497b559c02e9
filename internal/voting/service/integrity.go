package service

import (
	"context"
	"fmt"

	"ms-voting/internal/apperr"
	"ms-voting/internal/models"
)

// Reconcile compares each club's counter with the tickets that chose it and
// with its ledger rows. Any disagreement is sent to the operator channel.
func (s *VotingService) Reconcile(ctx context.Context) (*models.IntegrityReport, error) {
	tallies, err := s.Store.ClubTallies(ctx)
	if err != nil {
		return nil, classify("reconcile", err)
	}
	badTickets, err := s.Store.InconsistentTickets(ctx)
	if err != nil {
		return nil, classify("reconcile", err)
	}
	orphans, err := s.Store.OrphanVotes(ctx)
	if err != nil {
		return nil, classify("reconcile", err)
	}

	report := &models.IntegrityReport{
		ClubsChecked:        len(tallies),
		Discrepancies:       make([]models.ClubDiscrepancy, 0),
		InconsistentTickets: badTickets,
		OrphanVotes:         orphans,
		CheckedAt:           s.now(),
	}
	for _, t := range tallies {
		if t.VoteCount != t.TicketCount || t.VoteCount != t.LedgerCount {
			report.Discrepancies = append(report.Discrepancies, models.ClubDiscrepancy{
				ClubID:      t.ClubID,
				VoteCount:   t.VoteCount,
				TicketCount: t.TicketCount,
				LedgerCount: t.LedgerCount,
			})
		}
	}
	report.Consistent = len(report.Discrepancies) == 0 && len(badTickets) == 0 && orphans == 0

	if !report.Consistent {
		detail := fmt.Sprintf("%d club discrepancies, %d inconsistent tickets, %d orphan votes",
			len(report.Discrepancies), len(badTickets), orphans)
		violation := apperr.New(apperr.KindIntegrityViolation, "RECONCILE_MISMATCH", detail)
		s.reportIntegrity(ctx, "RECONCILE", violation, 0, 0)
	}
	return report, nil
}
