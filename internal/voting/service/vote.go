package service

import (
	"context"
	"fmt"

	"ms-voting/internal/apperr"
	"ms-voting/internal/kafka"
	"ms-voting/internal/models"
	"ms-voting/internal/utils"
)

// VerifyTicket reports who a code belongs to without changing anything.
func (s *VotingService) VerifyTicket(ctx context.Context, code string) (*models.TicketSummary, error) {
	code = utils.NormalizeTicketCode(code)
	if code == "" {
		return nil, apperr.Invalid("ticket code is required")
	}

	ticket, err := s.Store.GetTicketByCode(ctx, code)
	if err != nil {
		return nil, classify("verify ticket", err)
	}
	if ticket.HasVoted {
		return nil, apperr.ErrAlreadyVoted
	}

	return &models.TicketSummary{
		ID:          ticket.ID,
		DisplayName: ticket.DisplayName,
		ClassLabel:  ticket.ClassLabel,
		HasVoted:    ticket.HasVoted,
	}, nil
}

// SubmitVote spends a ticket on one club. The storage write is a single
// transaction guarded by a conditional mark-spent, so concurrent submissions
// of the same code commit at most once.
func (s *VotingService) SubmitVote(ctx context.Context, code string, clubID int64, originIP string) (*models.VoteReceipt, error) {
	code = utils.NormalizeTicketCode(code)
	if code == "" || clubID <= 0 {
		return nil, apperr.Invalid("ticket code and club id are required")
	}

	leave, ok := s.Gate.Enter()
	if !ok {
		return nil, apperr.ErrMaintenance
	}
	defer leave()

	ticket, err := s.Store.GetTicketByCode(ctx, code)
	if err != nil {
		return nil, classify("submit vote", err)
	}
	ticketRef := fmt.Sprintf("ticket#%d", ticket.ID)
	if ticket.HasVoted {
		s.Logger.LogVote("REJECTED", ticketRef, "already voted")
		return nil, apperr.ErrAlreadyVoted
	}

	votedAt := s.now()
	club, err := s.Store.CastVote(ctx, ticket.ID, clubID, originIP, votedAt)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindIntegrityViolation {
			s.reportIntegrity(ctx, "SUBMIT_VOTE", err, ticket.ID, clubID)
			return nil, err
		}
		if apperr.KindOf(err) == apperr.KindConflict {
			s.Logger.LogVote("REJECTED", ticketRef, "already voted (concurrent submission)")
		}
		return nil, classify("submit vote", err)
	}

	s.Logger.LogVote("SUBMIT", ticketRef, fmt.Sprintf("vote recorded for club %d", club.ID))

	ev := kafka.VoteCastEvent{TicketID: ticket.ID, ClubID: club.ID, VotedAt: votedAt, OriginIP: originIP}
	if err := s.Publisher.PublishVoteCast(ctx, ev); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish vote for %s: %v", ticketRef, err))
	}
	s.Notifier.Notify("vote")

	return &models.VoteReceipt{
		Success:  true,
		Message:  "Vote submitted successfully",
		ClubID:   club.ID,
		ClubName: club.Name,
		VotedAt:  votedAt,
	}, nil
}
