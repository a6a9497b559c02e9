package service

import (
	"context"
	"fmt"

	"ms-voting/internal/apperr"
	"ms-voting/internal/kafka"
	"ms-voting/internal/models"
)

// runBulk closes the vote gate for the duration of fn. Votes that arrive
// meanwhile are turned away with a retryable error instead of waiting.
func (s *VotingService) runBulk(actor models.Principal, action string, fn func() error) error {
	if !actor.IsSuperadmin() {
		s.Logger.LogSecurity("BULK_DENIED", fmt.Sprintf("%s (%s) attempted %s", actor.Username, actor.Role, action))
		return apperr.ErrSuperadminRequired
	}

	reopen := s.Gate.Close()
	defer reopen()
	s.Logger.LogAdmin(action, actor.Username, "maintenance gate closed")
	return fn()
}

// ResetVotes clears every ticket, counter and ledger row as one unit.
func (s *VotingService) ResetVotes(ctx context.Context, actor models.Principal) (*models.ResetVotesResult, error) {
	var result models.ResetVotesResult
	err := s.runBulk(actor, "RESET_VOTES", func() error {
		var err error
		result, err = s.Store.ResetVotes(ctx)
		return err
	})
	if err != nil {
		return nil, classify("reset votes", err)
	}

	s.Logger.LogAdmin("RESET_VOTES", actor.Username, fmt.Sprintf("cleared %d tickets, zeroed %d clubs, deleted %d votes",
		result.TicketsCleared, result.ClubsZeroed, result.VotesDeleted))
	s.publishAdmin(ctx, kafka.EventVotesReset, actor, result)
	s.Notifier.Notify("reset")
	return &result, nil
}

// DeleteAllClubs unassigns every stand and deletes every club.
func (s *VotingService) DeleteAllClubs(ctx context.Context, actor models.Principal) (*models.DeleteAllClubsResult, error) {
	var result models.DeleteAllClubsResult
	err := s.runBulk(actor, "DELETE_ALL_CLUBS", func() error {
		var err error
		result, err = s.Store.DeleteAllClubs(ctx)
		return err
	})
	if err != nil {
		return nil, classify("delete all clubs", err)
	}

	s.Logger.LogAdmin("DELETE_ALL_CLUBS", actor.Username, fmt.Sprintf("deleted %d clubs, unassigned %d stands",
		result.ClubsDeleted, result.StandsUnassigned))
	s.publishAdmin(ctx, kafka.EventClubsDeleted, actor, result)
	s.Notifier.Notify("clubs_deleted")
	return &result, nil
}

// DeleteAllStudents deletes every ledger row and ticket and zeroes counters.
func (s *VotingService) DeleteAllStudents(ctx context.Context, actor models.Principal) (*models.DeleteAllStudentsResult, error) {
	var result models.DeleteAllStudentsResult
	err := s.runBulk(actor, "DELETE_ALL_STUDENTS", func() error {
		var err error
		result, err = s.Store.DeleteAllTickets(ctx)
		return err
	})
	if err != nil {
		return nil, classify("delete all students", err)
	}

	s.Logger.LogAdmin("DELETE_ALL_STUDENTS", actor.Username, fmt.Sprintf("deleted %d students, %d votes",
		result.StudentsDeleted, result.VotesDeleted))
	s.publishAdmin(ctx, kafka.EventStudentsDeleted, actor, result)
	s.Notifier.Notify("students_deleted")
	return &result, nil
}
