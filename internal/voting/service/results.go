package service

import (
	"context"
	"math"

	"ms-voting/internal/models"
)

// ListResults returns clubs ranked by votes with their share of all voted
// tickets, rounded to one decimal.
func (s *VotingService) ListResults(ctx context.Context) (*models.Results, error) {
	clubs, err := s.Store.ListClubsByVotes(ctx)
	if err != nil {
		return nil, classify("list results", err)
	}
	total, err := s.Store.CountVotedTickets(ctx)
	if err != nil {
		return nil, classify("list results", err)
	}

	results := &models.Results{Clubs: make([]models.ClubResult, 0, len(clubs)), TotalVotes: total}
	for _, c := range clubs {
		results.Clubs = append(results.Clubs, models.ClubResult{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Logo:        c.Logo,
			VoteCount:   c.VoteCount,
			Percentage:  percentage(c.VoteCount, total),
		})
	}
	return results, nil
}

func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

// Statistics summarizes turnout for the admin dashboard.
func (s *VotingService) Statistics(ctx context.Context) (*models.Statistics, error) {
	total, voted, err := s.Store.CountTickets(ctx)
	if err != nil {
		return nil, classify("statistics", err)
	}
	clubs, err := s.Store.CountClubs(ctx)
	if err != nil {
		return nil, classify("statistics", err)
	}

	return &models.Statistics{
		TotalStudents:    total,
		VotedStudents:    voted,
		TotalClubs:       clubs,
		VotingPercentage: percentage(int64(voted), int64(total)),
	}, nil
}
