package service

import (
	"context"
	"fmt"
	"strings"

	"ms-voting/internal/apperr"
	"ms-voting/internal/models"
)

func (s *VotingService) ListClubs(ctx context.Context) ([]models.Club, error) {
	clubs, err := s.Store.ListClubs(ctx)
	if err != nil {
		return nil, classify("list clubs", err)
	}
	return clubs, nil
}

func newClub(in models.NewClub) (models.Club, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Club{}, apperr.Invalid("club name is required")
	}
	return models.Club{Name: name, Description: in.Description, Logo: in.Logo}, nil
}

func (s *VotingService) CreateClub(ctx context.Context, actor models.Principal, in models.NewClub) (*models.Club, error) {
	club, err := newClub(in)
	if err != nil {
		return nil, err
	}
	if err := s.Store.CreateClub(ctx, &club); err != nil {
		return nil, classify("create club", err)
	}
	s.Logger.LogAdmin("CREATE_CLUB", actor.Username, fmt.Sprintf("club %d %q created", club.ID, club.Name))
	return &club, nil
}

// CreateClubs inserts a batch in one transaction. Invalid or failing items
// are reported individually and do not stop the rest.
func (s *VotingService) CreateClubs(ctx context.Context, actor models.Principal, in []models.NewClub) (*models.BulkClubsResponse, error) {
	if len(in) == 0 {
		return nil, apperr.Invalid("clubs array is required")
	}

	var failures []string
	valid := make([]models.Club, 0, len(in))
	for i, item := range in {
		club, err := newClub(item)
		if err != nil {
			failures = append(failures, fmt.Sprintf("item %d: %s", i+1, apperr.PublicMessage(err)))
			continue
		}
		valid = append(valid, club)
	}

	created, storeFailures, err := s.Store.CreateClubs(ctx, valid)
	if err != nil {
		return nil, classify("bulk create clubs", err)
	}
	failures = append(failures, storeFailures...)

	s.Logger.LogAdmin("BULK_CREATE_CLUBS", actor.Username, fmt.Sprintf("%d created, %d failed", len(created), len(failures)))
	return &models.BulkClubsResponse{
		Success:  true,
		Count:    len(created),
		Errors:   len(failures),
		Failures: failures,
		Message:  fmt.Sprintf("Successfully added %d clubs", len(created)),
	}, nil
}

// DeleteClub removes one club that has not received any votes.
func (s *VotingService) DeleteClub(ctx context.Context, actor models.Principal, id int64) error {
	if err := s.Store.DeleteClub(ctx, id); err != nil {
		return classify("delete club", err)
	}
	s.Logger.LogAdmin("DELETE_CLUB", actor.Username, fmt.Sprintf("club %d deleted", id))
	s.Notifier.Notify("club_deleted")
	return nil
}
