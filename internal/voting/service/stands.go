package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ms-voting/internal/apperr"
	"ms-voting/internal/kafka"
	"ms-voting/internal/lock"
	"ms-voting/internal/models"
)

func standLockKey(standID int64) string {
	return fmt.Sprintf("stand:%d", standID)
}

// AssignStand gives standID to clubID, unassigning any previous holder. A
// nil standID clears the club's assignment. Assignments of the same stand
// are serialized so two clubs can never end up holding it.
func (s *VotingService) AssignStand(ctx context.Context, actor models.Principal, clubID int64, standID *int64) error {
	if clubID <= 0 {
		return apperr.Invalid("club id is required")
	}

	if standID != nil {
		release, err := s.Locker.Acquire(ctx, standLockKey(*standID))
		if err != nil {
			if errors.Is(err, lock.ErrBusy) {
				return apperr.ErrStandBusy
			}
			return apperr.Storage("stand lock", err)
		}
		defer release()
	}

	cleared, err := s.Store.AssignStand(ctx, clubID, standID)
	if err != nil {
		return classify("assign stand", err)
	}

	target := "none"
	if standID != nil {
		target = fmt.Sprintf("stand %d", *standID)
	}
	s.Logger.LogAdmin("ASSIGN_STAND", actor.Username, fmt.Sprintf("club %d -> %s (%d previous holder cleared)", clubID, target, cleared))
	s.publishAdmin(ctx, kafka.EventStandAssigned, actor, map[string]interface{}{
		"club_id":  clubID,
		"stand_id": standID,
		"cleared":  cleared,
	})
	return nil
}

// ListStands returns the floor plan with each stand's current holder.
func (s *VotingService) ListStands(ctx context.Context) ([]models.StandView, error) {
	stands, holders, err := s.Store.ListStands(ctx)
	if err != nil {
		return nil, classify("list stands", err)
	}

	views := make([]models.StandView, 0, len(stands))
	for _, st := range stands {
		var club *models.StandClub
		if h, ok := holders[st.ID]; ok {
			h := h
			club = &h
		}
		views = append(views, st.View(club))
	}
	return views, nil
}

// UpdateStand applies a partial update to a single stand.
func (s *VotingService) UpdateStand(ctx context.Context, actor models.Principal, id int64, patch models.StandPatch) (*models.StandView, error) {
	stand, err := s.Store.GetStand(ctx, id)
	if err != nil {
		return nil, classify("update stand", err)
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Invalid("stand name cannot be empty")
		}
		stand.Name = name
	}
	if patch.Color != nil {
		stand.Color = *patch.Color
	}
	if patch.Available != nil {
		stand.Available = *patch.Available
	}
	if patch.Position != nil {
		stand.PosX, stand.PosY, stand.PosZ = patch.Position[0], patch.Position[1], patch.Position[2]
	}
	if patch.SizeMeters != nil {
		if patch.SizeMeters[0] <= 0 || patch.SizeMeters[1] <= 0 {
			return nil, apperr.Invalid("stand size must be positive")
		}
		stand.WidthM, stand.DepthM = patch.SizeMeters[0], patch.SizeMeters[1]
	}

	if err := s.Store.UpdateStand(ctx, stand); err != nil {
		return nil, classify("update stand", err)
	}
	s.Logger.LogAdmin("UPDATE_STAND", actor.Username, fmt.Sprintf("stand %d updated", id))

	view := stand.View(nil)
	return &view, nil
}
