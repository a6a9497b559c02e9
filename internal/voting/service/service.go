package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-voting/internal/apperr"
	"ms-voting/internal/auth"
	"ms-voting/internal/kafka"
	"ms-voting/internal/lock"
	"ms-voting/internal/logger"
	"ms-voting/internal/maintenance"
	"ms-voting/internal/models"
	"ms-voting/internal/voting/db"
)

// VotingStore is the storage the coordinators run against.
type VotingStore interface {
	GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error)
	GetTicketByID(ctx context.Context, id int64) (*models.Ticket, error)
	ListTickets(ctx context.Context) ([]models.Ticket, error)
	CountTickets(ctx context.Context) (total, voted int, err error)
	CreateTickets(ctx context.Context, tickets []models.Ticket) ([]models.Ticket, []string, error)
	DeleteTicket(ctx context.Context, id int64) (int64, error)
	DeleteAllTickets(ctx context.Context) (models.DeleteAllStudentsResult, error)

	GetClub(ctx context.Context, id int64) (*models.Club, error)
	ListClubs(ctx context.Context) ([]models.Club, error)
	ListClubsByVotes(ctx context.Context) ([]models.Club, error)
	CountClubs(ctx context.Context) (int, error)
	CreateClub(ctx context.Context, club *models.Club) error
	CreateClubs(ctx context.Context, clubs []models.Club) ([]models.Club, []string, error)
	DeleteClub(ctx context.Context, id int64) error
	DeleteAllClubs(ctx context.Context) (models.DeleteAllClubsResult, error)

	CastVote(ctx context.Context, ticketID, clubID int64, originIP string, at time.Time) (*models.Club, error)
	ResetVotes(ctx context.Context) (models.ResetVotesResult, error)
	CountVotedTickets(ctx context.Context) (int64, error)

	GetStand(ctx context.Context, id int64) (*models.Stand, error)
	ListStands(ctx context.Context) ([]models.Stand, map[int64]models.StandClub, error)
	UpdateStand(ctx context.Context, stand *models.Stand) error
	AssignStand(ctx context.Context, clubID int64, standID *int64) (int64, error)

	GetAdminByUsername(ctx context.Context, username string) (*models.Admin, error)

	ClubTallies(ctx context.Context) ([]db.ClubTally, error)
	InconsistentTickets(ctx context.Context) ([]int64, error)
	OrphanVotes(ctx context.Context) (int, error)
}

// EventPublisher receives committed events. Publishing never affects the
// outcome of the operation that produced the event.
type EventPublisher interface {
	PublishVoteCast(ctx context.Context, ev kafka.VoteCastEvent) error
	PublishAdminEvent(ctx context.Context, ev kafka.AdminEvent) error
	PublishIntegrityAlert(ctx context.Context, alert kafka.IntegrityAlert) error
}

// ResultsNotifier is told when tallies change.
type ResultsNotifier interface {
	Notify(reason string)
}

type Options struct {
	Gate      *maintenance.Gate
	Locker    lock.Locker
	Publisher EventPublisher
	Notifier  ResultsNotifier
	Tokens    *auth.TokenIssuer
	Logger    *logger.Logger
}

type VotingService struct {
	Store     VotingStore
	Gate      *maintenance.Gate
	Locker    lock.Locker
	Publisher EventPublisher
	Notifier  ResultsNotifier
	Tokens    *auth.TokenIssuer
	Logger    *logger.Logger

	now func() time.Time
}

type noopNotifier struct{}

func (noopNotifier) Notify(string) {}

func NewVotingService(store VotingStore, opts Options) *VotingService {
	s := &VotingService{
		Store:     store,
		Gate:      opts.Gate,
		Locker:    opts.Locker,
		Publisher: opts.Publisher,
		Notifier:  opts.Notifier,
		Tokens:    opts.Tokens,
		Logger:    opts.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if s.Gate == nil {
		s.Gate = maintenance.New()
	}
	if s.Locker == nil {
		s.Locker = lock.NewLocalLocker()
	}
	if s.Publisher == nil {
		s.Publisher = kafka.NoopPublisher{}
	}
	if s.Notifier == nil {
		s.Notifier = noopNotifier{}
	}
	if s.Logger == nil {
		s.Logger = logger.NewNopLogger()
	}
	return s
}

// classify keeps domain errors as they are and turns anything else into a
// retryable storage failure.
func classify(op string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Storage(op, err)
}

// reportIntegrity sends an integrity violation to the operator channel:
// the integrity log and the alerts topic.
func (s *VotingService) reportIntegrity(ctx context.Context, operation string, err error, ticketID, clubID int64) {
	s.Logger.LogIntegrity(operation, err.Error())

	alert := kafka.IntegrityAlert{
		Operation:  operation,
		Detail:     err.Error(),
		TicketID:   ticketID,
		ClubID:     clubID,
		DetectedAt: s.now(),
	}
	// The request context may be the reason the write failed.
	if pubErr := s.Publisher.PublishIntegrityAlert(context.WithoutCancel(ctx), alert); pubErr != nil {
		s.Logger.Error("INTEGRITY", fmt.Sprintf("Failed to publish integrity alert: %v", pubErr))
	}
}

func (s *VotingService) publishAdmin(ctx context.Context, eventType string, actor models.Principal, result interface{}) {
	ev := kafka.AdminEvent{Type: eventType, Actor: actor.Username, Result: result, OccurredAt: s.now()}
	if err := s.Publisher.PublishAdminEvent(ctx, ev); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s: %v", eventType, err))
	}
}
