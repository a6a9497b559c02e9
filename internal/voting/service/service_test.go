package service_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-voting/internal/apperr"
	"ms-voting/internal/auth"
	"ms-voting/internal/database"
	"ms-voting/internal/kafka"
	"ms-voting/internal/logger"
	"ms-voting/internal/maintenance"
	"ms-voting/internal/models"
	"ms-voting/internal/voting/db"
	"ms-voting/internal/voting/service"
)

var (
	superadmin = models.Principal{AdminID: 1, Username: "root", Role: models.RoleSuperadmin}
	admin      = models.Principal{AdminID: 2, Username: "ops", Role: models.RoleAdmin}
)

// MockPublisher records published events
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishVoteCast(ctx context.Context, ev kafka.VoteCastEvent) error {
	return m.Called(ev).Error(0)
}

func (m *MockPublisher) PublishAdminEvent(ctx context.Context, ev kafka.AdminEvent) error {
	return m.Called(ev).Error(0)
}

func (m *MockPublisher) PublishIntegrityAlert(ctx context.Context, alert kafka.IntegrityAlert) error {
	return m.Called(alert).Error(0)
}

type countingNotifier struct {
	mu      sync.Mutex
	reasons []string
}

func (n *countingNotifier) Notify(reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reasons = append(n.reasons, reason)
}

type fixture struct {
	svc      *service.VotingService
	store    *db.DB
	gate     *maintenance.Gate
	notifier *countingNotifier
}

func setupService(t *testing.T) *fixture {
	bunDB, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	ctx := context.Background()
	require.NoError(t, database.CreateSchema(ctx, bunDB))
	_, err = database.SeedStands(ctx, bunDB)
	require.NoError(t, err)

	store := db.New(bunDB, 2*time.Second, 5*time.Millisecond)
	gate := maintenance.New()
	notifier := &countingNotifier{}
	svc := service.NewVotingService(store, service.Options{
		Gate:     gate,
		Notifier: notifier,
		Tokens:   auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour),
		Logger:   logger.NewNopLogger(),
	})
	return &fixture{svc: svc, store: store, gate: gate, notifier: notifier}
}

func (f *fixture) club(t *testing.T, name string) *models.Club {
	club, err := f.svc.CreateClub(context.Background(), admin, models.NewClub{Name: name})
	require.NoError(t, err)
	return club
}

func (f *fixture) ticket(t *testing.T, name, code string) models.Ticket {
	created, failures, err := f.store.CreateTickets(context.Background(), []models.Ticket{{DisplayName: name, Code: code}})
	require.NoError(t, err)
	require.Empty(t, failures)
	return created[0]
}

// assertCountsAgree checks that every club's counter matches both the
// tickets that chose it and its ledger rows.
func (f *fixture) assertCountsAgree(t *testing.T) {
	report, err := f.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Consistent, "discrepancies: %+v tickets: %v", report.Discrepancies, report.InconsistentTickets)
}

func TestVotingScenario(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	robotics := f.club(t, "Robotics")
	art := f.club(t, "Art")
	f.ticket(t, "Ada Lovelace", "AB12CD34")

	summary, err := f.svc.VerifyTicket(ctx, "ab12cd34")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", summary.DisplayName)
	assert.False(t, summary.HasVoted)

	receipt, err := f.svc.SubmitVote(ctx, "AB12CD34", robotics.ID, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, receipt.Success)
	assert.Equal(t, "Robotics", receipt.ClubName)

	_, err = f.svc.SubmitVote(ctx, "AB12CD34", art.ID, "10.0.0.1")
	assert.ErrorIs(t, err, apperr.ErrAlreadyVoted)

	_, err = f.svc.VerifyTicket(ctx, " ab12cd34 ")
	assert.ErrorIs(t, err, apperr.ErrAlreadyVoted)

	results, err := f.svc.ListResults(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), results.TotalVotes)
	require.Len(t, results.Clubs, 2)
	assert.Equal(t, "Robotics", results.Clubs[0].Name)
	assert.Equal(t, 100.0, results.Clubs[0].Percentage)
	assert.Equal(t, "Art", results.Clubs[1].Name)
	assert.Equal(t, int64(0), results.Clubs[1].VoteCount)
	assert.Equal(t, 0.0, results.Clubs[1].Percentage)

	f.assertCountsAgree(t)
}

func TestSubmitVote_Errors(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	club := f.club(t, "Robotics")
	f.ticket(t, "Ada", "AB12CD34")

	_, err := f.svc.SubmitVote(ctx, "   ", club.ID, "")
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	_, err = f.svc.SubmitVote(ctx, "AB12CD34", 0, "")
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	_, err = f.svc.SubmitVote(ctx, "NOPE0000", club.ID, "")
	assert.ErrorIs(t, err, apperr.ErrTicketNotFound)

	_, err = f.svc.SubmitVote(ctx, "AB12CD34", 999, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidClub)

	// The failed attempt must leave the ticket usable.
	_, err = f.svc.SubmitVote(ctx, "AB12CD34", club.ID, "")
	assert.NoError(t, err)
}

func TestSubmitVote_ConcurrentSameCode(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	a := f.club(t, "A")
	b := f.club(t, "B")
	c := f.club(t, "C")
	f.ticket(t, "Ada", "AB12CD34")
	clubs := []int64{a.ID, b.ID, c.ID}

	const n = 24
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, alreadyVoted := 0, 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(clubID int64) {
			defer wg.Done()
			_, err := f.svc.SubmitVote(ctx, "ab12cd34", clubID, "10.0.0.1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperr.ErrAlreadyVoted):
				alreadyVoted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(clubs[i%len(clubs)])
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, alreadyVoted)

	results, err := f.svc.ListResults(ctx)
	require.NoError(t, err)
	var sum int64
	for _, club := range results.Clubs {
		sum += club.VoteCount
	}
	assert.Equal(t, int64(1), sum)
	assert.Equal(t, int64(1), results.TotalVotes)
	f.assertCountsAgree(t)
}

func TestSubmitVote_ManyTicketsConcurrently(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	a := f.club(t, "A")
	b := f.club(t, "B")

	gen, err := f.svc.GenerateStudents(ctx, admin, 30)
	require.NoError(t, err)
	require.Equal(t, 30, gen.Count)

	var wg sync.WaitGroup
	for i, st := range gen.Students {
		clubID := a.ID
		if i%3 == 0 {
			clubID = b.ID
		}
		wg.Add(1)
		go func(code string, clubID int64) {
			defer wg.Done()
			_, err := f.svc.SubmitVote(ctx, code, clubID, "")
			assert.NoError(t, err)
		}(st.Code, clubID)
	}
	wg.Wait()

	results, err := f.svc.ListResults(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(30), results.TotalVotes)
	assert.Equal(t, "A", results.Clubs[0].Name)
	assert.Equal(t, int64(20), results.Clubs[0].VoteCount)
	assert.Equal(t, 66.7, results.Clubs[0].Percentage)
	assert.Equal(t, 33.3, results.Clubs[1].Percentage)
	f.assertCountsAgree(t)
}

func TestSubmitVote_RejectedDuringMaintenance(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	club := f.club(t, "A")
	f.ticket(t, "Ada", "AB12CD34")

	reopen := f.gate.Close()
	_, err := f.svc.SubmitVote(ctx, "AB12CD34", club.ID, "")
	assert.ErrorIs(t, err, apperr.ErrMaintenance)
	assert.True(t, apperr.KindOf(err).Retryable())
	reopen()

	_, err = f.svc.SubmitVote(ctx, "AB12CD34", club.ID, "")
	assert.NoError(t, err)
}

func TestResetVotes(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	club := f.club(t, "A")
	f.ticket(t, "Ada", "AB12CD34")
	f.ticket(t, "Bob", "AB12CD35")
	for _, code := range []string{"AB12CD34", "AB12CD35"} {
		_, err := f.svc.SubmitVote(ctx, code, club.ID, "")
		require.NoError(t, err)
	}

	_, err := f.svc.ResetVotes(ctx, admin)
	assert.ErrorIs(t, err, apperr.ErrSuperadminRequired)

	result, err := f.svc.ResetVotes(ctx, superadmin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.TicketsCleared)
	assert.Equal(t, int64(2), result.VotesDeleted)

	results, err := f.svc.ListResults(ctx)
	require.NoError(t, err)
	assert.Zero(t, results.TotalVotes)
	for _, c := range results.Clubs {
		assert.Zero(t, c.VoteCount)
	}

	summary, err := f.svc.VerifyTicket(ctx, "AB12CD34")
	require.NoError(t, err)
	assert.False(t, summary.HasVoted)
	f.assertCountsAgree(t)
	assert.Contains(t, f.notifier.reasons, "reset")
}

func TestResetVotes_ConcurrentWithVotes(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	club := f.club(t, "A")
	gen, err := f.svc.GenerateStudents(ctx, admin, 40)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, st := range gen.Students {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			_, err := f.svc.SubmitVote(ctx, code, club.ID, "")
			if err != nil {
				assert.ErrorIs(t, err, apperr.ErrMaintenance)
			}
		}(st.Code)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.svc.ResetVotes(ctx, superadmin)
		assert.NoError(t, err)
	}()
	wg.Wait()

	f.assertCountsAgree(t)
}

func TestAssignStand(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	a := f.club(t, "A")
	b := f.club(t, "B")
	stand := int64(7)

	require.NoError(t, f.svc.AssignStand(ctx, admin, a.ID, &stand))
	require.NoError(t, f.svc.AssignStand(ctx, admin, b.ID, &stand))

	views, err := f.svc.ListStands(ctx)
	require.NoError(t, err)
	holders := 0
	for _, v := range views {
		if v.Club != nil {
			holders++
			assert.Equal(t, stand, v.ID)
			assert.Equal(t, b.ID, v.Club.ID)
		}
	}
	assert.Equal(t, 1, holders)

	require.NoError(t, f.svc.AssignStand(ctx, admin, b.ID, nil))
	reloaded, err := f.store.GetClub(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.StandID)

	err = f.svc.AssignStand(ctx, admin, 999, &stand)
	assert.ErrorIs(t, err, apperr.ErrClubNotFound)
}

func TestAssignStand_ConcurrentSameStand(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	stand := int64(4)

	var clubs []*models.Club
	for _, name := range []string{"A", "B", "C", "D", "E", "F"} {
		clubs = append(clubs, f.club(t, name))
	}

	var wg sync.WaitGroup
	for _, c := range clubs {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			assert.NoError(t, f.svc.AssignStand(ctx, admin, id, &stand))
		}(c.ID)
	}
	wg.Wait()

	all, err := f.store.ListClubs(ctx)
	require.NoError(t, err)
	holders := 0
	for _, c := range all {
		if c.StandID != nil && *c.StandID == stand {
			holders++
		}
	}
	assert.Equal(t, 1, holders)
}

func TestDeleteAllClubs(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	a := f.club(t, "A")
	f.club(t, "B")
	stand := int64(1)
	require.NoError(t, f.svc.AssignStand(ctx, admin, a.ID, &stand))

	_, err := f.svc.DeleteAllClubs(ctx, admin)
	assert.ErrorIs(t, err, apperr.ErrSuperadminRequired)

	result, err := f.svc.DeleteAllClubs(ctx, superadmin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.ClubsDeleted)
	assert.GreaterOrEqual(t, result.StandsUnassigned, int64(1))

	views, err := f.svc.ListStands(ctx)
	require.NoError(t, err)
	for _, v := range views {
		assert.Nil(t, v.Club)
	}
}

func TestDeleteAllClubs_ConflictWhileVotesRecorded(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	club := f.club(t, "A")
	f.ticket(t, "Ada", "AB12CD34")
	_, err := f.svc.SubmitVote(ctx, "AB12CD34", club.ID, "")
	require.NoError(t, err)

	_, err = f.svc.DeleteAllClubs(ctx, superadmin)
	assert.ErrorIs(t, err, apperr.ErrVotesRecorded)

	_, err = f.svc.ResetVotes(ctx, superadmin)
	require.NoError(t, err)
	_, err = f.svc.DeleteAllClubs(ctx, superadmin)
	assert.NoError(t, err)
}

func TestDeleteAllStudents(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	club := f.club(t, "A")
	f.ticket(t, "Ada", "AB12CD34")
	f.ticket(t, "Bob", "AB12CD35")
	_, err := f.svc.SubmitVote(ctx, "AB12CD34", club.ID, "")
	require.NoError(t, err)

	_, err = f.svc.DeleteAllStudents(ctx, admin)
	assert.ErrorIs(t, err, apperr.ErrSuperadminRequired)

	result, err := f.svc.DeleteAllStudents(ctx, superadmin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.StudentsDeleted)
	assert.Equal(t, int64(1), result.VotesDeleted)

	results, err := f.svc.ListResults(ctx)
	require.NoError(t, err)
	assert.Zero(t, results.TotalVotes)
	assert.Zero(t, results.Clubs[0].VoteCount)
	f.assertCountsAgree(t)
}

func TestStudentsAndClubsCRUD(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	_, err := f.svc.GenerateStudents(ctx, admin, 0)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	_, err = f.svc.GenerateStudents(ctx, admin, 51)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	gen, err := f.svc.GenerateStudents(ctx, admin, 3)
	require.NoError(t, err)
	assert.Equal(t, "Student 001", gen.Students[0].DisplayName)
	assert.Equal(t, "Student 003", gen.Students[2].DisplayName)
	assert.Len(t, gen.Students[0].Code, 8)

	class := "10B"
	st, err := f.svc.CreateStudent(ctx, admin, models.NewStudent{Name: "Ada", Class: &class})
	require.NoError(t, err)
	assert.Equal(t, "10B", *st.ClassLabel)

	bulk, err := f.svc.CreateStudents(ctx, admin, []models.NewStudent{{Name: "Bob"}, {Name: " "}})
	require.NoError(t, err)
	assert.Equal(t, 1, bulk.Count)
	assert.Len(t, bulk.Failures, 1)

	count, err := f.svc.CountStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	clubs, err := f.svc.CreateClubs(ctx, admin, []models.NewClub{{Name: "Chess"}, {Name: ""}, {Name: "Drama"}})
	require.NoError(t, err)
	assert.Equal(t, 2, clubs.Count)
	assert.Equal(t, 1, clubs.Errors)

	listed, err := f.svc.ListClubs(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Chess", listed[0].Name)

	// Voting then deleting the voter withdraws the vote.
	_, err = f.svc.SubmitVote(ctx, st.Code, listed[0].ID, "")
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.DeleteClub(ctx, admin, listed[0].ID), apperr.ErrClubHasVotes)
	require.NoError(t, f.svc.DeleteStudent(ctx, admin, st.ID))
	require.NoError(t, f.svc.DeleteClub(ctx, admin, listed[0].ID))
	f.assertCountsAgree(t)

	stats, err := f.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalStudents)
	assert.Equal(t, 0, stats.VotedStudents)
	assert.Equal(t, 1, stats.TotalClubs)
}

func TestUpdateStand(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	name := "Main Stage"
	available := false
	size := [2]float64{20, 10}

	view, err := f.svc.UpdateStand(ctx, admin, 2, models.StandPatch{Name: &name, Available: &available, SizeMeters: &size})
	require.NoError(t, err)
	assert.Equal(t, "Main Stage", view.Name)
	assert.False(t, view.Available)
	assert.Equal(t, size, view.SizeMeters)

	empty := "  "
	_, err = f.svc.UpdateStand(ctx, admin, 2, models.StandPatch{Name: &empty})
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	_, err = f.svc.UpdateStand(ctx, admin, 99, models.StandPatch{})
	assert.ErrorIs(t, err, apperr.ErrStandNotFound)
}

func TestLogin(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)
	_, err = f.store.Bun.NewInsert().Model(&models.Admin{Username: "root", PasswordHash: hash, Role: models.RoleSuperadmin}).Exec(ctx)
	require.NoError(t, err)

	resp, err := f.svc.Login(ctx, models.LoginRequest{Username: "root", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperadmin, resp.Role)
	assert.NotEmpty(t, resp.Token)

	_, err = f.svc.Login(ctx, models.LoginRequest{Username: "root", Password: "wrong"})
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, models.LoginRequest{Username: "ghost", Password: "hunter22"})
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
}

func TestPublisherReceivesCommittedEvents(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	club := f.club(t, "Robotics")
	ticket := f.ticket(t, "Ada", "AB12CD34")

	publisher := new(MockPublisher)
	publisher.On("PublishVoteCast", mock.MatchedBy(func(ev kafka.VoteCastEvent) bool {
		return ev.TicketID == ticket.ID && ev.ClubID == club.ID && ev.OriginIP == "10.0.0.1"
	})).Return(errors.New("broker down")).Once()
	publisher.On("PublishAdminEvent", mock.MatchedBy(func(ev kafka.AdminEvent) bool {
		return ev.Type == kafka.EventVotesReset && ev.Actor == "root"
	})).Return(nil).Once()
	f.svc.Publisher = publisher

	// A publishing failure never undoes a committed vote.
	_, err := f.svc.SubmitVote(ctx, "AB12CD34", club.ID, "10.0.0.1")
	require.NoError(t, err)

	// Rejected votes publish nothing.
	_, err = f.svc.SubmitVote(ctx, "AB12CD34", club.ID, "10.0.0.1")
	require.ErrorIs(t, err, apperr.ErrAlreadyVoted)

	_, err = f.svc.ResetVotes(ctx, superadmin)
	require.NoError(t, err)

	publisher.AssertExpectations(t)
}

// failingStore returns an integrity violation from CastVote.
type failingStore struct {
	*db.DB
}

func (s failingStore) CastVote(ctx context.Context, ticketID, clubID int64, ip string, at time.Time) (*models.Club, error) {
	return nil, apperr.Wrap(apperr.KindIntegrityViolation, "VOTE_ROLLBACK_FAILED", "rollback failed", errors.New("conn reset"))
}

func TestSubmitVote_IntegrityViolationReachesOperatorChannel(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	club := f.club(t, "Robotics")
	ticket := f.ticket(t, "Ada", "AB12CD34")

	var logs bytes.Buffer
	publisher := new(MockPublisher)
	publisher.On("PublishIntegrityAlert", mock.MatchedBy(func(a kafka.IntegrityAlert) bool {
		return a.Operation == "SUBMIT_VOTE" && a.TicketID == ticket.ID && a.ClubID == club.ID
	})).Return(nil).Once()

	svc := service.NewVotingService(failingStore{f.store}, service.Options{
		Publisher: publisher,
		Logger:    logger.NewWriterLogger(&logs),
	})

	_, err := svc.SubmitVote(ctx, "AB12CD34", club.ID, "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindIntegrityViolation, apperr.KindOf(err))
	assert.NotContains(t, apperr.PublicMessage(err), "rollback")
	assert.Contains(t, logs.String(), "INTEGRITY")

	publisher.AssertExpectations(t)
}

func TestReconcile_ReportsDrift(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	club := f.club(t, "Robotics")

	publisher := new(MockPublisher)
	publisher.On("PublishIntegrityAlert", mock.Anything).Return(nil).Once()
	f.svc.Publisher = publisher

	// Counter bumped without a ticket or ledger row.
	_, err := f.store.Bun.NewUpdate().Model((*models.Club)(nil)).Set("vote_count = ?", 3).Where("id = ?", club.ID).Exec(ctx)
	require.NoError(t, err)

	report, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, models.ClubDiscrepancy{ClubID: club.ID, VoteCount: 3}, report.Discrepancies[0])

	publisher.AssertExpectations(t)
}
