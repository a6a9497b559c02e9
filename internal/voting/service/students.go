package service

import (
	"context"
	"fmt"
	"strings"

	"ms-voting/internal/apperr"
	"ms-voting/internal/models"
	"ms-voting/internal/utils"
)

const MaxBatchGenerate = 50

func (s *VotingService) ListStudents(ctx context.Context) ([]models.Ticket, error) {
	tickets, err := s.Store.ListTickets(ctx)
	if err != nil {
		return nil, classify("list students", err)
	}
	return tickets, nil
}

func (s *VotingService) CountStudents(ctx context.Context) (int, error) {
	total, _, err := s.Store.CountTickets(ctx)
	if err != nil {
		return 0, classify("count students", err)
	}
	return total, nil
}

// issueTickets assigns codes unique within the batch and stores the tickets.
func (s *VotingService) issueTickets(ctx context.Context, in []models.NewStudent) ([]models.Ticket, []string, error) {
	var failures []string
	seen := make(map[string]struct{}, len(in))
	tickets := make([]models.Ticket, 0, len(in))

	for i, st := range in {
		name := strings.TrimSpace(st.Name)
		if name == "" {
			failures = append(failures, fmt.Sprintf("item %d: student name is required", i+1))
			continue
		}

		code := utils.GenerateTicketCode()
		for {
			if _, dup := seen[code]; !dup {
				break
			}
			code = utils.GenerateTicketCode()
		}
		seen[code] = struct{}{}

		tickets = append(tickets, models.Ticket{DisplayName: name, ClassLabel: st.Class, Code: code})
	}

	created, storeFailures, err := s.Store.CreateTickets(ctx, tickets)
	if err != nil {
		return nil, nil, err
	}
	return created, append(failures, storeFailures...), nil
}

func (s *VotingService) CreateStudent(ctx context.Context, actor models.Principal, in models.NewStudent) (*models.Ticket, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Invalid("student name is required")
	}

	created, failures, err := s.issueTickets(ctx, []models.NewStudent{in})
	if err != nil {
		return nil, classify("create student", err)
	}
	if len(created) == 0 {
		return nil, apperr.Storage("create student", fmt.Errorf("%s", strings.Join(failures, "; ")))
	}

	s.Logger.LogAdmin("CREATE_STUDENT", actor.Username, fmt.Sprintf("ticket#%d issued", created[0].ID))
	return &created[0], nil
}

func (s *VotingService) CreateStudents(ctx context.Context, actor models.Principal, in []models.NewStudent) (*models.StudentsCreatedResponse, error) {
	if len(in) == 0 {
		return nil, apperr.Invalid("students array is required")
	}

	created, failures, err := s.issueTickets(ctx, in)
	if err != nil {
		return nil, classify("bulk create students", err)
	}

	s.Logger.LogAdmin("BULK_CREATE_STUDENTS", actor.Username, fmt.Sprintf("%d issued, %d failed", len(created), len(failures)))
	return &models.StudentsCreatedResponse{Success: true, Count: len(created), Students: created, Failures: failures}, nil
}

// GenerateStudents issues count placeholder tickets named "Student 001"...
func (s *VotingService) GenerateStudents(ctx context.Context, actor models.Principal, count int) (*models.StudentsCreatedResponse, error) {
	if count < 1 || count > MaxBatchGenerate {
		return nil, apperr.Invalid(fmt.Sprintf("count must be between 1 and %d", MaxBatchGenerate))
	}

	in := make([]models.NewStudent, count)
	for i := range in {
		in[i].Name = fmt.Sprintf("Student %03d", i+1)
	}

	created, failures, err := s.issueTickets(ctx, in)
	if err != nil {
		return nil, classify("generate students", err)
	}

	s.Logger.LogAdmin("GENERATE_STUDENTS", actor.Username, fmt.Sprintf("%d generated", len(created)))
	return &models.StudentsCreatedResponse{Success: true, Count: len(created), Students: created, Failures: failures}, nil
}

// DeleteStudent removes one ticket together with any vote it cast.
func (s *VotingService) DeleteStudent(ctx context.Context, actor models.Principal, id int64) error {
	votes, err := s.Store.DeleteTicket(ctx, id)
	if err != nil {
		return classify("delete student", err)
	}

	s.Logger.LogAdmin("DELETE_STUDENT", actor.Username, fmt.Sprintf("ticket#%d deleted (%d votes withdrawn)", id, votes))
	if votes > 0 {
		s.Notifier.Notify("student_deleted")
	}
	return nil
}
