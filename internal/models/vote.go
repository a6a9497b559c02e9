package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Vote is an append-only audit row. Live counts never read it.
type Vote struct {
	bun.BaseModel `bun:"table:votes,alias:vote"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	TicketID  int64     `bun:"student_id,notnull" json:"student_id"`
	ClubID    int64     `bun:"club_id,notnull" json:"club_id"`
	Timestamp time.Time `bun:"voted_at,notnull" json:"voted_at"`
	OriginIP  string    `bun:"ip_address" json:"ip_address"`
}

type SubmitVoteRequest struct {
	TicketCode string `json:"ticketCode"`
	ClubID     int64  `json:"clubId"`
}

// VoteReceipt confirms the club voted for and nothing else.
type VoteReceipt struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	ClubID   int64     `json:"club_id"`
	ClubName string    `json:"club_name"`
	VotedAt  time.Time `json:"voted_at"`
}

type ClubResult struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Logo        *string `json:"logo,omitempty"`
	VoteCount   int64   `json:"vote_count"`
	Percentage  float64 `json:"percentage"`
}

type Results struct {
	Clubs      []ClubResult `json:"clubs"`
	TotalVotes int64        `json:"totalVotes"`
}

type Statistics struct {
	TotalStudents    int     `json:"totalStudents"`
	VotedStudents    int     `json:"votedStudents"`
	TotalClubs       int     `json:"totalClubs"`
	VotingPercentage float64 `json:"votingPercentage"`
}

type ResetVotesResult struct {
	TicketsCleared int64 `json:"ticketsCleared"`
	ClubsZeroed    int64 `json:"clubsZeroed"`
	VotesDeleted   int64 `json:"votesDeleted"`
}

type DeleteAllClubsResult struct {
	ClubsDeleted     int64 `json:"clubsDeleted"`
	StandsUnassigned int64 `json:"standsUnassigned"`
}

type DeleteAllStudentsResult struct {
	StudentsDeleted int64 `json:"studentsDeleted"`
	VotesDeleted    int64 `json:"votesDeleted"`
}

// ClubDiscrepancy reports a club whose three vote counts disagree.
type ClubDiscrepancy struct {
	ClubID      int64 `json:"club_id"`
	VoteCount   int64 `json:"vote_count"`
	TicketCount int64 `json:"ticket_count"`
	LedgerCount int64 `json:"ledger_count"`
}

type IntegrityReport struct {
	Consistent          bool              `json:"consistent"`
	ClubsChecked        int               `json:"clubs_checked"`
	Discrepancies       []ClubDiscrepancy `json:"discrepancies"`
	InconsistentTickets []int64           `json:"inconsistent_tickets"`
	OrphanVotes         int               `json:"orphan_votes"`
	CheckedAt           time.Time         `json:"checked_at"`
}
