package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket is one voter's single-use credential. HasVoted, VotedForClubID and
// VotedAt always move together.
type Ticket struct {
	bun.BaseModel `bun:"table:students,alias:ticket"`

	ID             int64      `bun:"id,pk,autoincrement" json:"id"`
	DisplayName    string     `bun:"name,notnull" json:"name"`
	ClassLabel     *string    `bun:"class" json:"class"`
	Code           string     `bun:"ticket_code,unique,notnull" json:"ticket_code"`
	HasVoted       bool       `bun:"has_voted,notnull,default:false" json:"has_voted"`
	VotedForClubID *int64     `bun:"voted_for" json:"voted_for"`
	VotedAt        *time.Time `bun:"voted_at" json:"voted_at"`
	CreatedAt      time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// TicketSummary is what a voter sees after verifying a code.
type TicketSummary struct {
	ID          int64   `json:"id"`
	DisplayName string  `json:"name"`
	ClassLabel  *string `json:"class"`
	HasVoted    bool    `json:"has_voted"`
}

type VerifyTicketRequest struct {
	TicketCode string `json:"ticketCode"`
}

type VerifyTicketResponse struct {
	Valid   bool          `json:"valid"`
	Student TicketSummary `json:"student"`
}

type NewStudent struct {
	Name  string  `json:"name"`
	Class *string `json:"class"`
}

type BulkStudentsRequest struct {
	Students []NewStudent `json:"students"`
}

type BatchGenerateRequest struct {
	Count int `json:"count"`
}

type StudentsCreatedResponse struct {
	Success  bool     `json:"success"`
	Count    int      `json:"count"`
	Students []Ticket `json:"students"`
	Failures []string `json:"failures,omitempty"`
}
