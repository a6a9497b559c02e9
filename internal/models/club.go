package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Club struct {
	bun.BaseModel `bun:"table:clubs"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description *string   `bun:"description" json:"description"`
	Logo        *string   `bun:"logo" json:"logo"`
	VoteCount   int64     `bun:"vote_count,notnull,default:0" json:"vote_count"`
	StandID     *int64    `bun:"stand_id,unique" json:"stand_id"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type NewClub struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Logo        *string `json:"logo"`
}

type BulkClubsRequest struct {
	Clubs []NewClub `json:"clubs"`
}

type BulkClubsResponse struct {
	Success  bool     `json:"success"`
	Count    int      `json:"count"`
	Errors   int      `json:"errors"`
	Failures []string `json:"failures,omitempty"`
	Message  string   `json:"message"`
}

// AssignStandRequest carries a nullable stand id; null unassigns.
type AssignStandRequest struct {
	StandID *int64 `json:"stand_id"`
}
