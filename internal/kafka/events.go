package kafka

import "time"

const (
	EventVoteCast          = "vote.cast"
	EventVotesReset        = "admin.votes_reset"
	EventClubsDeleted      = "admin.clubs_deleted"
	EventStudentsDeleted   = "admin.students_deleted"
	EventStandAssigned     = "admin.stand_assigned"
	EventIntegrityDetected = "integrity.violation"
)

// VoteCastEvent is emitted after a vote commits.
type VoteCastEvent struct {
	Type     string    `json:"type"`
	TicketID int64     `json:"ticket_id"`
	ClubID   int64     `json:"club_id"`
	VotedAt  time.Time `json:"voted_at"`
	OriginIP string    `json:"origin_ip,omitempty"`
}

// AdminEvent records a committed administrative mutation.
type AdminEvent struct {
	Type       string      `json:"type"`
	Actor      string      `json:"actor"`
	Result     interface{} `json:"result,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// IntegrityAlert goes to the operator channel.
type IntegrityAlert struct {
	Type       string    `json:"type"`
	Operation  string    `json:"operation"`
	Detail     string    `json:"detail"`
	TicketID   int64     `json:"ticket_id,omitempty"`
	ClubID     int64     `json:"club_id,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}
