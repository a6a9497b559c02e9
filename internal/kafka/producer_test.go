package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	votedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg, err := buildMessage("voting.votes", "2", VoteCastEvent{
		Type:     EventVoteCast,
		TicketID: 9,
		ClubID:   2,
		VotedAt:  votedAt,
	})
	require.NoError(t, err)

	assert.Equal(t, "voting.votes", msg.Topic)
	assert.Equal(t, "2", string(msg.Key))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "vote.cast", decoded["type"])
	assert.EqualValues(t, 9, decoded["ticket_id"])
	assert.NotContains(t, decoded, "origin_ip")
}

func TestBuildMessage_Unencodable(t *testing.T) {
	_, err := buildMessage("voting.admin", "k", AdminEvent{Result: make(chan int)})
	assert.Error(t, err)
}

func TestNoopPublisher(t *testing.T) {
	var p NoopPublisher
	ctx := context.Background()
	assert.NoError(t, p.PublishVoteCast(ctx, VoteCastEvent{}))
	assert.NoError(t, p.PublishAdminEvent(ctx, AdminEvent{}))
	assert.NoError(t, p.PublishIntegrityAlert(ctx, IntegrityAlert{}))
}
