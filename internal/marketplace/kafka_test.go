package marketplace

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMessage(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msg, err := eventMessage(Event{
		Event:     EventBidAccepted,
		TaskID:    "task-1",
		BidID:     "bid-1",
		ActorID:   "carol",
		Status:    "ACCEPTED",
		Timestamp: at,
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("task-1"), msg.Key, "events of one task share a partition")
	assert.Equal(t, at, msg.Time)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "bid.accepted", body["event"])
	assert.Equal(t, "bid-1", body["bid_id"])
	assert.Equal(t, "carol", body["actor_id"])
	assert.Equal(t, "ACCEPTED", body["status"])
}

func TestEventMessage_OmitsEmptyBid(t *testing.T) {
	msg, err := eventMessage(Event{Event: EventTaskStatusChanged, TaskID: "task-1", Status: "CANCELLED"})
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.NotContains(t, body, "bid_id")
	assert.False(t, msg.Time.IsZero())
}

func TestNopPublisher(t *testing.T) {
	var p EventPublisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
