package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/rankpulse/internal/domain"
)

func TestEventSink_PublishesJSON(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, EventsChannel)
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	matchID := uuid.New()
	sink := NewEventSink(client)
	require.NoError(t, sink.Send(ctx, domain.Event{
		Kind:       domain.EventVoteRecorded,
		Payload:    domain.VoteRecordedPayload{MatchID: matchID, Tie: true},
		OccurredAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}))

	select {
	case msg := <-sub.Channel():
		var got struct {
			Kind    string `json:"kind"`
			Payload struct {
				MatchID uuid.UUID `json:"matchId"`
				Tie     bool      `json:"tie"`
			} `json:"payload"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "vote_recorded", got.Kind)
		assert.Equal(t, matchID, got.Payload.MatchID)
		assert.True(t, got.Payload.Tie)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
}

func TestEventSink_BreakerOpensOnFailures(t *testing.T) {
	unreachable := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = unreachable.Close() }()

	sink := newEventSink(unreachable, gobreaker.Settings{
		Name:    "redis-events-test",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	for range 3 {
		err := sink.Send(context.Background(), domain.Event{Kind: domain.EventVoteRecorded})
		require.Error(t, err)
		assert.False(t, errors.Is(err, gobreaker.ErrOpenState))
	}

	assert.Equal(t, gobreaker.StateOpen, sink.State())
	err := sink.Send(context.Background(), domain.Event{Kind: domain.EventVoteRecorded})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, "redis", sink.Name())
}
