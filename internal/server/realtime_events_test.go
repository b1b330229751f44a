package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"patronage/internal/notifications"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type realtimeEvent struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func nextEvent(t *testing.T, ch <-chan *redis.Message) realtimeEvent {
	t.Helper()
	select {
	case msg := <-ch:
		var ev realtimeEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for realtime event")
		return realtimeEvent{}
	}
}

func TestDonationPublishesRealtimeEvents(t *testing.T) {
	t.Parallel()
	_, rdb := newMiniredis(t)
	env := newTestEnv(t, rdb)
	author := env.user(t, "mika")
	fan := env.user(t, "ren")
	post := env.post(t, author, "dawn")

	ctx := context.Background()
	userSub := rdb.Subscribe(ctx, notifications.UserChannel(author.ID))
	defer func() { _ = userSub.Close() }()
	_, err := userSub.Receive(ctx)
	require.NoError(t, err)

	broadcastSub := rdb.Subscribe(ctx, notifications.BroadcastChannel)
	defer func() { _ = broadcastSub.Close() }()
	_, err = broadcastSub.Receive(ctx)
	require.NoError(t, err)

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost,
		fmt.Sprintf("/api/posts/%d/support", post.ID), env.token(t, fan.ID), map[string]any{"amount": 1000}, nil))

	received := nextEvent(t, userSub.Channel())
	assert.Equal(t, EventSupportReceived, received.Type)
	assert.Equal(t, "¥1,000", received.Payload["formatted_amount"])
	assert.EqualValues(t, 900, received.Payload["author_earning"])
	assert.EqualValues(t, fan.ID, received.Payload["supporter_id"])

	updated := nextEvent(t, broadcastSub.Channel())
	assert.Equal(t, EventRankingUpdated, updated.Type)
	assert.EqualValues(t, post.ID, updated.Payload["post_id"])
	assert.EqualValues(t, 1000, updated.Payload["post_total_support"])
}

func TestEncodeEvent(t *testing.T) {
	t.Parallel()
	msg, ok := encodeEvent(EventPostCreated, map[string]interface{}{"post_id": 7})
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"post_created","payload":{"post_id":7}}`, msg)

	_, ok = encodeEvent(EventPostCreated, map[string]interface{}{"bad": make(chan int)})
	assert.False(t, ok)
}
