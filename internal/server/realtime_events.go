package server

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"patronage/internal/middleware"
	"patronage/internal/notifications"
	"patronage/internal/observability"
	"patronage/internal/service"
)

// Event type constants prevent typos in event names.
const (
	EventSupportReceived = "support_received"
	EventRankingUpdated  = "ranking_updated"
	EventPostCreated     = "post_created"
)

const publishTimeout = 2 * time.Second

func (s *Server) publishUserEvent(userID uint, eventType string, payload map[string]interface{}) {
	message, ok := encodeEvent(eventType, payload)
	if !ok || !s.notifier.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.notifier.PublishUser(ctx, userID, message); err != nil {
		middleware.Logger.Warn("failed to publish user event",
			"event", eventType, "user_id", userID, "error", err)
	}
}

func (s *Server) publishBroadcastEvent(eventType string, payload map[string]interface{}) {
	message, ok := encodeEvent(eventType, payload)
	if !ok || !s.notifier.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.notifier.PublishBroadcast(ctx, message); err != nil {
		middleware.Logger.Warn("failed to publish broadcast event", "event", eventType, "error", err)
	}
}

func encodeEvent(eventType string, payload map[string]interface{}) (string, bool) {
	eventJSON, err := json.Marshal(map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		middleware.Logger.Error("failed to marshal event", "event", eventType, "error", err)
		return "", false
	}
	return string(eventJSON), true
}

// announceDonation tells the author about a new support and every client that
// rankings have moved.
func (s *Server) announceDonation(res *service.SubmitDonationResult) {
	s.publishUserEvent(res.AuthorID, EventSupportReceived, map[string]interface{}{
		"support_id":       res.SupportID,
		"post_id":          res.PostID,
		"supporter_id":     res.SupporterID,
		"amount":           res.Amount,
		"author_earning":   res.AuthorEarning,
		"formatted_amount": notifications.FormatAmount(res.Amount),
	})
	s.publishBroadcastEvent(EventRankingUpdated, map[string]interface{}{
		"post_id":            res.PostID,
		"author_id":          res.AuthorID,
		"post_total_support": res.PostTotalSupport,
	})
}

// observeRealtimeEvent counts events crossing Redis, whichever instance published them.
func (s *Server) observeRealtimeEvent(channel, _ string) {
	kind := "user"
	if !strings.HasPrefix(channel, "notifications:user:") {
		kind = "broadcast"
	}
	observability.LedgerEventsPublished.WithLabelValues("redis_"+kind, "observed").Inc()
}
