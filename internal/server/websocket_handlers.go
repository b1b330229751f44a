package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"patronage/internal/middleware"
	"patronage/internal/models"
	"patronage/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	wsTicketTTL   = 30 * time.Second
	wsPingPeriod  = 30 * time.Second
	wsWriteWindow = 5 * time.Second
)

func wsTicketKey(ticket string) string {
	return fmt.Sprintf("ws_ticket:%s", ticket)
}

// IssueWSTicket handles POST /api/ws/ticket. Browsers cannot set headers on a
// WebSocket handshake, so the client trades its bearer token for a short-lived
// single-use ticket and passes it as ?ticket= instead.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(fmt.Errorf("realtime is unavailable")))
	}

	ticket := uuid.NewString()
	if err := s.redis.Set(c.UserContext(), wsTicketKey(ticket), currentUserID(c), wsTicketTTL).Err(); err != nil {
		return models.Respond(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

// WebSocketUpgrade validates the handshake and consumes the ticket.
func (s *Server) WebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	ticket := c.Query("ticket")
	if ticket == "" || s.redis == nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("WebSocket ticket required"))
	}

	userID, err := s.redis.GetDel(c.UserContext(), wsTicketKey(ticket)).Uint64()
	if err != nil || userID == 0 {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
	}

	c.Locals("userID", uint(userID))
	return c.Next()
}

// WebSocketHandler streams the caller's notifications and public broadcasts.
// The connection is receive-only; inbound frames are read and discarded so a
// client close is noticed promptly.
func (s *Server) WebSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		observability.ActiveWebSockets.Inc()
		defer observability.ActiveWebSockets.Dec()

		userID, _ := conn.Locals("userID").(uint)

		parent := s.shutdownCtx
		if parent == nil {
			parent = context.Background()
		}
		ctx, cancel := context.WithCancel(parent)
		defer cancel()

		middleware.Logger.InfoContext(ctx, "realtime client connected", slog.Uint64("user_id", uint64(userID)))
		defer middleware.Logger.InfoContext(ctx, "realtime client disconnected", slog.Uint64("user_id", uint64(userID)))

		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		messages := s.notifier.Subscribe(ctx, userID)
		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-messages:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWindow))
				if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWindow))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	})
}
