package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/api/middleware"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/services"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/statemachine"
)

// DefaultWatchInterval is how often a watched session is re-read
const DefaultWatchInterval = 2 * time.Second

// SessionSnapshot is one message pushed to a session watcher
type SessionSnapshot struct {
	Type    string          `json:"type"` // "session" or "error"
	Session *models.Session `json:"session,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// WatchSession pushes a snapshot each time the session changes and closes
// the socket once the session reaches COMPLETED or FAILED.
func WatchSession(svc ResearchService, interval time.Duration, logger *logrus.Logger) func(*websocket.Conn) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return func(c *websocket.Conn) {
		defer c.Close()

		identity, ok := c.Locals(middleware.UserContextKey).(services.Identity)
		if !ok || identity.UserID == "" {
			_ = c.WriteJSON(SessionSnapshot{Type: "error", Error: "Not authenticated"})
			return
		}
		sessionID := c.Params("id")
		log := logger.WithFields(logrus.Fields{
			"session_id": sessionID,
			"user_id":    identity.UserID,
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// A read error means the client went away.
		go func() {
			defer cancel()
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last time.Time
		var lastStatus models.SessionStatus
		for {
			session, err := svc.GetSession(ctx, identity.UserID, sessionID)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				message := "Failed to load session"
				if errors.Is(err, services.ErrSessionNotFound) {
					message = "Session not found"
				} else {
					log.WithError(err).Warn("Session watch read failed")
				}
				_ = c.WriteJSON(SessionSnapshot{Type: "error", Error: message})
				return
			}

			if session.Status != lastStatus || session.UpdatedAt.After(last) {
				if err := c.WriteJSON(SessionSnapshot{Type: "session", Session: session}); err != nil {
					return
				}
				last, lastStatus = session.UpdatedAt, session.Status
			}
			if statemachine.IsTerminal(session.Status) {
				log.WithField("status", session.Status).Debug("Session watch finished")
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}

