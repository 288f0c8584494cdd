package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// AuditConfig holds request logging configuration
type AuditConfig struct {
	Logger    *logrus.Logger
	SkipPaths []string
}

// AuditMiddleware logs every API request with the caller and outcome
func AuditMiddleware(config AuditConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, skipPath := range config.SkipPaths {
			if strings.HasPrefix(path, skipPath) {
				return c.Next()
			}
		}

		startTime := time.Now()
		err := c.Next()
		duration := time.Since(startTime)

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}

		fields := logrus.Fields{
			"method":      c.Method(),
			"path":        path,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
			"action":      determineAction(c.Method(), path),
		}
		if userID := c.Locals("user_id"); userID != nil {
			fields["user_id"] = userID
		}

		entry := config.Logger.WithFields(fields)
		switch {
		case err != nil:
			entry.WithError(err).Error("Request failed")
		case status >= 500:
			entry.Error("Request failed")
		case status >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
		return err
	}
}

// determineAction names the research operation a request performs
func determineAction(method, path string) string {
	switch {
	case strings.Contains(path, "/refinements/"):
		return "refinement.answer"
	case strings.HasSuffix(path, "/report"):
		return "report.download"
	case strings.HasSuffix(path, "/events"):
		return "session.events"
	case strings.Contains(path, "/usage"):
		return "usage.read"
	case strings.Contains(path, "/sessions") && method == fiber.MethodPost:
		return "session.create"
	case strings.Contains(path, "/sessions"):
		return "session.read"
	}
	return strings.ToLower(method)
}
