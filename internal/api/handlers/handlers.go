package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/providers"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/services"
)

// ResearchService is the research workflow exposed over HTTP
type ResearchService interface {
	StartSession(ctx context.Context, user services.Identity, title, prompt string) (*models.Session, error)
	SubmitRefinementAnswer(ctx context.Context, user services.Identity, sessionID string, index int, answer string) (*models.Session, error)
	GetSession(ctx context.Context, userID, sessionID string) (*models.Session, error)
	ListSessions(ctx context.Context, userID string) ([]models.Session, error)
	GetReport(ctx context.Context, userID, sessionID string) ([]byte, *models.Session, error)
	SessionEvents(ctx context.Context, userID, sessionID string) ([]models.SessionEvent, error)
}

// UsageService reports a user's standing against the usage limits
type UsageService interface {
	Status(ctx context.Context, userID string) (*services.UsageStatus, error)
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "Not authenticated",
	})
}

// writeError maps a service error to a response. When the workflow left a
// session behind, it is returned alongside the error.
func writeError(c *fiber.Ctx, err error, session *models.Session) error {
	status := fiber.StatusInternalServerError
	message := "Internal server error"

	var perr *providers.ProviderError
	switch {
	case errors.Is(err, services.ErrValidation):
		status, message = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrSessionNotFound):
		status, message = fiber.StatusNotFound, "Session not found"
	case errors.Is(err, services.ErrRefinementNotFound):
		status, message = fiber.StatusNotFound, "Refinement not found"
	case errors.Is(err, services.ErrReportNotFound):
		status, message = fiber.StatusNotFound, "Report not available"
	case errors.Is(err, services.ErrInvalidState):
		status, message = fiber.StatusConflict, err.Error()
	case errors.Is(err, services.ErrUsageDenied):
		status, message = fiber.StatusUnprocessableEntity, err.Error()
	case errors.As(err, &perr):
		status, message = fiber.StatusUnprocessableEntity, perr.Error()
	}

	// A failed session carries the user-facing reason.
	if session != nil && session.ErrorMessage != nil {
		message = *session.ErrorMessage
	}

	body := fiber.Map{"error": message}
	if perr != nil {
		body["reason"] = perr.Reason
	}
	if session != nil {
		body["session"] = session
	}
	return c.Status(status).JSON(body)
}
