package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/api/middleware"
)

// CreateSession starts a research session
func CreateSession(svc ResearchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := middleware.GetUserContext(c)
		if !ok {
			return unauthorized(c)
		}

		var req struct {
			Title  string `json:"title"`
			Prompt string `json:"prompt"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		session, err := svc.StartSession(c.UserContext(), user, req.Title, req.Prompt)
		if err != nil {
			return writeError(c, err, session)
		}
		return c.Status(fiber.StatusCreated).JSON(session)
	}
}

// GetSessions returns the caller's sessions
func GetSessions(svc ResearchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := middleware.GetUserContext(c)
		if !ok {
			return unauthorized(c)
		}

		sessions, err := svc.ListSessions(c.UserContext(), user.UserID)
		if err != nil {
			return writeError(c, err, nil)
		}
		return c.JSON(fiber.Map{
			"sessions": sessions,
		})
	}
}

// GetSession returns a session with its refinements
func GetSession(svc ResearchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := middleware.GetUserContext(c)
		if !ok {
			return unauthorized(c)
		}

		session, err := svc.GetSession(c.UserContext(), user.UserID, c.Params("id"))
		if err != nil {
			return writeError(c, err, nil)
		}
		return c.JSON(session)
	}
}

// GetSessionEvents returns the session's event log
func GetSessionEvents(svc ResearchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := middleware.GetUserContext(c)
		if !ok {
			return unauthorized(c)
		}

		events, err := svc.SessionEvents(c.UserContext(), user.UserID, c.Params("id"))
		if err != nil {
			return writeError(c, err, nil)
		}
		return c.JSON(fiber.Map{
			"events": events,
		})
	}
}

// SubmitRefinement answers one clarification question
func SubmitRefinement(svc ResearchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := middleware.GetUserContext(c)
		if !ok {
			return unauthorized(c)
		}

		index, err := c.ParamsInt("index")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid question index",
			})
		}

		var req struct {
			Answer string `json:"answer"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		session, err := svc.SubmitRefinementAnswer(c.UserContext(), user, c.Params("id"), index, req.Answer)
		if err != nil {
			return writeError(c, err, session)
		}
		return c.JSON(session)
	}
}

// GetReport streams the session's PDF report
func GetReport(svc ResearchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := middleware.GetUserContext(c)
		if !ok {
			return unauthorized(c)
		}

		pdf, session, err := svc.GetReport(c.UserContext(), user.UserID, c.Params("id"))
		if err != nil {
			return writeError(c, err, nil)
		}

		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="research-`+session.ID+`.pdf"`)
		return c.Send(pdf)
	}
}

// GetUsage returns the caller's usage counters and limits
func GetUsage(svc UsageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := middleware.GetUserContext(c)
		if !ok {
			return unauthorized(c)
		}

		status, err := svc.Status(c.UserContext(), user.UserID)
		if err != nil {
			return writeError(c, err, nil)
		}
		return c.JSON(status)
	}
}
