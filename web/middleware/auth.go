package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/smartvendoplus/smartvendo/web/services"
	"github.com/smartvendoplus/smartvendo/web/utils"
)

// AdminRequired ensures the request carries a valid admin session.
func AdminRequired(sessions *services.SessionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := sessions.GetSession(c)
		if err != nil {
			slog.Debug("Admin required: no valid session",
				slog.String("type", "http"),
				slog.String("error", err.Error()))
			return utils.SendUnauthorized(c, "Admin login required")
		}

		c.Locals("admin", session)
		return c.Next()
	}
}
