package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/smartvendoplus/smartvendo/web/utils"
)

// LoggingMiddleware logs HTTP requests in a structured format
func LoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start)
		statusCode := c.Response().StatusCode()

		logLevel := slog.LevelInfo
		if statusCode >= 400 && statusCode < 500 {
			logLevel = slog.LevelWarn
		} else if statusCode >= 500 {
			logLevel = slog.LevelError
		}

		logger := slog.With(
			slog.String("type", "http"),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", statusCode),
			slog.Duration("duration", duration),
			slog.String("ip", utils.GetIPAddress(c)),
			slog.Int("size", len(c.Response().Body())),
		)

		if terminalID := c.Get("X-Terminal-ID"); terminalID != "" {
			logger = logger.With(slog.String("terminal_id", terminalID))
		}
		if err != nil {
			logger = logger.With(slog.String("error", err.Error()))
		}

		message := "HTTP request processed"
		if err != nil {
			message = "HTTP request failed"
		}
		logger.Log(c.Context(), logLevel, message)

		return err
	}
}

// AuditLogMiddleware logs administrative actions with their outcome.
func AuditLogMiddleware(action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		statusCode := c.Response().StatusCode()
		success := err == nil && statusCode >= 200 && statusCode < 300

		slog.Info("Admin action completed",
			slog.String("type", "http"),
			slog.String("action", action),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Bool("success", success),
			slog.Int("status", statusCode),
			slog.Duration("duration", time.Since(start)),
			slog.String("ip", utils.GetIPAddress(c)),
		)

		return err
	}
}
