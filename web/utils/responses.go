package utils

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/smartvendoplus/smartvendo/kiosk/engine"
	"github.com/smartvendoplus/smartvendo/web/models"
)

// SendJSON sends a JSON response using Fiber
func SendJSON(c *fiber.Ctx, statusCode int, data interface{}) error {
	return c.Status(statusCode).JSON(data)
}

// SendSuccess sends a successful JSON response
func SendSuccess(c *fiber.Ctx, data interface{}, message string) error {
	return SendJSON(c, http.StatusOK, models.NewSuccessResponse(data, message))
}

// SendCreated sends a created resource JSON response
func SendCreated(c *fiber.Ctx, data interface{}, message string) error {
	return SendJSON(c, http.StatusCreated, models.NewSuccessResponse(data, message))
}

// SendError sends an error JSON response
func SendError(c *fiber.Ctx, statusCode int, code, message string, details map[string]string) error {
	return SendJSON(c, statusCode, models.NewErrorResponse(code, message, details))
}

// SendBadRequest sends a bad request error response
func SendBadRequest(c *fiber.Ctx, message string, details map[string]string) error {
	return SendError(c, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

// SendUnauthorized sends an unauthorized error response
func SendUnauthorized(c *fiber.Ctx, message string) error {
	return SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

// SendForbidden sends a forbidden error response
func SendForbidden(c *fiber.Ctx, message string) error {
	return SendError(c, http.StatusForbidden, "FORBIDDEN", message, nil)
}

// SendNotFound sends a not found error response
func SendNotFound(c *fiber.Ctx, message string) error {
	return SendError(c, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// SendConflict sends a conflict error response
func SendConflict(c *fiber.Ctx, message string, details map[string]string) error {
	return SendError(c, http.StatusConflict, "CONFLICT", message, details)
}

// SendInternalServerError sends an internal server error response
func SendInternalServerError(c *fiber.Ctx, message string) error {
	return SendError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message, nil)
}

// engineStatus maps the transaction engine's stable codes to HTTP statuses.
var engineStatus = map[string]int{
	"STORE_UNAVAILABLE":      http.StatusServiceUnavailable,
	"ACCOUNT_NOT_FOUND":      http.StatusNotFound,
	"ACCOUNT_INACTIVE":       http.StatusForbidden,
	"ACCOUNT_EXPIRED":        http.StatusForbidden,
	"ACCOUNT_ALREADY_EXISTS": http.StatusConflict,
	"INVALID_ITEM_KIND":      http.StatusBadRequest,
	"REWARD_NOT_FOUND":       http.StatusNotFound,
	"OUT_OF_STOCK":           http.StatusConflict,
	"INSUFFICIENT_POINTS":    http.StatusUnprocessableEntity,
	"INSUFFICIENT_STOCK":     http.StatusConflict,
	"DUPLICATE_NAME":         http.StatusConflict,
	"CONFLICT":               http.StatusConflict,
}

// SendEngineError translates a transaction engine failure into the standard
// error envelope, preserving the engine's code for the UI.
func SendEngineError(c *fiber.Ctx, err error) error {
	var e *engine.Error
	if !errors.As(err, &e) {
		return SendInternalServerError(c, "Unexpected error")
	}

	status, ok := engineStatus[e.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return SendError(c, status, e.Code, e.Message, nil)
}

// GetIPAddress extracts the client IP address
func GetIPAddress(c *fiber.Ctx) string {
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := c.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return c.IP()
}

// TerminalID reads the terminal header set by each kiosk, falling back to
// the configured default so a single-terminal install needs no header.
func TerminalID(c *fiber.Ctx, fallback string) string {
	if id := c.Get("X-Terminal-ID"); id != "" {
		return id
	}
	return fallback
}
