package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/smartvendoplus/smartvendo/kiosk/identity"
	webmodels "github.com/smartvendoplus/smartvendo/web/models"
	webutils "github.com/smartvendoplus/smartvendo/web/utils"
)

// HandleCardRead accepts a raw UID report from the reader firmware. The scan
// is queued for the debounce/bind pipeline; the reader gets an immediate ack
// so it never blocks on kiosk-side work.
func (s *Server) HandleCardRead(c *fiber.Ctx) error {
	var req webmodels.ScanRequest
	if err := c.BodyParser(&req); err != nil {
		return webutils.SendBadRequest(c, "Invalid request body", nil)
	}
	if strings.TrimSpace(req.UID) == "" {
		return webutils.SendBadRequest(c, "uid is required", nil)
	}

	accepted := s.Ingest.Push(s.terminalID(c), req.UID)
	return webutils.SendSuccess(c, fiber.Map{"accepted": accepted}, "Scan queued")
}

// HandleRegister creates an account for a new card. The card UID comes from
// the request body, or from the last unknown card scanned on this terminal
// when the body omits it.
func (s *Server) HandleRegister(c *fiber.Ctx) error {
	var req webmodels.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return webutils.SendBadRequest(c, "Invalid request body", nil)
	}

	cardUID := identity.NormalizeUID(req.CardUID)
	if cardUID == "" {
		pending, ok := s.Binder.ClaimUnknown(s.terminalID(c))
		if !ok {
			return webutils.SendBadRequest(c, "No card to register. Scan the card first.", nil)
		}
		cardUID = pending
	}

	account, err := s.Engine.Register(c.Context(), cardUID, req.StudentID, req.Email)
	if err != nil {
		return webutils.SendEngineError(c, err)
	}

	// A freshly registered card starts a session right away.
	s.Sessions.Terminal(s.terminalID(c)).Bind(account.ID)

	return webutils.SendCreated(c, webmodels.NewAccountView(account), "Card registered")
}
