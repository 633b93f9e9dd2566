package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/smartvendoplus/smartvendo/kiosk/device"
	webmodels "github.com/smartvendoplus/smartvendo/web/models"
	webutils "github.com/smartvendoplus/smartvendo/web/utils"
)

// HandleSessionStatus reports who is bound to this terminal, if anyone.
func (s *Server) HandleSessionStatus(c *fiber.Ctx) error {
	binding, ok := s.Sessions.Terminal(s.terminalID(c)).Peek()
	if !ok {
		return webutils.SendSuccess(c, fiber.Map{"bound": false}, "No active session")
	}

	account, err := s.Accounts.GetByID(c.Context(), binding.AccountID)
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to load account")
	}

	return webutils.SendSuccess(c, fiber.Map{
		"bound":   true,
		"session": binding,
		"account": webmodels.NewAccountView(account),
	}, "Session active")
}

// HandleDeposit credits the bound account for one recyclable item and kicks
// the shredder.
func (s *Server) HandleDeposit(c *fiber.Ctx) error {
	var req webmodels.DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return webutils.SendBadRequest(c, "Invalid request body", nil)
	}
	itemKind := strings.ToLower(strings.TrimSpace(req.ItemKind))
	if itemKind == "" {
		return webutils.SendBadRequest(c, "item_kind is required", nil)
	}

	accountID, ok := s.Sessions.Terminal(s.terminalID(c)).Active()
	if !ok {
		return webutils.SendUnauthorized(c, "No active session. Scan a card first.")
	}

	result, err := s.Engine.Deposit(c.Context(), accountID, itemKind)
	if err != nil {
		return webutils.SendEngineError(c, err)
	}

	s.Commander.SendAsync(device.CmdStartShredding)

	return webutils.SendSuccess(c, result, "Deposit credited")
}

// HandleRedeem spends points of the bound account on one reward unit and
// fires the dispense relay.
func (s *Server) HandleRedeem(c *fiber.Ctx) error {
	var req webmodels.RedeemRequest
	if err := c.BodyParser(&req); err != nil {
		return webutils.SendBadRequest(c, "Invalid request body", nil)
	}
	rewardName := strings.ToLower(strings.TrimSpace(req.RewardName))
	if rewardName == "" {
		return webutils.SendBadRequest(c, "reward_name is required", nil)
	}

	accountID, ok := s.Sessions.Terminal(s.terminalID(c)).Active()
	if !ok {
		return webutils.SendUnauthorized(c, "No active session. Scan a card first.")
	}

	result, err := s.Engine.Redeem(c.Context(), accountID, rewardName)
	if err != nil {
		return webutils.SendEngineError(c, err)
	}

	s.Commander.SendAsync(device.CmdRelayOn)
	s.Commander.SendAsync(device.UpdateRewardCommand(result.RewardName, result.NewStock))

	return webutils.SendSuccess(c, result, "Reward redeemed")
}

// HandleLogout unbinds the terminal. Safe to call when nobody is bound.
func (s *Server) HandleLogout(c *fiber.Ctx) error {
	s.Sessions.Terminal(s.terminalID(c)).Unbind()
	return webutils.SendSuccess(c, nil, "Session ended")
}

// HandleListRewards returns the active catalog for the kiosk screen.
func (s *Server) HandleListRewards(c *fiber.Ctx) error {
	rewards, err := s.Rewards.ListActive(c.Context())
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to load rewards")
	}
	return webutils.SendSuccess(c, rewards, "")
}
