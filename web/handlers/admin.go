package handlers

import (
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilm/fuzzy"
	"github.com/smartvendoplus/smartvendo/kiosk/database/models"
	"github.com/smartvendoplus/smartvendo/kiosk/device"
	"github.com/smartvendoplus/smartvendo/kiosk/database/repositories"
	webmodels "github.com/smartvendoplus/smartvendo/web/models"
	webutils "github.com/smartvendoplus/smartvendo/web/utils"
)

// HandleAdminLogin authenticates against the configured admin credentials
// and issues the signed session cookie.
func (s *Server) HandleAdminLogin(c *fiber.Ctx) error {
	var req webmodels.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return webutils.SendBadRequest(c, "Invalid request body", nil)
	}

	if !s.AdminSessions.Authenticate(req.Email, req.Password) {
		return webutils.SendUnauthorized(c, "Invalid credentials")
	}

	if err := s.AdminSessions.CreateSession(c, req.Email); err != nil {
		return webutils.SendInternalServerError(c, "Failed to create session")
	}

	return webutils.SendSuccess(c, fiber.Map{"email": req.Email}, "Logged in")
}

// HandleAdminLogout clears the admin session cookie.
func (s *Server) HandleAdminLogout(c *fiber.Ctx) error {
	s.AdminSessions.DestroySession(c)
	return webutils.SendSuccess(c, nil, "Logged out")
}

// HandleListAccounts returns every account, newest first.
func (s *Server) HandleListAccounts(c *fiber.Ctx) error {
	accounts, err := s.Accounts.GetAccounts(c.Context())
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to load accounts")
	}
	return webutils.SendSuccess(c, accounts, "")
}

// HandleAccountHistory returns an account's deposit and redemption history
// plus a ledger reconciliation check.
func (s *Server) HandleAccountHistory(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return webutils.SendBadRequest(c, "Invalid account id", nil)
	}

	account, err := s.Accounts.GetByID(c.Context(), id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return webutils.SendNotFound(c, "Account not found")
		}
		return webutils.SendInternalServerError(c, "Failed to load account")
	}

	limit := c.QueryInt("limit", 50)
	deposits, err := s.Records.ListDepositsByAccount(c.Context(), id, limit)
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to load deposits")
	}
	redemptions, err := s.Records.ListRedemptionsByAccount(c.Context(), id, limit)
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to load redemptions")
	}

	ledgerBalance, err := s.Records.ReconcileBalance(c.Context(), id)
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to reconcile balance")
	}

	return webutils.SendSuccess(c, fiber.Map{
		"account":        account,
		"deposits":       deposits,
		"redemptions":    redemptions,
		"ledger_balance": ledgerBalance,
		"reconciled":     ledgerBalance == account.Balance,
	}, "")
}

// HandleSetAccountActive toggles an account's active flag.
func (s *Server) HandleSetAccountActive(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return webutils.SendBadRequest(c, "Invalid account id", nil)
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return webutils.SendBadRequest(c, "Invalid request body", nil)
	}

	if err := s.Accounts.SetActive(c.Context(), id, req.Active); err != nil {
		if repositories.IsNotFound(err) {
			return webutils.SendNotFound(c, "Account not found")
		}
		return webutils.SendInternalServerError(c, "Failed to update account")
	}

	return webutils.SendSuccess(c, fiber.Map{"id": id, "active": req.Active}, "Account updated")
}

// HandleAdminListRewards returns the full catalog, soft-deleted rows
// included.
func (s *Server) HandleAdminListRewards(c *fiber.Ctx) error {
	rewards, err := s.Rewards.ListAll(c.Context())
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to load rewards")
	}
	return webutils.SendSuccess(c, rewards, "")
}

// rewardSearchItems implements fuzzy.Source over the catalog.
type rewardSearchItems []*models.Reward

func (items rewardSearchItems) Len() int { return len(items) }

func (items rewardSearchItems) String(i int) string {
	return strings.ToLower(items[i].Name + " " + items[i].DisplayName)
}

// HandleSearchRewards fuzzy-matches the catalog against the q parameter.
func (s *Server) HandleSearchRewards(c *fiber.Ctx) error {
	query := strings.ToLower(strings.TrimSpace(c.Query("q")))
	if query == "" {
		return webutils.SendBadRequest(c, "q is required", nil)
	}

	rewards, err := s.Rewards.ListAll(c.Context())
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to load rewards")
	}

	items := rewardSearchItems(rewards)
	matches := fuzzy.FindFrom(query, items)

	results := make([]*models.Reward, len(matches))
	for i, match := range matches {
		results[i] = items[match.Index]
	}
	return webutils.SendSuccess(c, results, "")
}

// HandleCreateReward adds a reward to the catalog.
func (s *Server) HandleCreateReward(c *fiber.Ctx) error {
	var req webmodels.RewardCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return webutils.SendBadRequest(c, "Invalid request body", nil)
	}

	name := strings.ToLower(strings.TrimSpace(req.Name))
	if name == "" {
		return webutils.SendBadRequest(c, "name is required", nil)
	}
	if req.Cost <= 0 {
		return webutils.SendBadRequest(c, "cost must be positive", nil)
	}
	if req.Stock < 0 {
		return webutils.SendBadRequest(c, "stock cannot be negative", nil)
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = name
	}

	reward := &models.Reward{
		Name:        name,
		DisplayName: displayName,
		Cost:        req.Cost,
		Stock:       req.Stock,
		Active:      true,
	}
	if err := s.Rewards.Create(c.Context(), reward); err != nil {
		if repositories.IsConflict(err) {
			return webutils.SendError(c, fiber.StatusConflict, "DUPLICATE_NAME",
				"A reward with this name already exists", nil)
		}
		return webutils.SendInternalServerError(c, "Failed to create reward")
	}

	return webutils.SendCreated(c, reward, "Reward created")
}

// HandleUpdateReward applies a partial update. Stock set here is an
// administrative restock; redemptions go through the transaction engine.
func (s *Server) HandleUpdateReward(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return webutils.SendBadRequest(c, "Invalid reward id", nil)
	}

	var update webmodels.RewardUpdateRequest
	if err := c.BodyParser(&update); err != nil {
		return webutils.SendBadRequest(c, "Invalid request body", nil)
	}
	if update.Empty() {
		return webutils.SendBadRequest(c, "No fields to update", nil)
	}
	if update.Cost != nil && *update.Cost <= 0 {
		return webutils.SendBadRequest(c, "cost must be positive", nil)
	}
	if update.Stock != nil && *update.Stock < 0 {
		return webutils.SendBadRequest(c, "stock cannot be negative", nil)
	}

	reward, err := s.Rewards.UpdatePartial(c.Context(), id, update)
	if err != nil {
		if repositories.IsNotFound(err) {
			return webutils.SendNotFound(c, "Reward not found")
		}
		return webutils.SendInternalServerError(c, "Failed to update reward")
	}

	if update.Stock != nil {
		s.Commander.SendAsync(device.UpdateRewardCommand(reward.Name, reward.Stock))
	}

	return webutils.SendSuccess(c, reward, "Reward updated")
}

// HandleDeleteReward soft-deletes a reward. History keeps referencing it.
func (s *Server) HandleDeleteReward(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return webutils.SendBadRequest(c, "Invalid reward id", nil)
	}

	if err := s.Rewards.SoftDelete(c.Context(), id); err != nil {
		return webutils.SendInternalServerError(c, "Failed to delete reward")
	}
	return webutils.SendSuccess(c, fiber.Map{"id": id}, "Reward removed from catalog")
}

// HandleUploadRewardImage stores the uploaded image in Spaces and records
// its URL on the reward.
func (s *Server) HandleUploadRewardImage(c *fiber.Ctx) error {
	if s.Spaces == nil {
		return webutils.SendError(c, fiber.StatusNotImplemented, "STORAGE_DISABLED",
			"Image storage is not configured", nil)
	}

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return webutils.SendBadRequest(c, "Invalid reward id", nil)
	}

	reward, err := s.Rewards.GetByID(c.Context(), id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return webutils.SendNotFound(c, "Reward not found")
		}
		return webutils.SendInternalServerError(c, "Failed to load reward")
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return webutils.SendBadRequest(c, "image file is required", nil)
	}
	const maxImageSize = 5 * 1024 * 1024
	if fileHeader.Size > maxImageSize {
		return webutils.SendBadRequest(c, "Image too large (max 5MB)", nil)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to read upload")
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to read upload")
	}

	url, err := s.Spaces.UploadRewardImage(c.Context(), reward.Name, imageData)
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to store image")
	}

	updated, err := s.Rewards.UpdatePartial(c.Context(), id, models.RewardUpdate{ImageRef: &url})
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to record image URL")
	}

	return webutils.SendSuccess(c, updated, "Image uploaded")
}

// HandleStats aggregates the admin dashboard numbers.
func (s *Server) HandleStats(c *fiber.Ctx) error {
	ctx := c.Context()

	totalAccounts, err := s.Accounts.GetAccountCount(ctx)
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to count accounts")
	}
	totalRewards, err := s.Rewards.GetRewardCount(ctx)
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to count rewards")
	}

	days := c.QueryInt("days", 7)
	daily, err := s.Records.DailyDepositStats(ctx, days)
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to load deposit stats")
	}
	byKind, err := s.Records.DepositsByKind(ctx)
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to load kind stats")
	}
	byReward, err := s.Records.RedemptionsByReward(ctx)
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to load redemption stats")
	}

	return webutils.SendSuccess(c, fiber.Map{
		"total_accounts":     totalAccounts,
		"total_rewards":      totalRewards,
		"daily_deposits":     daily,
		"deposits_by_kind":   byKind,
		"redemptions_reward": byReward,
	}, "")
}

// HandleListLogs returns recent event log entries, optionally filtered by
// event type.
func (s *Server) HandleListLogs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)

	if eventType := c.Query("type"); eventType != "" {
		entries, err := s.Logs.ListByType(c.Context(), eventType, limit)
		if err != nil {
			return webutils.SendInternalServerError(c, "Failed to load logs")
		}
		return webutils.SendSuccess(c, entries, "")
	}

	entries, err := s.Logs.ListRecent(c.Context(), limit)
	if err != nil {
		return webutils.SendInternalServerError(c, "Failed to load logs")
	}
	return webutils.SendSuccess(c, entries, "")
}

// HandleStatus reports the kiosk's background processes.
func (s *Server) HandleStatus(c *fiber.Ctx) error {
	return webutils.SendSuccess(c, fiber.Map{
		"version":   s.Version,
		"processes": s.Processes.Statuses(),
	}, "")
}

// HandleDeviceCommand forwards a raw command to the bin controller.
func (s *Server) HandleDeviceCommand(c *fiber.Ctx) error {
	var req webmodels.DeviceCommandRequest
	if err := c.BodyParser(&req); err != nil {
		return webutils.SendBadRequest(c, "Invalid request body", nil)
	}

	command := strings.TrimSpace(req.Command)
	if err := s.Commander.Send(c.Context(), command); err != nil {
		return webutils.SendBadRequest(c, err.Error(), nil)
	}
	return webutils.SendSuccess(c, fiber.Map{"command": command}, "Command sent")
}
