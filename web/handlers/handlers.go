// Package handlers wires the kiosk HTTP API.
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/smartvendoplus/smartvendo/kiosk"
	"github.com/smartvendoplus/smartvendo/kiosk/database"
	"github.com/smartvendoplus/smartvendo/kiosk/database/repositories"
	"github.com/smartvendoplus/smartvendo/kiosk/device"
	"github.com/smartvendoplus/smartvendo/kiosk/engine"
	"github.com/smartvendoplus/smartvendo/kiosk/services"
	"github.com/smartvendoplus/smartvendo/kiosk/session"
	"github.com/smartvendoplus/smartvendo/kiosk/utils"
	"github.com/smartvendoplus/smartvendo/web/middleware"
	webmodels "github.com/smartvendoplus/smartvendo/web/models"
	webservices "github.com/smartvendoplus/smartvendo/web/services"
	webutils "github.com/smartvendoplus/smartvendo/web/utils"
)

// Server bundles everything the HTTP handlers need.
type Server struct {
	Config        *kiosk.Config
	DB            *database.DB
	Engine        *engine.Engine
	Accounts      repositories.AccountRepository
	Rewards       repositories.RewardRepository
	Records       repositories.RecordRepository
	Logs          repositories.SystemLogRepository
	Sessions      *session.Manager
	AdminSessions *webservices.SessionService
	Ingest        *device.Ingest
	Binder        *device.Binder
	Commander     *device.Commander
	Spaces        *services.SpacesService
	Processes     *utils.ProcessManager
	Version       string
}

// RegisterRoutes mounts every endpoint on the Fiber app.
func (s *Server) RegisterRoutes(app *fiber.App) {
	app.Get("/health", s.HandleHealth)

	api := app.Group("/api", middleware.APIRateLimit())

	rfid := api.Group("/rfid")
	rfid.Post("/read", s.HandleCardRead)
	rfid.Post("/register", s.HandleRegister)

	kioskAPI := api.Group("/kiosk")
	kioskAPI.Get("/session", s.HandleSessionStatus)
	kioskAPI.Post("/deposit", s.HandleDeposit)
	kioskAPI.Post("/redeem", s.HandleRedeem)
	kioskAPI.Post("/logout", s.HandleLogout)

	api.Get("/rewards", s.HandleListRewards)

	admin := api.Group("/admin")
	admin.Post("/login", middleware.AuthRateLimit(), s.HandleAdminLogin)
	admin.Post("/logout", s.HandleAdminLogout)

	authorized := admin.Group("", middleware.AdminRequired(s.AdminSessions))
	authorized.Get("/accounts", s.HandleListAccounts)
	authorized.Get("/accounts/:id/history", s.HandleAccountHistory)
	authorized.Patch("/accounts/:id/active", middleware.AuditLogMiddleware("account_toggle"), s.HandleSetAccountActive)

	authorized.Get("/rewards", s.HandleAdminListRewards)
	authorized.Get("/rewards/search", s.HandleSearchRewards)
	authorized.Post("/rewards", middleware.AuditLogMiddleware("reward_create"), s.HandleCreateReward)
	authorized.Patch("/rewards/:id", middleware.AuditLogMiddleware("reward_update"), s.HandleUpdateReward)
	authorized.Delete("/rewards/:id", middleware.AuditLogMiddleware("reward_delete"), s.HandleDeleteReward)
	authorized.Post("/rewards/:id/image", middleware.AuditLogMiddleware("reward_image"), s.HandleUploadRewardImage)

	authorized.Get("/stats", s.HandleStats)
	authorized.Get("/logs", s.HandleListLogs)
	authorized.Get("/status", s.HandleStatus)
	authorized.Post("/device/command", middleware.AuditLogMiddleware("device_command"), s.HandleDeviceCommand)
}

// HandleHealth reports liveness of the kiosk and its storage backend.
func (s *Server) HandleHealth(c *fiber.Ctx) error {
	health := webmodels.NewHealthCheck(s.Version)

	if err := s.DB.Ping(c.Context()); err != nil {
		health.AddComponent("database", "unhealthy", err.Error())
	} else {
		health.AddComponent("database", "healthy", "")
	}

	if s.Commander.Enabled() {
		health.AddComponent("controller", "healthy", "configured")
	} else {
		health.AddComponent("controller", "healthy", "not configured")
	}

	status := fiber.StatusOK
	if health.Status != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return webutils.SendJSON(c, status, health)
}

func (s *Server) terminalID(c *fiber.Ctx) string {
	return webutils.TerminalID(c, s.Config.Server.DefaultTerminal)
}
