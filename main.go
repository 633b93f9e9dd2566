package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/smartvendoplus/smartvendo/kiosk"
	"github.com/smartvendoplus/smartvendo/kiosk/database"
	"github.com/smartvendoplus/smartvendo/kiosk/database/repositories"
	"github.com/smartvendoplus/smartvendo/kiosk/device"
	"github.com/smartvendoplus/smartvendo/kiosk/engine"
	"github.com/smartvendoplus/smartvendo/kiosk/events"
	"github.com/smartvendoplus/smartvendo/kiosk/identity"
	"github.com/smartvendoplus/smartvendo/kiosk/logger"
	"github.com/smartvendoplus/smartvendo/kiosk/services"
	"github.com/smartvendoplus/smartvendo/kiosk/session"
	"github.com/smartvendoplus/smartvendo/kiosk/utils"
	"github.com/smartvendoplus/smartvendo/web/handlers"
	"github.com/smartvendoplus/smartvendo/web/middleware"
	webservices "github.com/smartvendoplus/smartvendo/web/services"
	"golang.org/x/sync/errgroup"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// .env is optional; real deployments use systemd environment files.
	_ = godotenv.Load()

	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := kiosk.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	cfg.ApplyEnvOverrides()

	customHandler := logger.NewHandler("smartvendo", cfg.Log.Level)
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting SmartVendo kiosk",
		slog.String("version", version),
		slog.String("commit", commit))

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	// InitializeSchema also seeds the reward catalog.
	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Database schema initialized successfully")

	// Repositories
	accountRepo := repositories.NewAccountRepository(db.BunDB())
	rewardRepo := repositories.NewRewardRepository(db.BunDB())
	recordRepo := repositories.NewRecordRepository(db.BunDB())
	logRepo := repositories.NewSystemLogRepository(db.BunDB())

	// Event pipeline
	sinks := []events.Sink{events.NewStoreSink(logRepo)}
	if cfg.Alerts.WebhookURL != "" {
		webhookSink, err := events.NewWebhookSink(cfg.Alerts.WebhookURL, cfg.Alerts.LowStockThreshold)
		if err != nil {
			slog.Error("Failed to configure alert webhook", slog.Any("error", err))
			os.Exit(-1)
		}
		sinks = append(sinks, webhookSink)
		slog.Info("Low-stock alerts enabled")
	}
	dispatcher := events.NewDispatcher(sinks...)

	// Transaction engine
	txStore := repositories.NewLedgerTxStore(db.BunDB())
	eng := engine.New(txStore, cfg.Points.Awards, dispatcher, cfg.RegistrationValidity())

	// Card pipeline
	resolver := identity.NewResolver(accountRepo)
	sessions := session.NewManager(cfg.SessionTimeout())
	ingest := device.NewIngest()
	reader := device.NewReader(ingest, cfg.DebounceWindow())
	binder := device.NewBinder(reader.Scans(), resolver, sessions, dispatcher)
	commander := device.NewCommander(cfg.Device.ControllerURL)

	// Reward image storage is optional.
	var spaces *services.SpacesService
	if cfg.Spaces.Key != "" {
		spaces, err = services.NewSpacesService(
			cfg.Spaces.Key,
			cfg.Spaces.Secret,
			cfg.Spaces.Region,
			cfg.Spaces.Bucket,
			cfg.Spaces.RewardRoot,
		)
		if err != nil {
			slog.Error("Failed to configure image storage", slog.Any("error", err))
			os.Exit(-1)
		}
		slog.Info("Reward image storage enabled", slog.String("bucket", cfg.Spaces.Bucket))
	}

	processes := utils.NewProcessManager()
	processes.Start("event-dispatcher", "fans events out to sinks", dispatcher.Run)
	processes.Start("reader-feed", "debounces raw card scans", reader.Run)
	processes.Start("scan-binder", "binds scans to terminal sessions", binder.Run)

	adminSessions := webservices.NewSessionService(
		cfg.Session.AdminSecret,
		cfg.Admin.Email,
		cfg.Admin.Password,
		false,
	)

	server := &handlers.Server{
		Config:        cfg,
		DB:            db,
		Engine:        eng,
		Accounts:      accountRepo,
		Rewards:       rewardRepo,
		Records:       recordRepo,
		Logs:          logRepo,
		Sessions:      sessions,
		AdminSessions: adminSessions,
		Ingest:        ingest,
		Binder:        binder,
		Commander:     commander,
		Spaces:        spaces,
		Processes:     processes,
		Version:       version,
	}

	app := fiber.New(fiber.Config{
		AppName:      "SmartVendo " + version,
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(middleware.LoggingMiddleware())

	server.RegisterRoutes(app)

	g, runCtx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		slog.Info("HTTP server listening", slog.String("addr", cfg.Server.Addr))
		return app.Listen(cfg.Server.Addr)
	})

	g.Go(func() error {
		s := make(chan os.Signal, 1)
		signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-s:
			slog.Info("Shutting down", slog.String("signal", sig.String()))
		case <-runCtx.Done():
		}

		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("HTTP shutdown failed", slog.Any("error", err))
		}
		ingest.Close()
		if err := processes.Shutdown(15 * time.Second); err != nil {
			slog.Warn("Background processes did not stop cleanly", slog.Any("error", err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Kiosk exited with error", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Kiosk stopped")
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}
