package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PropSync/app/controllers"
	"github.com/ManuelReschke/PropSync/internal/pkg/audit"
	"github.com/ManuelReschke/PropSync/internal/pkg/cache"
	"github.com/ManuelReschke/PropSync/internal/pkg/config"
	"github.com/ManuelReschke/PropSync/internal/pkg/database"
	"github.com/ManuelReschke/PropSync/internal/pkg/env"
	"github.com/ManuelReschke/PropSync/internal/pkg/ingest"
	"github.com/ManuelReschke/PropSync/internal/pkg/ledger"
	"github.com/ManuelReschke/PropSync/internal/pkg/logging"
	"github.com/ManuelReschke/PropSync/internal/pkg/projection"
	"github.com/ManuelReschke/PropSync/internal/pkg/reconcile"
	"github.com/ManuelReschke/PropSync/internal/pkg/router"
	"github.com/ManuelReschke/PropSync/internal/pkg/volumetrica"
)

func main() {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logWriter := logging.Setup(cfg.Log)

	db, err := database.Open(cfg.Database, cfg.Log.Level == "debug")
	if err != nil {
		log.Fatalf("Database unavailable: %v", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatalf("Auto-migration failed: %v", err)
		}
	}

	app := NewApplication(cfg, db, logWriter)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Errorf("Shutdown failed: %v", err)
		}
	}()

	if err := app.Listen(fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)); err != nil {
		log.Fatal(err)
	}
}

// NewApplication wires every component into a fiber app.
func NewApplication(cfg *config.Config, db *gorm.DB, logWriter io.Writer) *fiber.App {
	// Define possible base paths
	basePaths := []string{
		"./",     // Current directory
		"../../", // From cmd/propsync to project root
	}
	basePath := "./"
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs"); err == nil {
			basePath = path
			break
		}
	}

	client := volumetrica.NewClient(cfg.Volumetrica)
	repo := projection.NewRepository(db)
	projector := projection.NewService(repo)
	events := ledger.New(db)
	recorder := audit.NewRecorder(db)

	if (cfg.Webhook.AuthMode == config.AuthModeSecret && cfg.Webhook.Secret == "") ||
		(cfg.Webhook.AuthMode == config.AuthModeHMAC && cfg.Webhook.HMACSecret == "") {
		log.Warnf("Webhook %s mode has no secret configured; every delivery will be rejected", cfg.Webhook.AuthMode)
	}

	adminController := controllers.NewAdminController(controllers.AdminDeps{
		Reconcile:  reconcile.NewService(client, repo, projector, recorder),
		Upstream:   client,
		Ledger:     events,
		Repository: repo,
		Recorder:   projector,
		Audit:      recorder,
	})

	handlers := router.Handlers{
		Webhook:        controllers.NewWebhookController(ingest.NewService(cfg.Webhook, cfg.IsProduction(), events, projector, recorder)),
		Admin:          adminController,
		Health:         controllers.NewHealthController(db),
		AdminKeyHashes: cfg.AdminAPIKeyHashes,
		LimiterStorage: cache.LimiterStorage(cfg.Cache),
	}

	app := fiber.New(fiber.Config{
		AppName:     "PropSync",
		BodyLimit:   cfg.HTTPBodyLimit,
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})

	// recovery, request ids and logging
	app.Use(recover.New(), requestid.New(), logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		Output: logWriter,
	}))

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, handlers)

	app.Hooks().OnShutdown(func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	return app
}
