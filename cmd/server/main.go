package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/api"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/auth"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/config"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/database"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/delivery"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/providers/factory"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/repository/postgres"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/services"
)

func main() {
	configPath := flag.String("config", "", "path to config.json (default: search ., ./config, ~/.deepresearch)")
	rollback := flag.Bool("rollback", false, "roll back the last migration and exit")
	flag.Parse()

	log := logrus.New()

	// Load configuration
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	configureLogger(log, cfg.Logging)

	dsn := cfg.Database.DSN()
	if *rollback {
		if err := database.RollbackMigration(dsn); err != nil {
			log.WithError(err).Fatal("Failed to roll back migration")
		}
		log.Info("Rolled back last migration")
		return
	}

	// Run migrations
	if err := database.RunMigrations(dsn); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	// Connect to database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	registry, err := factory.CreateRegistry(cfg.Providers)
	if err != nil {
		log.WithError(err).Fatal("Failed to configure research providers")
	}
	if cfg.Providers.Mock {
		log.Warn("Using mock research providers")
	}

	svc, err := services.NewServices(cfg, postgres.NewRepositories(db.DB), registry, delivery.New(cfg.Email), log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize services")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Deep Research",
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: true,
	}))

	api.SetupRoutes(app, api.RouteDeps{
		Research:  svc.Research,
		Usage:     svc.Usage,
		Validator: auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Logger:    log,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down")
		if err := app.Shutdown(); err != nil {
			log.WithError(err).Error("Failed to shut down server")
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.WithField("addr", addr).Info("Deep research backend starting")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}

	// Let in-flight background research finish writing its results.
	svc.Research.Wait()
}

func configureLogger(log *logrus.Logger, cfg config.LoggingConfig) {
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		log.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
