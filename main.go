package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/joaorjoaquim/video-insight-api/clients/llm"
	"github.com/joaorjoaquim/video-insight-api/clients/media"
	"github.com/joaorjoaquim/video-insight-api/config"
	"github.com/joaorjoaquim/video-insight-api/handlers"
	"github.com/joaorjoaquim/video-insight-api/logger"
	"github.com/joaorjoaquim/video-insight-api/repository/sqlite"
	"github.com/joaorjoaquim/video-insight-api/services/credits"
	"github.com/joaorjoaquim/video-insight-api/services/insight"
	"github.com/joaorjoaquim/video-insight-api/services/video"
	"github.com/joaorjoaquim/video-insight-api/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logConfig, err := logger.Init(cfg.LogDir, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := sqlite.InitDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	videoRepo := sqlite.NewVideoRepository(db)
	creditRepo := sqlite.NewCreditRepository(db)
	userRepo := sqlite.NewUserRepository(db)

	mediaClient := media.NewClient(media.Config{
		BaseURL:        cfg.Media.BaseURL,
		RequestTimeout: cfg.Media.RequestTimeout,
		PollInterval:   cfg.Media.PollInterval,
		PollAttempts:   cfg.Media.PollAttempts,
		ModelSize:      cfg.Media.ModelSize,
		Device:         cfg.Media.Device,
		ComputeType:    cfg.Media.ComputeType,
		Language:       cfg.Media.Language,
	})

	llmClient := llm.NewClient(llm.Config{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		RequestTimeout:    cfg.LLM.RequestTimeout,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	})

	insightConfig := insight.DefaultConfig()
	insightConfig.Temperature = cfg.LLM.Temperature
	insightConfig.MaxTokens = cfg.LLM.MaxTokens
	insightService := insight.NewService(llmClient, nil, insightConfig)

	creditService := credits.NewService(creditRepo, userRepo, cfg.Credits)

	validator := validation.NewValidator(cfg)
	videoService := video.NewService(
		videoRepo,
		mediaClient,
		insightService,
		creditService,
		validator,
		true,
		cfg.RequestTimeout,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		ErrorHandler:          handlers.ErrorHandler,
		DisableStartupMessage: !cfg.Debug,
		AppName:               "video-insight-api " + cfg.Version,
	})

	setupMiddleware(app, cfg, logConfig)
	setupRoutes(app, db, cfg, videoService, creditService)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownChan
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	serverAddr := ":" + cfg.ServerPort
	if cfg.Debug {
		log.Printf("Server starting on http://localhost%s", serverAddr)
	}

	if err := app.Listen(serverAddr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

func setupMiddleware(app *fiber.App, cfg *config.Config, logConfig *fiberLogger.Config) {
	if cfg.Middleware.EnableRecover {
		app.Use(recover.New(recover.Config{
			EnableStackTrace: cfg.Debug,
		}))
	}

	if cfg.Middleware.EnableRequestID {
		app.Use(requestid.New(requestid.Config{
			Header: "X-Request-ID",
			Generator: func() string {
				return uuid.New().String()
			},
		}))
	}

	if cfg.Middleware.EnableLogger {
		app.Use(fiberLogger.New(*logConfig))
	}

	if cfg.Middleware.EnableCORS && cfg.CORS.Enabled {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(cfg.CORS.AllowedOrigins, ","),
			AllowMethods:     strings.Join(cfg.CORS.AllowedMethods, ","),
			AllowHeaders:     strings.Join(cfg.CORS.AllowedHeaders, ","),
			ExposeHeaders:    strings.Join(cfg.CORS.ExposedHeaders, ","),
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		}))
	}

	if cfg.Middleware.EnableRateLimit && cfg.RateLimit.Enabled {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit.RequestsPerMinute,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"success": false,
					"error":   "Rate limit exceeded",
				})
			},
		}))
	}

	if cfg.Middleware.EnableCompress {
		app.Use(compress.New(compress.Config{
			Level: compress.LevelDefault,
		}))
	}

	if cfg.Middleware.EnableETag {
		app.Use(etag.New())
	}
}

func setupRoutes(
	app *fiber.App,
	db *sql.DB,
	cfg *config.Config,
	videoService video.Service,
	creditService credits.Service,
) {
	videoHandler := handlers.NewVideoHandler(videoService)
	api := app.Group("/api")

	api.Post("/videos", videoHandler.Submit)
	api.Get("/videos", videoHandler.List)
	api.Get("/videos/:id", videoHandler.Get)
	api.Post("/videos/:id/advance", videoHandler.Advance)
	api.Post("/videos/:id/process", videoHandler.Process)

	creditHandler := handlers.NewCreditHandler(creditService, cfg.Credits.AdminToken)
	api.Get("/credits/:userId/balance", creditHandler.Balance)
	api.Get("/credits/:userId/history", creditHandler.History)

	admin := api.Group("/admin", creditHandler.RequireAdmin)
	admin.Post("/credits/grant", creditHandler.Grant)
	admin.Post("/credits/deduct", creditHandler.Deduct)

	app.Get("/health", handlers.NewHealthHandler(db, cfg.Version).Check)
}
