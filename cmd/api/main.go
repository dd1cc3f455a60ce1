package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/markwise-app/markwise-api/internal/config"
	"github.com/markwise-app/markwise-api/internal/database"
	"github.com/markwise-app/markwise-api/internal/handler"
	"github.com/markwise-app/markwise-api/internal/middleware"
	"github.com/markwise-app/markwise-api/internal/models"
	"github.com/markwise-app/markwise-api/internal/repository"
	"github.com/markwise-app/markwise-api/internal/router"
	"github.com/markwise-app/markwise-api/internal/service"
	"github.com/markwise-app/markwise-api/pkg/ai"
	cloud "github.com/markwise-app/markwise-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Student{}, &models.Evaluation{}, &models.GradingSettings{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, evaluation events stay in-process")
		} else {
			defer natsConn.Close()
		}
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	grader, err := buildGrader(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create grader: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	evaluationRepo := repository.NewEvaluationRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	settingsRepo := repository.NewGradingSettingsRepository(db)

	thresholds := service.NewThresholdProvider(logger,
		service.NewDatabaseThresholdSource(settingsRepo, cfg.GradingProfile),
	)

	events := service.NewEvaluationEvents(natsConn, "", logger)
	quota := service.NewQuotaService(redisClient, cfg.DailyQuota, logger)
	drafts := service.NewDraftStore(redisClient, cfg.DraftTTL)

	evaluationService := service.NewEvaluationService(evaluationRepo, studentRepo, grader, thresholds, uploader, events, validate, logger)

	evaluationHandler := handler.NewEvaluationHandler(evaluationService, quota, drafts, logger)
	eventsHandler := handler.NewEventsHandler(events, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    64 << 20,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		EvaluationHandler: evaluationHandler,
		EventsHandler:     eventsHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	eventsCtx, stopEvents := context.WithCancel(context.Background())
	defer stopEvents()
	events.Start(eventsCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

// buildGrader assembles the configured model client wrapped in the retry
// policy shared by every provider.
func buildGrader(cfg config.Config, logger zerolog.Logger) (ai.Grader, error) {
	policy := ai.RetryPolicy{
		MaxAttempts: cfg.RetryAttempts,
		Backoff:     ai.LinearBackoff(cfg.RetryBackoff),
	}

	switch cfg.AIProvider {
	case "anthropic":
		grader, err := ai.NewAnthropicGrader(ai.AnthropicConfig{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AIModel,
		})
		if err != nil {
			return nil, err
		}
		return ai.WithRetry(grader, policy, logger), nil
	default:
		grader, err := ai.NewOpenAIGrader(ai.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.AIModel,
			Timeout: cfg.GradingTimeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return ai.WithRetry(grader, policy, logger), nil
	}
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
