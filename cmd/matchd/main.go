package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/mroshb/roommate_match/internal/chat"
	"github.com/mroshb/roommate_match/internal/config"
	"github.com/mroshb/roommate_match/internal/database"
	"github.com/mroshb/roommate_match/internal/jobs"
	"github.com/mroshb/roommate_match/internal/middleware"
	"github.com/mroshb/roommate_match/internal/notify"
	"github.com/mroshb/roommate_match/internal/repositories"
	"github.com/mroshb/roommate_match/internal/scheduler"
	"github.com/mroshb/roommate_match/internal/services"
	"github.com/mroshb/roommate_match/pkg/logger"
	"github.com/mroshb/roommate_match/telegram"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.AppEnv)
	defer logger.Sync()

	logger.Info("Starting roommate match daemon...", "env", cfg.AppEnv, "db_driver", cfg.DBDriver)

	// Validate production security settings
	if err := cfg.ValidateProductionSecurity(); err != nil {
		logger.Fatal("Production security validation failed", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	profileRepo := repositories.NewProfileRepository(db)
	matchRepo := repositories.NewMatchRepository(db)
	jobRepo := repositories.NewJobRepository(db)

	// Notification sinks
	sinks := []notify.Sink{notify.NewLogSink()}
	var bot *tgbotapi.BotAPI
	if cfg.TelegramBotToken != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			logger.Fatal("Failed to create bot", err)
		}
		bot.Debug = cfg.AppEnv == "development"
		logger.Info("Authorized on account", "username", bot.Self.UserName)
		sinks = append(sinks, telegram.NewNotifier(bot, profileRepo))
	}
	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{BufferSize: cfg.NotifyBufferSize}, sinks...)

	var chatProvisioner services.ChatProvisioner
	if cfg.ChatServiceURL != "" {
		chatClient, err := chat.NewClient(chat.Config{
			BaseURL: cfg.ChatServiceURL,
			Secret:  cfg.ChatServiceSecret,
			Timeout: cfg.ChatRequestTimeout,
		})
		if err != nil {
			logger.Fatal("Failed to create chat client", err)
		}
		chatProvisioner = chatClient
	} else {
		logger.Warn("CHAT_SERVICE_URL not set, chat rooms will not be provisioned")
	}

	queue := jobs.NewQueue(jobRepo, jobs.Config{
		PollInterval:       cfg.JobPollInterval,
		Lease:              cfg.JobLease,
		MaxAttempts:        cfg.JobMaxAttempts,
		InitialBackoff:     cfg.JobInitialBackoff,
		MaxBackoff:         cfg.JobMaxBackoff,
		CompletedRetention: cfg.JobCompletedRetention,
		FailedRetention:    cfg.JobFailedRetention,
		PurgeInterval:      cfg.JobPurgeInterval,
	})
	sched := scheduler.New(queue, nil)

	matchSvc := services.NewMatchService(profileRepo, matchRepo, chatProvisioner, dispatcher, sched, services.MatchServiceConfig{
		MatchExpiry:   cfg.MatchExpiry,
		MaxDistanceKm: cfg.MaxDistanceKm,
	})
	sched.RegisterHandlers(matchSvc)

	if err := sched.RegisterRecurring(ctx, scheduler.Intervals{
		Recalculate:  cfg.RecalculateEvery,
		RebuildIndex: cfg.RebuildIndexEvery,
		SweepExpired: cfg.SweepExpiredEvery,
	}); err != nil {
		logger.Fatal("Failed to register recurring jobs", err)
	}

	if err := queue.Start(ctx); err != nil {
		logger.Fatal("Failed to start job queue", err)
	}

	if bot != nil {
		limiter := middleware.NewRateLimiter(cfg.CallbackRateLimit, time.Minute)
		go limiter.RunCleanup(ctx, 5*time.Minute)

		callbacks := telegram.NewCallbackHandler(bot, profileRepo, matchSvc).WithRateLimit(limiter)
		go callbacks.Listen(ctx, bot)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server stopped", "error", err)
			}
		}()
		logger.Info("Serving metrics", "addr", cfg.MetricsAddr)
	}

	logger.Info("Daemon started successfully")

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to stop metrics server", "error", err)
		}
		cancel()
	}
	if err := queue.Close(); err != nil {
		logger.Warn("Failed to stop job queue", "error", err)
	}
	dispatcher.Close()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info("Daemon stopped")
}
