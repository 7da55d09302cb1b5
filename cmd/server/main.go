package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/gocrm-io/gocrm-ce/internal/acl"
	"github.com/gocrm-io/gocrm-ce/internal/api"
	"github.com/gocrm-io/gocrm-ce/internal/auth"
	"github.com/gocrm-io/gocrm-ce/internal/cache"
	"github.com/gocrm-io/gocrm-ce/internal/campaign"
	"github.com/gocrm-io/gocrm-ce/internal/config"
	"github.com/gocrm-io/gocrm-ce/internal/database"
	"github.com/gocrm-io/gocrm-ce/internal/mail/bounce"
	"github.com/gocrm-io/gocrm-ce/internal/mail/connector"
	"github.com/gocrm-io/gocrm-ce/internal/mail/hooks"
	"github.com/gocrm-io/gocrm-ce/internal/mail/pipeline"
	"github.com/gocrm-io/gocrm-ce/internal/massaction"
	"github.com/gocrm-io/gocrm-ce/internal/middleware"
	"github.com/gocrm-io/gocrm-ce/internal/models"
	"github.com/gocrm-io/gocrm-ce/internal/repository"
	"github.com/gocrm-io/gocrm-ce/internal/scheduler"
	"github.com/gocrm-io/gocrm-ce/internal/stream"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "."
	}
	if err := config.Load(configPath); err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}
	cfg := config.Get()

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()
	statusCache := cache.NewStatusCache(redisClient, cfg.App.Name)

	// repositories
	mailAccounts := repository.NewMailAccountRepository(db)
	users := repository.NewUserRepository(db)
	queueItems := repository.NewQueueItemRepository(db)
	massEmails := repository.NewMassEmailRepository(db)
	campaignLogs := repository.NewCampaignLogRepository(db)
	emailAddresses := repository.NewEmailAddressRepository(db)
	emails := repository.NewEmailRepository(db)
	notes := repository.NewNoteRepository(db)
	entityRefs := repository.NewEntityRefRepository(db)
	massActions := repository.NewMassActionRepository(db)
	entities := repository.NewEntityRepository(db)

	// inbound mail pipeline
	campaignSvc := campaign.NewService(campaignLogs, logger)
	streamSvc := stream.NewService(notes, logger)
	classifier := bounce.NewClassifier(queueItems, massEmails, entityRefs, emailAddresses, campaignSvc, logger)
	beforeFetch := hooks.NewBeforeFetch(classifier, logger)
	afterFetch := hooks.NewAfterFetch(entityRefs, streamSvc, logger)
	mailPipeline := pipeline.New(beforeFetch, afterFetch, emails, emailAddresses, logger)
	factory := connector.DefaultFactory()

	// mass actions
	registry := massaction.DefaultRegistry(entities, logger)
	worker := massaction.NewWorker(massActions, registry, &massaction.LogNotifier{Logger: logger}, statusCache, logger)
	massActionSvc := massaction.NewService(registry, massActions, acl.NewChecker(), worker, logger)

	// background jobs
	sched := scheduler.NewService(
		scheduler.WithLogger(logger),
		scheduler.WithMailAccounts(mailAccounts),
		scheduler.WithUsers(users),
		scheduler.WithConnectorFactory(factory),
		scheduler.WithMailHandler(mailPipeline),
		scheduler.WithMassActionWorker(worker),
		scheduler.WithStatusCache(statusCache),
		scheduler.WithJobs(scheduledJobs(cfg)),
	)

	// HTTP surface
	jwtManager := auth.NewJWTManager(cfg.Auth.JWT.Secret, cfg.Auth.JWT.AccessTokenTTL)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)
	engine := gin.New()
	engine.Use(gin.Recovery())

	router := api.NewRouter(
		engine,
		api.NewMassActionHandler(massActionSvc),
		api.NewMailAccountHandler(mailAccounts, factory, statusCache),
		authMiddleware,
	)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := sched.Run(ctx); err != nil {
			logger.Printf("scheduler stopped: %v", err)
		}
	}()

	go func() {
		logger.Printf("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown error: %v", err)
	}
}

// scheduledJobs builds the job table from the mail configuration.
func scheduledJobs(cfg *config.Config) []*models.ScheduledJob {
	jobs := scheduler.DefaultJobs()
	for _, job := range jobs {
		if job.Handler != "mail.poll" {
			continue
		}
		if cfg.Mail.PollSchedule != "" {
			job.Schedule = cfg.Mail.PollSchedule
		}
		job.Config = map[string]any{
			"max_accounts":  cfg.Mail.PollMaxAccounts,
			"worker_count":  cfg.Mail.PollWorkers,
			"portion_limit": cfg.Mail.PortionLimit,
		}
	}
	return jobs
}
