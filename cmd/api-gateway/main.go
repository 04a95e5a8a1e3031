package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-health-api/api/swagger"
	"github.com/noah-isme/sma-health-api/internal/handler"
	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/internal/repository"
	"github.com/noah-isme/sma-health-api/internal/service"
	"github.com/noah-isme/sma-health-api/pkg/broker"
	"github.com/noah-isme/sma-health-api/pkg/cache"
	"github.com/noah-isme/sma-health-api/pkg/config"
	"github.com/noah-isme/sma-health-api/pkg/database"
	"github.com/noah-isme/sma-health-api/pkg/jobs"
	"github.com/noah-isme/sma-health-api/pkg/logger"
	"github.com/noah-isme/sma-health-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/sma-health-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-health-api/pkg/middleware/requestid"
)

// @title School Health API
// @version 1.0.0
// @description Vaccination and medical check campaigns, nurse visits and parent notifications.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	pingers := map[string]handler.Pinger{
		"database": handler.PingFunc(db.PingContext),
	}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("redis connection failed", "error", err)
		}
		defer client.Close()
		cacheRepo = repository.NewCacheRepository(client, logger.Component(logr, "cache"))
		pingers["redis"] = redisPinger(client)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logger.Component(logr, "cache"), cfg.Cache.Enabled)

	notifier, closeNotifier := buildNotifier(ctx, cfg, metrics, logr, pingers)
	defer closeNotifier()

	validate := validator.New()

	users := repository.NewUserRepository(db)
	students := repository.NewStudentRepository(db)
	eventRepo := repository.NewCampaignEventRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	visitRepo := repository.NewNurseVisitRepository(db)

	authSvc := service.NewAuthService(users, validate, logger.Component(logr, "auth"), service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "sma-health-api",
	})
	catalog := service.NewEventCatalog(eventRepo, cacheSvc, cfg.Cache.TTL, logger.Component(logr, "catalog"))
	registrationSvc := service.NewRegistrationService(registrationRepo, students, catalog, notifier, validate, logger.Component(logr, "registrations"))
	eventSvc := service.NewCampaignEventService(eventRepo, catalog, registrationSvc, validate, logger.Component(logr, "events"))
	appointmentSvc := service.NewAppointmentService(appointmentRepo, validate, logger.Component(logr, "appointments"))
	visitSvc := service.NewNurseVisitService(visitRepo, students, users, notifier, validate, logger.Component(logr, "nurse_visits"))

	if cfg.Scheduler.Enabled {
		scheduler := service.NewSchedulerService(registrationRepo, visitRepo, notifier, metrics, logger.Component(logr, "scheduler"), service.SchedulerConfig{
			Interval:     cfg.Scheduler.Interval,
			BatchSize:    cfg.Scheduler.BatchSize,
			ReminderLead: cfg.Scheduler.ReminderLead,
			GracePeriod:  cfg.Scheduler.GracePeriod,
		})
		go scheduler.Run(ctx)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	registerRoutes(r, cfg, routeDeps{
		auth:          authSvc,
		metrics:       metrics,
		pingers:       pingers,
		events:        eventSvc,
		registrations: registrationSvc,
		appointments:  appointmentSvc,
		visits:        visitSvc,
		audit:         logger.Component(logr, "audit"),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func redisPinger(client *redis.Client) handler.PingFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// buildNotifier wires the notification worker behind the configured broker.
func buildNotifier(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger, pingers map[string]handler.Pinger) (*service.NotificationService, func()) {
	var m mailer.Mailer
	if cfg.Mail.SendGridAPIKey != "" {
		m = mailer.NewSendGrid(cfg.Mail.SendGridAPIKey, cfg.Mail.FromName, cfg.Mail.FromAddress)
	} else {
		m = mailer.NewLog(logger.Component(logr, "mailer"))
	}

	workerLog := logger.Component(logr, "notifications")
	worker := service.NewNotificationWorker(m, metrics, workerLog)

	if cfg.Notification.Broker == config.BrokerRabbitMQ {
		mq, err := broker.NewRabbitMQ(broker.RabbitMQConfig{
			URL:        cfg.Notification.RabbitMQURL,
			QueueName:  cfg.Notification.RabbitMQQueue,
			MaxRetries: cfg.Notification.MaxRetries,
			Prefetch:   cfg.Notification.Workers,
			Logger:     workerLog,
			OnDrop: func(body []byte, err error) {
				var job models.NotificationJob
				_ = json.Unmarshal(body, &job)
				worker.OnDrop(string(job.Template), err)
			},
		})
		if err != nil {
			logr.Sugar().Fatalw("rabbitmq connection failed", "error", err)
		}
		pingers["rabbitmq"] = handler.PingFunc(func(context.Context) error { return mq.HealthCheck() })
		if err := mq.Consume(ctx, worker.HandleMessage); err != nil {
			logr.Sugar().Fatalw("notification consumer failed", "error", err)
		}
		return service.NewNotificationService(service.NewBrokerDispatcher(mq), metrics, workerLog), func() { _ = mq.Close() }
	}

	queue := jobs.NewQueue("notifications", worker.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Notification.Workers,
		BufferSize: cfg.Notification.BufferSize,
		MaxRetries: cfg.Notification.MaxRetries,
		RetryDelay: cfg.Notification.RetryDelay,
		Logger:     workerLog,
		OnDrop: func(job jobs.Job, err error) {
			worker.OnDrop(job.Type, err)
		},
	})
	queue.Start(ctx)
	return service.NewNotificationService(service.NewQueueDispatcher(queue), metrics, workerLog), queue.Stop
}
