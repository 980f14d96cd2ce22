package main

import (
	"context"
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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/classroom-grading-api/api/swagger"
	"github.com/noah-isme/classroom-grading-api/internal/handler"
	internalmiddleware "github.com/noah-isme/classroom-grading-api/internal/middleware"
	"github.com/noah-isme/classroom-grading-api/internal/realtime"
	"github.com/noah-isme/classroom-grading-api/internal/repository"
	"github.com/noah-isme/classroom-grading-api/internal/service"
	"github.com/noah-isme/classroom-grading-api/pkg/cache"
	"github.com/noah-isme/classroom-grading-api/pkg/config"
	"github.com/noah-isme/classroom-grading-api/pkg/database"
	"github.com/noah-isme/classroom-grading-api/pkg/invite"
	"github.com/noah-isme/classroom-grading-api/pkg/jobs"
	"github.com/noah-isme/classroom-grading-api/pkg/logger"
	appMail "github.com/noah-isme/classroom-grading-api/pkg/mail"
	corsmiddleware "github.com/noah-isme/classroom-grading-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/classroom-grading-api/pkg/middleware/requestid"
)

// @title Classroom Grading API
// @version 1.0.0
// @description Classrooms, weighted gradebooks, grade reviews and notifications.
// @BasePath /api/v1
// @schemes http https
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

	if err := run(cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	registry := realtime.NewRegistry(cfg.Realtime.ClientBuffer, logr)
	var pushChannel service.PushChannel = registry
	if redisClient != nil {
		relay := realtime.NewRedisRelay(redisClient, cfg.Realtime.Channel, registry, logr)
		pushChannel = relay
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logr.Sugar().Errorw("realtime relay stopped", "error", err)
			}
		}()
	}

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService(registry.OnlineUsers)
	}

	pushWorker := service.NewPushWorker(pushChannel, metrics, logr)
	pushQueue := jobs.NewQueue("notification-push", pushWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: -1,
		Logger:     logr,
	})
	pushQueue.Start(ctx)
	defer pushQueue.Stop()

	validate := validator.New()

	classroomRepo := repository.NewClassroomRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	gradebookRepo := repository.NewGradebookRepository(db)
	reviewRepo := repository.NewGradeReviewRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationSvc := service.NewNotificationService(notificationRepo, pushQueue, metrics, validate, logr)
	classroomSvc := service.NewClassroomService(classroomRepo, membershipRepo, gradebookRepo, notificationSvc, metrics, validate, logr)
	rosterSvc := service.NewRosterService(classroomRepo, membershipRepo, gradebookRepo, metrics, logr)
	reviewSvc := service.NewGradeReviewService(classroomRepo, membershipRepo, reviewRepo, gradebookRepo, notificationSvc, metrics, validate, logr)
	commentSvc := service.NewCommentService(classroomRepo, membershipRepo, reviewRepo, commentRepo, notificationSvc, validate, logr)
	invitationSvc := service.NewInvitationService(
		classroomRepo,
		membershipRepo,
		newMailer(cfg.Mail, logr),
		invite.NewSigner(cfg.Invitation.Secret, cfg.Invitation.TTL),
		service.InvitationConfig{WebLink: cfg.WebLink, TemplateID: cfg.Mail.InviteTemplateID},
		validate,
		logr,
	)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/health", "/ready", "/metrics"))

	handler.RegisterRoutes(r, cfg.APIPrefix, internalmiddleware.JWT(internalmiddleware.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)), handler.Handlers{
		Classrooms:    handler.NewClassroomHandler(classroomSvc),
		Roster:        handler.NewRosterHandler(rosterSvc),
		Reviews:       handler.NewReviewHandler(reviewSvc, commentSvc),
		Invitations:   handler.NewInvitationHandler(invitationSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Realtime:      handler.NewRealtimeHandler(registry, cfg.Realtime.Heartbeat),
		Metrics:       handler.NewMetricsHandler(metrics, readinessChecks(db.PingContext, redisClient)),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Sugar().Infow("shutting down", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newMailer(cfg config.MailConfig, logr *zap.Logger) appMail.Mailer {
	if cfg.Provider == config.MailProviderSendGrid {
		return appMail.NewSendGridMailer(cfg.SendGridAPIKey, cfg.FromName, cfg.FromAddress)
	}
	return appMail.NewLogMailer(logr)
}

func readinessChecks(pingDB func(context.Context) error, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{"postgres": pingDB}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}
