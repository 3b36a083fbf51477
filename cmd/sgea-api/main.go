package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sgea-api/api/swagger"
	"github.com/noah-isme/sgea-api/internal/handler"
	"github.com/noah-isme/sgea-api/internal/middleware"
	"github.com/noah-isme/sgea-api/internal/repository"
	"github.com/noah-isme/sgea-api/internal/router"
	"github.com/noah-isme/sgea-api/internal/service"
	"github.com/noah-isme/sgea-api/pkg/cache"
	"github.com/noah-isme/sgea-api/pkg/config"
	"github.com/noah-isme/sgea-api/pkg/database"
	"github.com/noah-isme/sgea-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sgea-api/pkg/middleware/cors"
	"github.com/noah-isme/sgea-api/pkg/token"
)

// @title SGEA API
// @version 1.0.0
// @description Academic event registration: enrollments, attendance and certificates
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			// Counters fail open; the API keeps serving without ceilings.
			logr.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	loc := cfg.Location()
	validate := service.NewValidator()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	auditSvc := service.NewAuditService(auditRepo, metrics, logr, service.AuditConfig{
		DefaultLimit: cfg.Audit.DefaultLimit,
		MaxLimit:     cfg.Audit.MaxLimit,
		Location:     loc,
	})

	notifier := service.NewNotificationDispatcher(service.NewLogMailer(logr), metrics, logr, service.NotificationConfig{
		Workers:    cfg.Notification.Workers,
		BufferSize: cfg.Notification.BufferSize,
		MaxRetries: cfg.Notification.MaxRetries,
		RetryDelay: cfg.Notification.RetryDelay,
		FromEmail:  cfg.Notification.FromEmail,
	})
	notifier.Start(ctx)
	defer notifier.Stop()

	signer := token.NewSigner(cfg.Registration.TokenSecret, cfg.Registration.TokenTTL)
	userSvc := service.NewUserService(userRepo, signer, notifier, auditSvc, validate, logr, service.RegistrationConfig{
		ActivateOnSignup: cfg.Registration.ActivateOnSignup,
		APIPrefix:        cfg.APIPrefix,
	})
	authSvc := service.NewAuthService(userRepo, auditSvc, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	eventSvc := service.NewEventService(eventRepo, userRepo, auditSvc, validate, logr, loc)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, userRepo, eventRepo, auditSvc, metrics, logr, loc)
	certificateSvc := service.NewCertificateService(certificateRepo, eventRepo, auditSvc, metrics, logr, loc)
	exportSvc := service.NewExportService(enrollmentRepo, eventRepo, logr)
	rateLimiter := service.NewRateLimitService(redisClient, map[string]int{
		service.RateScopeEvents:      cfg.RateLimit.EventsPerDay,
		service.RateScopeEnrollments: cfg.RateLimit.EnrollmentsPerDay,
	}, metrics, logr, loc)

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = router.RedisPinger{Client: redisClient}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.New(requestid.WithGenerator(uuid.NewString)))
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	router.Register(r, router.Dependencies{
		APIPrefix:          cfg.APIPrefix,
		EnableDocs:         cfg.Env != config.EnvProduction,
		RateLimited:        redisClient != nil,
		Tokens:             authSvc,
		RateLimiter:        rateLimiter,
		AuthHandler:        handler.NewAuthHandler(authSvc, userSvc, cfg.PublicBaseURL),
		EventHandler:       handler.NewEventHandler(eventSvc, enrollmentSvc, exportSvc, certificateSvc),
		EnrollmentHandler:  handler.NewEnrollmentHandler(enrollmentSvc),
		CertificateHandler: handler.NewCertificateHandler(certificateSvc),
		AuditHandler:       handler.NewAuditHandler(auditSvc),
		MetricsHandler:     handler.NewMetricsHandler(metrics, checks),
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
