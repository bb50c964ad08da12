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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/notevault/notevault-api/api/swagger"
	"github.com/notevault/notevault-api/internal/handler"
	"github.com/notevault/notevault-api/internal/middleware"
	"github.com/notevault/notevault-api/internal/models"
	"github.com/notevault/notevault-api/internal/repository"
	"github.com/notevault/notevault-api/internal/service"
	"github.com/notevault/notevault-api/pkg/cache"
	"github.com/notevault/notevault-api/pkg/config"
	"github.com/notevault/notevault-api/pkg/database"
	"github.com/notevault/notevault-api/pkg/export"
	"github.com/notevault/notevault-api/pkg/jobs"
	"github.com/notevault/notevault-api/pkg/logger"
	"github.com/notevault/notevault-api/pkg/mailer"
	corsmiddleware "github.com/notevault/notevault-api/pkg/middleware/cors"
	reqidmiddleware "github.com/notevault/notevault-api/pkg/middleware/requestid"
	"github.com/notevault/notevault-api/pkg/storage"
)

// @title NoteVault API
// @version 1.0.0
// @description Note sharing platform with OTP onboarding and a role-based admin panel
// @BasePath /api
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	// Redis backs the dashboard cache and the auth rate limiter. Both
	// degrade gracefully, so a missing Redis only costs performance.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and rate limiting disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	fileStore, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare attachment storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := service.NewMailNotifier(mailer.New(cfg.SMTP), logr, jobs.QueueConfig{
		Workers:    cfg.MailQueue.Workers,
		MaxRetries: cfg.MailQueue.MaxRetries,
	})
	notifier.Start(ctx)
	defer notifier.Stop()

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, adminRepo, notifier, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
	})
	noteService := service.NewNoteService(noteRepo, fileStore, signer, export.NewPDFExporter(), validate, logr, service.NoteConfig{
		MaxFileSizeBytes: cfg.Attachments.MaxFileSizeBytes,
		MaxFiles:         cfg.Attachments.MaxFiles,
		FileRoutePrefix:  cfg.APIPrefix + "/files",
	})
	dashboardService := service.NewDashboardService(userRepo, noteRepo, cacheRepo, logr, service.DashboardServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	})
	adminUserService := service.NewAdminUserService(userRepo, adminRepo, auditRepo, dashboardService, validate, logr)

	authHandler := handler.NewAuthHandler(authService, metricsService)
	noteHandler := handler.NewNoteHandler(noteService, metricsService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService, metricsService)
	adminUserHandler := handler.NewAdminUserHandler(adminUserService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	if cfg.RateLimit.Enabled {
		auth.Use(middleware.RateLimit(redisClient, logr, middleware.RateLimitConfig{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
		}))
	}

	userAuth := auth.Group("/user")
	{
		userAuth.POST("/register", authHandler.Register(models.KindUser))
		userAuth.POST("/verify-otp", authHandler.VerifyOTP(models.KindUser))
		userAuth.POST("/resend-otp", authHandler.ResendOTP(models.KindUser))
		userAuth.POST("/login", authHandler.Login(models.KindUser))
		userAuth.GET("/me", middleware.AuthenticateUser(authService), authHandler.Me(models.KindUser))
	}

	adminAuth := auth.Group("/admin")
	{
		adminAuth.POST("/register", authHandler.Register(models.KindAdmin))
		adminAuth.POST("/verify-otp", authHandler.VerifyOTP(models.KindAdmin))
		adminAuth.POST("/resend-otp", authHandler.ResendOTP(models.KindAdmin))
		adminAuth.POST("/login", authHandler.Login(models.KindAdmin))
		adminAuth.GET("/me", middleware.AuthenticateAdmin(authService), authHandler.Me(models.KindAdmin))
	}

	notes := api.Group("/notes", middleware.AuthenticateUser(authService))
	{
		notes.POST("", noteHandler.Create)
		notes.GET("", noteHandler.List)
		notes.GET("/:id", noteHandler.Get)
		notes.PATCH("/:id", noteHandler.Update)
		notes.DELETE("/:id", noteHandler.Delete)
		notes.POST("/:id/view", noteHandler.RecordView)
		notes.GET("/:id/attachments/:attachmentId/download", noteHandler.Download)
		notes.GET("/:id/export.pdf", noteHandler.ExportPDF)
	}

	// Signed tokens gate file access, so the route itself stays public.
	api.GET("/files/:token", noteHandler.ServeFile)

	admin := api.Group("/admin", middleware.AuthenticateAdmin(authService))
	{
		admin.GET("/dashboard", middleware.RequirePermission(models.PermAnalytics), dashboardHandler.Stats)

		users := admin.Group("/users", middleware.RequirePermission(models.PermUserManagement))
		{
			users.GET("", adminUserHandler.ListUsers)
			users.PATCH("/:id/status", adminUserHandler.UpdateUserStatus)
			users.DELETE("/:id", adminUserHandler.DeleteUser)
		}

		admin.PATCH("/admins/:id/role", middleware.RequirePermission(models.PermSystemAdmin), adminUserHandler.UpdateAdminRole)
		admin.DELETE("/notes/:id", middleware.RequirePermission(models.PermContentManagement), noteHandler.AdminDelete)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
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
