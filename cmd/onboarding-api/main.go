package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/atelierhq/onboarding-api/api/swagger"
	"github.com/atelierhq/onboarding-api/internal/events"
	"github.com/atelierhq/onboarding-api/internal/handler"
	"github.com/atelierhq/onboarding-api/internal/middleware"
	"github.com/atelierhq/onboarding-api/internal/models"
	"github.com/atelierhq/onboarding-api/internal/repository"
	"github.com/atelierhq/onboarding-api/internal/service"
	"github.com/atelierhq/onboarding-api/pkg/cache"
	"github.com/atelierhq/onboarding-api/pkg/config"
	"github.com/atelierhq/onboarding-api/pkg/database"
	"github.com/atelierhq/onboarding-api/pkg/logger"
	corsmiddleware "github.com/atelierhq/onboarding-api/pkg/middleware/cors"
	reqidmiddleware "github.com/atelierhq/onboarding-api/pkg/middleware/requestid"
	"github.com/atelierhq/onboarding-api/pkg/storage"
)

// @title Agency Onboarding API
// @version 1.0.0
// @description Client onboarding workflow engine for digital agencies
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, template cache disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	var backend storage.Backend
	switch cfg.Uploads.Backend {
	case "s3":
		backend, err = storage.NewS3Backend(storage.S3Config{
			Region:          cfg.Uploads.S3Region,
			Bucket:          cfg.Uploads.S3Bucket,
			AccessKeyID:     cfg.Uploads.S3AccessKeyID,
			SecretAccessKey: cfg.Uploads.S3SecretKey,
		})
	default:
		backend, err = storage.NewLocalBackend(cfg.Uploads.StorageDir, cfg.Uploads.PublicBaseURL)
	}
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}

	validate := validator.New()
	bus := events.NewBus(logr)

	// Repositories.
	templateRepo := repository.NewTemplateRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	responseRepo := repository.NewResponseRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	fileRepo := repository.NewFileRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
	})
	templateSvc := service.NewTemplateService(templateRepo, auditRepo, redisClient, validate, logr, service.TemplateServiceConfig{
		CacheTTL: cfg.Templates.CacheTTL,
	})
	onboardingSvc := service.NewOnboardingService(sessionRepo, responseRepo, auditRepo, bus, logr, service.OnboardingServiceConfig{
		SessionTTL: cfg.Onboarding.SessionTTL,
	})
	projectSvc := service.NewProjectService(projectRepo, templateSvc, onboardingSvc, auditRepo, validate, logr, service.ProjectServiceConfig{
		PublicURL: cfg.Onboarding.PublicURL,
	})
	riskSvc := service.NewRiskService(sessionRepo, responseRepo, fileRepo)
	fileSvc := service.NewFileService(onboardingSvc, fileRepo, backend, bus, logr, service.FileServiceConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
	})
	exportSvc := service.NewExportService(sessionRepo, responseRepo, nil)
	automationSvc := service.NewAutomationService(projectRepo, auditRepo, logr)

	// Event wiring happens once, here; services only ever see the emit side.
	automationSvc.Register(bus)
	metricsSvc.Register(bus)

	if cfg.Templates.SeedFile != "" {
		seeder := service.NewTemplateSeeder(templateRepo, logr)
		if err := seeder.SeedFromFile(context.Background(), cfg.Templates.SeedFile); err != nil {
			logr.Sugar().Warnw("template seeding failed", "error", err)
		}
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	templateHandler := handler.NewTemplateHandler(templateSvc)
	projectHandler := handler.NewProjectHandler(projectSvc, riskSvc)
	onboardingHandler := handler.NewOnboardingHandler(onboardingSvc, fileSvc)
	sessionHandler := handler.NewSessionHandler(onboardingSvc, exportSvc, auditRepo, fileRepo)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public wizard: the session token is the only credential.
	onboarding := api.Group("/onboarding")
	{
		onboarding.GET("/:token", onboardingHandler.GetWizard)
		onboarding.PUT("/:token", onboardingHandler.SaveStep)
		onboarding.POST("/:token/files", onboardingHandler.Upload)
	}

	api.POST("/auth/login", authHandler.Login)

	admin := api.Group("")
	admin.Use(middleware.JWT(authSvc))
	{
		admin.GET("/templates", templateHandler.List)
		admin.GET("/templates/:id", templateHandler.Get)
		admin.POST("/templates", middleware.RequireRoles(models.RoleOwner, models.RoleAdmin), templateHandler.Create)
		admin.PUT("/templates/:id", middleware.RequireRoles(models.RoleOwner, models.RoleAdmin), templateHandler.Update)
		admin.DELETE("/templates/:id", middleware.RequireRoles(models.RoleOwner, models.RoleAdmin), templateHandler.Delete)

		admin.GET("/projects", projectHandler.List)
		admin.GET("/projects/:id", projectHandler.Get)
		admin.POST("/projects", projectHandler.Create)
		admin.GET("/projects/:id/risk", projectHandler.Risk)

		admin.GET("/sessions/:id", sessionHandler.Get)
		admin.POST("/sessions/:id/approve", middleware.RequireRoles(models.RoleOwner, models.RoleAdmin), sessionHandler.Approve)
		admin.GET("/sessions/:id/export", sessionHandler.Export)

		admin.GET("/audit-logs", middleware.RequireRoles(models.RoleOwner, models.RoleAdmin), sessionHandler.AuditLogs)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
