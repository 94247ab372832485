package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/elevatedtutors/tutors-api/api/swagger"
	"github.com/elevatedtutors/tutors-api/internal/handler"
	"github.com/elevatedtutors/tutors-api/internal/middleware"
	"github.com/elevatedtutors/tutors-api/internal/models"
	"github.com/elevatedtutors/tutors-api/internal/repository"
	"github.com/elevatedtutors/tutors-api/internal/service"
	"github.com/elevatedtutors/tutors-api/pkg/cache"
	"github.com/elevatedtutors/tutors-api/pkg/config"
	"github.com/elevatedtutors/tutors-api/pkg/database"
	"github.com/elevatedtutors/tutors-api/pkg/jobs"
	"github.com/elevatedtutors/tutors-api/pkg/logger"
	corsmiddleware "github.com/elevatedtutors/tutors-api/pkg/middleware/cors"
	reqidmiddleware "github.com/elevatedtutors/tutors-api/pkg/middleware/requestid"
	"github.com/elevatedtutors/tutors-api/pkg/storage"
)

// @title Elevated Tutors API
// @version 1.0.0
// @description Tutoring management backend: accounts, subjects, sessions and submissions
// @BasePath /
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

	sugar := logr.Sugar()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	cacheEnabled := err == nil
	if err != nil {
		sugar.Warnw("redis unavailable, dashboard caching disabled", "error", err)
	} else {
		defer redisClient.Close()
	}

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		sugar.Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	validate := validator.New()

	// Repositories.
	accountRepo := repository.NewAccountRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	// Services.
	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cacheEnabled {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, true)
	}

	dashboardSvc := service.NewDashboardService(dashboardRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)
	authSvc := service.NewAuthService(accountRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "tutors-api",
	})
	approvalSvc := service.NewApprovalService(accountRepo, dashboardSvc, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, accountRepo, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, subjectRepo, validate, logr)
	submissionSvc := service.NewSubmissionService(submissionRepo, subjectRepo, store, signer, cfg.Uploads.MaxFileSizeBytes, validate, logr)
	reportSvc := service.NewReportService(submissionSvc, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	accountHandler := handler.NewAccountHandler(approvalSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc, reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	maintenance := startMaintenanceQueue(ctx, store, submissionRepo, logr)
	defer maintenance.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("", middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/accounts", accountHandler.List)
		admin.GET("/accounts/pending", accountHandler.ListPending)
		admin.GET("/accounts/:id", accountHandler.Get)
		admin.POST("/accounts/:id/approve", accountHandler.Approve)
		admin.PUT("/accounts/:id/role", accountHandler.ChangeRole)
		admin.DELETE("/accounts/:id", accountHandler.Delete)

		admin.GET("/dashboard", dashboardHandler.Stats)
		admin.GET("/metrics", metricsHandler.Snapshot)
	}

	subjects := api.Group("/subjects", middleware.JWT(authSvc))
	{
		subjects.GET("", subjectHandler.List)
		subjects.GET("/:id", subjectHandler.Get)
		subjects.POST("", middleware.RequireRoles(models.RoleAdmin), subjectHandler.Create)
		subjects.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), subjectHandler.Update)
		subjects.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), subjectHandler.Delete)
	}

	sessions := api.Group("/sessions", middleware.JWT(authSvc))
	{
		sessions.GET("", sessionHandler.List)
		sessions.GET("/schedule", sessionHandler.Schedule)
		sessions.GET("/current", sessionHandler.Current)
		sessions.POST("", middleware.RequireRoles(models.RoleTutor, models.RoleAdmin), sessionHandler.Create)
		sessions.PATCH("/:id/status", middleware.RequireRoles(models.RoleTutor, models.RoleAdmin), sessionHandler.UpdateStatus)
	}

	submissions := api.Group("", middleware.JWT(authSvc))
	{
		submissions.POST("/submissions", submissionHandler.Create)
		submissions.GET("/submissions/:id", submissionHandler.Get)
		submissions.POST("/submissions/:id/feedback", middleware.RequireRoles(models.RoleTutor, models.RoleAdmin), submissionHandler.Feedback)
		submissions.GET("/students/:id/submissions", submissionHandler.ListByStudent)
		submissions.GET("/students/:id/submissions/report", submissionHandler.SubmissionHistoryReport)
		submissions.GET("/tutor/students", middleware.RequireRoles(models.RoleTutor, models.RoleAdmin), submissionHandler.StudentOverview)
		submissions.GET("/tutor/students/report", middleware.RequireRoles(models.RoleTutor, models.RoleAdmin), submissionHandler.StudentOverviewReport)
		submissions.GET("/files/:id/url", submissionHandler.FileURL)
	}

	// Token-authenticated, so browsers can follow the link without a header.
	api.GET("/files/download", submissionHandler.Download)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		sugar.Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("graceful shutdown failed", "error", err)
	}
}

// startMaintenanceQueue sweeps upload files no submission references anymore.
// Account and subject deletes cascade in SQL only, so their attachments stay
// on disk until this job removes them.
func startMaintenanceQueue(ctx context.Context, store *storage.LocalStorage, submissions *repository.SubmissionRepository, logr *zap.Logger) *jobs.Queue {
	q := jobs.NewQueue("maintenance", func(ctx context.Context, job jobs.Job) error {
		paths, err := submissions.AllFilePaths(ctx)
		if err != nil {
			return err
		}
		referenced := make(map[string]struct{}, len(paths))
		for _, p := range paths {
			referenced[filepath.ToSlash(p)] = struct{}{}
		}

		removed, err := store.RemoveExcept(referenced, 24*time.Hour)
		if err != nil {
			return err
		}
		if len(removed) > 0 {
			logr.Sugar().Infow("pruned orphaned upload files", "count", len(removed))
		}
		return nil
	}, jobs.QueueConfig{Workers: 1, Logger: logr})
	q.Start(ctx)

	go func() {
		ticker := time.NewTicker(6 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = q.Enqueue(jobs.Job{Type: "uploads-cleanup"})
			}
		}
	}()

	return q
}
