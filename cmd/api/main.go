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

	_ "github.com/moolah-app/moolah-api/api/swagger"
	"github.com/moolah-app/moolah-api/internal/handler"
	"github.com/moolah-app/moolah-api/internal/middleware"
	"github.com/moolah-app/moolah-api/internal/models"
	"github.com/moolah-app/moolah-api/internal/repository"
	"github.com/moolah-app/moolah-api/internal/service"
	"github.com/moolah-app/moolah-api/pkg/cache"
	"github.com/moolah-app/moolah-api/pkg/config"
	"github.com/moolah-app/moolah-api/pkg/database"
	"github.com/moolah-app/moolah-api/pkg/jobs"
	"github.com/moolah-app/moolah-api/pkg/logger"
	corsmiddleware "github.com/moolah-app/moolah-api/pkg/middleware/cors"
	reqidmiddleware "github.com/moolah-app/moolah-api/pkg/middleware/requestid"
	"github.com/moolah-app/moolah-api/pkg/storage"
)

// @title Moolah API
// @version 1.0.0
// @description Classroom economy backend
// @BasePath /api
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API stays up without Redis; dashboards just skip the cache.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	uploads, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare uploads directory", "error", err)
	}

	validate := validator.New()
	metricsService := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled && redisClient != nil)

	studentRepo := repository.NewStudentRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	classRepo := repository.NewClassRepository(db)
	levelRepo := repository.NewLevelConfigRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	marketplaceRepo := repository.NewMarketplaceRepository(db)
	userRepo := repository.NewUserRepository(db)
	imageRepo := repository.NewSeasonImageRepository(db)

	authService := service.NewAuthService(userRepo, studentRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	studentService := service.NewStudentService(studentRepo, classRepo, taskRepo, transactionRepo, marketplaceRepo, cacheService, validate, logr)
	taskService := service.NewTaskService(taskRepo, studentRepo, levelRepo, cacheService, validate, logr)
	classService := service.NewClassService(classRepo, validate, logr)
	levelService := service.NewLevelConfigService(levelRepo, validate, logr)
	marketplaceService := service.NewMarketplaceService(marketplaceRepo, studentRepo, cacheService, validate, logr)
	transactionService := service.NewTransactionService(transactionRepo, studentRepo, validate, logr)

	cleanupQueue := jobs.NewQueue("season-image-cleanup", service.SeasonImageCleanupHandler(uploads), jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	imageService := service.NewSeasonImageService(imageRepo, uploads, cleanupQueue, service.SeasonImageConfig{
		PublicPath:       cfg.Uploads.PublicPath,
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
	}, logr)

	authHandler := handler.NewAuthHandler(authService)
	studentHandler := handler.NewStudentHandler(studentService)
	taskHandler := handler.NewTaskHandler(taskService)
	classHandler := handler.NewClassHandler(classService)
	levelHandler := handler.NewLevelConfigHandler(levelService)
	marketplaceHandler := handler.NewMarketplaceHandler(marketplaceService)
	transactionHandler := handler.NewTransactionHandler(transactionService)
	imageHandler := handler.NewSeasonImageHandler(imageService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

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
	r.GET("/metrics", metricsHandler.Scrape)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.Static(cfg.Uploads.PublicPath, uploads.BaseDir())

	teacher := middleware.RequireRoles(models.RoleTeacher)
	anyRole := middleware.RequireRoles(models.RoleTeacher, models.RoleStudent)
	teacherOrSelf := middleware.RBAC(string(models.RoleTeacher), "SELF")

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.GET("/check-auth", middleware.OptionalJWT(authService), authHandler.CheckAuth)
		}

		protected := api.Group("")
		protected.Use(middleware.JWT(authService))
		{
			students := protected.Group("/students")
			{
				students.GET("", teacher, studentHandler.List)
				students.POST("", teacher, studentHandler.Create)
				students.GET("/report/balances", teacher, studentHandler.BalanceReport)
				students.GET("/:id", teacherOrSelf, studentHandler.Get)
				students.DELETE("/:id", teacher, studentHandler.Delete)
				students.PUT("/:id/balance", teacher, studentHandler.AdjustBalance)
				students.PUT("/:id/fine", teacher, studentHandler.Fine)
				students.PUT("/:id/updateIcon", teacherOrSelf, studentHandler.UpdateIcon)
				students.PUT("/:id/updateLevel", teacher, studentHandler.UpdateLevel)
				students.PUT("/:id/updateClass", teacher, studentHandler.UpdateClass)
				students.GET("/:id/dashboard", teacherOrSelf, studentHandler.Dashboard)
			}

			tasks := protected.Group("/tasks")
			{
				tasks.GET("", anyRole, taskHandler.List)
				tasks.GET("/pending", teacher, taskHandler.ListPending)
				tasks.POST("", teacher, taskHandler.Create)
				tasks.PUT("/:id/assign", teacher, taskHandler.Assign)
				tasks.PUT("/:id/complete", anyRole, taskHandler.Complete)
				tasks.PUT("/:id/approve", teacher, taskHandler.Review)
				tasks.DELETE("/:id", teacher, taskHandler.Delete)
			}

			classes := protected.Group("/classes")
			{
				classes.GET("", teacher, classHandler.List)
				classes.GET("/:id", teacher, classHandler.Get)
				classes.GET("/:id/students", teacher, classHandler.ListStudents)
				classes.POST("", teacher, classHandler.Create)
				classes.PUT("/:id", teacher, classHandler.UpdateStudents)
				classes.DELETE("/:id", teacher, classHandler.Delete)
			}

			levels := protected.Group("/levelConfig")
			{
				levels.GET("", anyRole, levelHandler.List)
				levels.POST("", teacher, levelHandler.Upsert)
				levels.DELETE("/:level", teacher, levelHandler.Delete)
			}

			marketplace := protected.Group("/marketplace")
			{
				marketplace.GET("", anyRole, marketplaceHandler.List)
				marketplace.POST("", teacher, marketplaceHandler.Create)
				marketplace.DELETE("/:id", teacher, marketplaceHandler.Delete)
				marketplace.POST("/:id/purchase", anyRole, marketplaceHandler.Purchase)
			}

			transactions := protected.Group("/transactions")
			{
				transactions.POST("", teacher, transactionHandler.Create)
				transactions.GET("/student/:id", teacherOrSelf, transactionHandler.ListByStudent)
			}

			images := protected.Group("/season-images")
			{
				images.GET("", anyRole, imageHandler.List)
				images.POST("", teacher, imageHandler.Upload)
				images.PATCH("/set-background", teacher, imageHandler.SetBackground)
				images.DELETE("/:id", teacher, imageHandler.Delete)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cleanupQueue.Start(ctx)
	defer cleanupQueue.Stop()

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
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}
}
