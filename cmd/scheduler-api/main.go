package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/studyflow/studyflow-api/api/swagger"
	"github.com/studyflow/studyflow-api/internal/engine"
	"github.com/studyflow/studyflow-api/internal/handler"
	"github.com/studyflow/studyflow-api/internal/middleware"
	"github.com/studyflow/studyflow-api/internal/models"
	"github.com/studyflow/studyflow-api/internal/repository"
	"github.com/studyflow/studyflow-api/internal/service"
	"github.com/studyflow/studyflow-api/pkg/cache"
	"github.com/studyflow/studyflow-api/pkg/config"
	"github.com/studyflow/studyflow-api/pkg/database"
	"github.com/studyflow/studyflow-api/pkg/logger"
	corsmiddleware "github.com/studyflow/studyflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/studyflow/studyflow-api/pkg/middleware/requestid"
)

// @title StudyFlow Scheduler API
// @version 1.0.0
// @description Study-session scheduling engine: availability, allocation, conflicts and adaptive rescheduling.
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

	metricsSvc := service.NewMetricsService()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Scheduler.SessionCacheTTL, logr, redisClient != nil)

	planRepo := repository.NewPlanRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	conflictRepo := repository.NewConflictRepository(db)
	blockRepo := repository.NewLockedBlockRepository(db)

	schedulerSvc := service.NewSchedulerService(planRepo, sessionRepo, conflictRepo, blockRepo, cacheSvc, metricsSvc, nil, logr, service.SchedulerConfig{
		Options: engine.Options{
			WakingStartHour:   cfg.Scheduler.WakingStartHour,
			WakingEndHour:     cfg.Scheduler.WakingEndHour,
			MinSessionMinutes: cfg.Scheduler.MinSessionMinutes,
		},
		Defaults: models.CognitiveLoadPolicy{
			MaxSessionsPerDay:     cfg.Scheduler.MaxSessionsPerDay,
			MaxHardSessionsPerDay: cfg.Scheduler.MaxHardSessionsPerDay,
		},
		CacheTTL: cfg.Scheduler.SessionCacheTTL,
	})
	planSvc := service.NewPlanService(planRepo, blockRepo, nil, logr)
	exportSvc := service.NewExportService(planRepo, sessionRepo, nil, nil, logr)

	schedulerHandler := handler.NewSchedulerHandler(schedulerSvc)
	planHandler := handler.NewPlanHandler(planSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		api.GET("/metrics/summary", metricsHandler.Snapshot)

		api.POST("/plans", planHandler.Create)
		api.GET("/plans", planHandler.List)
		api.GET("/plans/:id", planHandler.Get)
		api.DELETE("/plans/:id", planHandler.Delete)
		api.GET("/plans/:id/blocks", planHandler.ListBlocks)
		api.POST("/plans/:id/blocks", planHandler.AddBlock)
		api.DELETE("/plans/:id/blocks/:blockId", planHandler.RemoveBlock)

		api.POST("/plans/:id/allocate", schedulerHandler.Allocate)
		api.GET("/plans/:id/sessions", schedulerHandler.ListSessions)
		api.GET("/plans/:id/conflicts", schedulerHandler.ListConflicts)
		api.POST("/sessions/:id/reschedule", schedulerHandler.Reschedule)
		api.POST("/sessions/:id/handle-missed", schedulerHandler.HandleMissed)
		api.POST("/conflicts/:id/resolve", schedulerHandler.ResolveConflict)
		api.POST("/conflicts/:id/accept", schedulerHandler.AcceptConflict)

		if cfg.Export.Enabled {
			api.GET("/plans/:id/export", exportHandler.Export)
		}
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sweeper *service.MissedSweeper
	if cfg.Sweeper.Enabled {
		sweeper, err = service.NewMissedSweeper(sessionRepo, schedulerSvc, metricsSvc, logr, service.SweeperConfig{
			CronSpec:   cfg.Sweeper.CronSpec,
			Workers:    cfg.Sweeper.Workers,
			MaxRetries: cfg.Sweeper.MaxRetries,
		})
		if err != nil {
			logr.Sugar().Fatalw("failed to start missed-session sweeper", "error", err)
		}
		sweeper.Start(rootCtx)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	if sweeper != nil {
		sweeper.Stop()
	}
	if err := cacheRepo.Close(); err != nil {
		logr.Sugar().Warnw("closing redis failed", "error", err)
	}
}
