package app

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

	"nbl_training_backend/internal/config"
	"nbl_training_backend/internal/controller"
	"nbl_training_backend/internal/repository"
	"nbl_training_backend/internal/scoring"
	"nbl_training_backend/internal/service"
	"nbl_training_backend/pkg/configwatcher"
	"nbl_training_backend/pkg/database"
	"nbl_training_backend/pkg/logger"
	"nbl_training_backend/pkg/monitoring"
	"nbl_training_backend/pkg/security"
	"nbl_training_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user    *repository.UserRepository
	session *repository.SessionRepository
}

type services struct {
	training *service.TrainingService
	reports  *service.ReportStorage
	hub      *service.TrainingHub
	events   *service.TrainingEvents
}

type controllers struct {
	training *controller.TrainingController
	auth     *controller.AuthController
	health   *controller.HealthController
}

// ScoringParams 配置转评分参数，零值回落到默认
func ScoringParams(c config.ScoringConfig) scoring.Params {
	return scoring.Params{
		BuoyancyTarget:    c.BuoyancyTarget,
		BuoyancyTolerance: c.BuoyancyTolerance,
		ForceMin:          c.ForceMin,
		ForceMax:          c.ForceMax,
		TorqueTarget:      c.TorqueTarget,
		TorqueWindow:      c.TorqueWindow,
		PositionTolerance: c.PositionTolerance,
		AngleTolerance:    c.AngleTolerance,
	}.Normalize()
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:    repository.NewUserRepository(db),
		session: repository.NewSessionRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) (*services, error) {
	s := &services{}

	s.training = service.NewTrainingService(repos.session, repos.user, ScoringParams(cfg.Scoring))

	reports, err := service.NewReportStorage(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	if reports != nil {
		s.reports = reports
		s.training.SetArchiver(reports)
	}

	s.hub = service.NewTrainingHub(rdb, security.OriginChecker(cfg.CORS.AllowedOrigins))
	s.events = service.NewTrainingEvents(s.training, s.hub)
	s.hub.SetHandler(s.events)
	go s.hub.Run()

	return s, nil
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		training: controller.NewTrainingController(s.training, s.hub),
		auth:     controller.NewAuthController(&a.Config.JWT),
		health:   controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	// debug 模式或显式要求时迁移
	if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
		if err := database.Migrate(db); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app, nil
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("initialize redis: %w", err)
	}
	app.Redis = rdb

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			return nil, fmt.Errorf("initialize tracing: %w", err)
		}
		app.tracer = tp
	}

	repos := app.initRepositories(db)
	svcs, err := app.initServices(repos, cfg, rdb)
	if err != nil {
		return nil, err
	}
	app.services = svcs
	ctrls := app.initControllers(svcs, db, rdb)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, ctrls, svcs, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/reports", cfg.Storage.LocalPath)
	}

	// 配置热更新：评分参数与日志级别
	app.RegisterConfigCallback(func(newCfg *config.Config) {
		svcs.training.SetParams(ScoringParams(newCfg.Scoring))
		logger.Log.Info("Scoring parameters reloaded")
	})
	app.RegisterConfigCallback(func(newCfg *config.Config) {
		logger.SetMode(newCfg.Server.Mode)
	})

	return app, nil
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	ctx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if a.Config.ConfigFile != "" {
		go func() {
			if err := configwatcher.WatchConfig(ctx, a.Config.ConfigFile, a.applyConfig); err != nil {
				logger.Log.Error("Config watcher stopped", zap.Error(err))
			}
		}()
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// 关闭 WebSocket 连接
	if a.services != nil && a.services.hub != nil {
		a.services.hub.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
	logger.Log.Sync()
}
