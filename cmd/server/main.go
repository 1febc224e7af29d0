package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shiivaansh/sortED-sub000/config"
	"github.com/shiivaansh/sortED-sub000/internal/api/handler"
	"github.com/shiivaansh/sortED-sub000/internal/api/router"
	"github.com/shiivaansh/sortED-sub000/internal/jobs"
	"github.com/shiivaansh/sortED-sub000/internal/realtime"
	"github.com/shiivaansh/sortED-sub000/internal/repository"
	"github.com/shiivaansh/sortED-sub000/internal/service"
	"github.com/shiivaansh/sortED-sub000/pkg/ai"
	"github.com/shiivaansh/sortED-sub000/pkg/database"
	"github.com/shiivaansh/sortED-sub000/pkg/jwt"
	applogger "github.com/shiivaansh/sortED-sub000/pkg/logger"
	"github.com/shiivaansh/sortED-sub000/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("realtime_driver", cfg.Realtime.Driver),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	var rdb *redis.Client
	rdb, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，限流与 Token 吊销名单将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 变更总线：多实例部署需要 redis，否则退回进程内总线
	bus := newBus(cfg, rdb, logger)

	// 6. 初始化 JWT 管理器
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 7. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db, cfg.Consistency.MaxBatchSize)
	var aiClient service.AIClient
	if cfg.AI.BaseURL != "" {
		aiClient = ai.NewClient(&cfg.AI)
	}
	svc := service.NewService(cfg, repo, bus, aiClient, logger)
	h := handler.NewHandler(cfg, svc, rdb, logger)

	// 8. 定时任务
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler, err = jobs.NewScheduler(&cfg.Jobs, svc.Roster, svc.Membership, logger)
		if err != nil {
			logger.Fatal("定时任务初始化失败", zap.Error(err))
		}
		scheduler.Start()
	}

	// 9. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 10. 启动 HTTP 服务器（优雅关闭）
	// websocket 长连接不受 WriteTimeout 限制，写超时由 LiveHandler 按帧控制
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 11. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop(ctx)
	}

	// 先关闭总线，结束所有实时订阅，websocket 连接随之退出
	if err := bus.Close(); err != nil {
		logger.Warn("关闭变更总线失败", zap.Error(err))
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	if sqlDB != nil {
		sqlDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}

func newBus(cfg *config.Config, rdb *redis.Client, logger *zap.Logger) realtime.Bus {
	if cfg.Realtime.Driver == "redis" {
		if rdb != nil {
			return realtime.NewRedisBus(rdb, cfg.Realtime.Channel, cfg.Realtime.Buffer, logger)
		}
		logger.Warn("realtime.driver=redis 但 Redis 不可用，改用进程内总线")
	}
	return realtime.NewMemoryBus(cfg.Realtime.Buffer)
}
