package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/langchou/carshare/internal/api/carshare"
	"github.com/langchou/carshare/internal/api/handlers"
	"github.com/langchou/carshare/internal/balance"
	"github.com/langchou/carshare/internal/cache"
	"github.com/langchou/carshare/internal/config"
	"github.com/langchou/carshare/internal/metrics"
	"github.com/langchou/carshare/internal/mqtt"
	"github.com/langchou/carshare/internal/pricing"
	"github.com/langchou/carshare/internal/repository"
	"github.com/langchou/carshare/internal/service"
	"github.com/langchou/carshare/internal/session"
	"github.com/langchou/carshare/pkg/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and background pollers",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting carshare",
		zap.String("port", cfg.ServerPort),
		zap.String("api", cfg.APIBaseURL),
		zap.String("env", cfg.Env))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	// 油价表
	calc, err := loadCalculator(cfg.FuelPricesFile)
	if err != nil {
		return err
	}
	aggregator := balance.New(calc)

	// 上游 API 客户端
	api := carshare.NewClient(cfg.APIBaseURL,
		carshare.WithTimeout(cfg.APITimeout),
		carshare.WithLogger(logger),
		carshare.WithMetrics(m),
		carshare.WithBreaker(carshare.BreakerSettings{
			MaxRequests:  cfg.BreakerMaxRequests,
			Interval:     cfg.BreakerInterval,
			Timeout:      cfg.BreakerTimeout,
			MinRequests:  cfg.BreakerMinRequests,
			FailureRatio: cfg.BreakerFailureRatio,
		}),
	)

	// 降级查询缓存（可选）
	var sessionCache session.Cache
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("Redis unavailable, fallback queries will not be cached", zap.Error(err))
		} else {
			defer client.Close()
			sessionCache = cache.NewSessionStore(client, cfg.SessionCacheTTL)
			logger.Info("Session cache enabled", zap.String("addr", cfg.RedisAddr))
		}
	}
	resolver := session.NewResolver(api, sessionCache, logger, m)

	// 行程账本（可选）
	var (
		recorder service.TripRecorder
		ledger   handlers.TripLedger
	)
	if cfg.DatabaseURL != "" {
		db, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		// 执行数据库迁移
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("Database migrated successfully")

		trips := repository.NewTripRepository(db)
		recorder, ledger = trips, trips
	}

	// MQTT 旁路通知
	publisher := mqtt.New(mqtt.Config{
		BrokerURL:  cfg.MQTTBrokerURL,
		ClientID:   cfg.MQTTClientID,
		Username:   cfg.MQTTUsername,
		Password:   cfg.MQTTPassword,
		StartTopic: cfg.MQTTStartTopic,
		StopTopic:  cfg.MQTTStopTopic,
	}, logger, m)
	if publisher.Enabled() {
		go func() {
			if err := publisher.Connect(ctx); err != nil {
				logger.Warn("MQTT connect failed, notifications disabled until reconnect", zap.Error(err))
			}
		}()
	}
	defer publisher.Disconnect()

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger, m)
	go wsHub.Run(ctx)

	sessions := service.NewSessionService(cfg, logger, m, api, resolver, aggregator, publisher, wsHub, recorder)
	health := service.NewHealthMonitor(cfg, logger, m, api, publisher, wsHub)
	stats := service.NewStatsService(logger, resolver, aggregator, api, api)

	wsHub.SetInitDataProvider(func(userID string) *ws.InitData {
		return &ws.InitData{
			Session: sessions.State(userID),
			Health:  health.Status(),
		}
	})

	sessions.Start(ctx)
	health.Start(ctx)

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(cfg, logger, m, api, resolver, sessions, stats, health, ledger, wsHub)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error("Server failed", zap.Error(err))
		cancel()
		sessions.Stop()
		health.Stop()
		return err
	}

	logger.Info("Shutting down server...")

	// 停止服务
	health.Stop()
	sessions.Stop()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	cancel()

	logger.Info("Server exited")
	return nil
}

// loadCalculator 加载油价表，未配置文件时使用默认价格
func loadCalculator(path string) (*pricing.Calculator, error) {
	if path == "" {
		return pricing.Default(), nil
	}
	prices, err := pricing.LoadPriceTable(path)
	if err != nil {
		return nil, err
	}
	return pricing.NewCalculator(prices), nil
}
