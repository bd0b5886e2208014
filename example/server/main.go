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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/podprint/realtime/pkg/cache"
	"github.com/podprint/realtime/pkg/config"
	"github.com/podprint/realtime/pkg/handlers"
	"github.com/podprint/realtime/pkg/logger"
	"github.com/podprint/realtime/pkg/middleware"
	"github.com/podprint/realtime/pkg/ws"
)

func main() {
	// 配置加载，支持 PODPRINT_ 前缀环境变量覆盖
	cfg := config.New(
		config.WithConfigFile("example/server/config.yaml"),
		config.WithEnvPrefix("PODPRINT"),
		config.WithDefault("server.addr", ":8080"),
		config.WithDefault("ws.max_connections", 10000),
		config.WithDefault("ws.heartbeat_interval", "30s"),
		config.WithDefault("ws.heartbeat_timeout", "90s"),
		config.WithAutoWatch(),
	)
	if err := cfg.Load(); err != nil {
		panic(err)
	}

	log, err := logger.New(&logger.Config{
		Level:   logger.ParseLevel(cfg.GetString("log.level")),
		Format:  logger.Format(cfg.GetString("log.format")),
		Console: true,
		Rotate: &logger.RotateConfig{
			Filename: cfg.GetString("log.filename"),
			Compress: true,
		},
		EnableCaller: true,
	})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg.OnChange(func() {
		log.Info("config file reloaded")
	})

	var cacheCfg cache.Config
	if err := cfg.UnmarshalKey("cache", &cacheCfg); err != nil {
		log.Fatal("parse cache config failed", zap.Error(err))
	}
	store, err := cache.New(&cacheCfg)
	if err != nil {
		log.Fatal("init cache failed", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	registry, err := ws.NewRegistry(
		ws.WithMaxConnections(cfg.GetInt("ws.max_connections")),
		ws.WithHeartbeatInterval(cfg.GetDuration("ws.heartbeat_interval")),
		ws.WithHeartbeatTimeout(cfg.GetDuration("ws.heartbeat_timeout")),
		ws.WithAllowAllOrigins(),
		ws.WithLogger(log.Zap()),
	)
	if err != nil {
		log.Fatal("init registry failed", zap.Error(err))
	}

	dispatcher := ws.NewDispatcher(registry)
	deviceHandler := handlers.NewDevice(registry, store, log.Zap())
	for _, h := range []interface{ Register(*ws.Dispatcher) error }{
		handlers.NewGeneral(registry),
		deviceHandler,
		handlers.NewProject(registry),
		handlers.NewSystem(registry),
	} {
		if err := h.Register(dispatcher); err != nil {
			log.Fatal("register handlers failed", zap.Error(err))
		}
	}
	log.Info("message handlers registered", zap.Strings("types", dispatcher.Types()))

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS())
	engine.Use(middleware.Logger(log, &middleware.LoggerConfig{
		// 长连接端点不在请求完成时记日志
		ExcludePaths: []string{"/ws/connect"},
	}))

	group := engine.Group("/ws")
	server := ws.NewServer(registry, dispatcher)
	server.RegisterRoutes(group)

	// 设备状态查询走缓存，与连接注册中心解耦
	group.GET("/devices", func(c *gin.Context) {
		devices, err := deviceHandler.AllDevices(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"devices": devices, "count": len(devices)})
	})
	group.GET("/devices/:device_id/status", func(c *gin.Context) {
		state, err := deviceHandler.State(c.Request.Context(), c.Param("device_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if state == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		c.JSON(http.StatusOK, state)
	})

	httpServer := &http.Server{
		Addr:    cfg.GetString("server.addr"),
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := registry.Shutdown(shutdownCtx); err != nil {
			log.Warn("registry shutdown incomplete", zap.Error(err))
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server stopped")
}
