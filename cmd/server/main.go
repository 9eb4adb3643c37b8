package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/runtrack-go/internal/api"
	"github.com/jengzang/runtrack-go/internal/config"
	"github.com/jengzang/runtrack-go/internal/database"
	"github.com/jengzang/runtrack-go/internal/handler"
	"github.com/jengzang/runtrack-go/internal/logging"
	"github.com/jengzang/runtrack-go/internal/supervisor"
	"github.com/jengzang/runtrack-go/internal/tracking"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	gin.SetMode(gin.ReleaseMode)

	// 初始化数据库 (仅在启用 outbox 且配置了 runs API 时)
	d, err := buildDeps(cfg, func(path string) (*sql.DB, error) {
		if err := database.Init(database.Config{Path: path}); err != nil {
			return nil, err
		}
		return database.GetDB(), nil
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer database.Close()

	manager := tracking.NewManager(d.opts)
	defer manager.Close()

	// 初始化路由
	router := api.SetupRouter(cfg, api.Handlers{
		Session: handler.NewSessionHandler(manager, d.relay, cfg.Tracking.LiveInterval),
		Outbox:  handler.NewOutboxHandler(d.outbox),
	})

	server := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree(supervisor.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout})
	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	if d.outbox != nil {
		tree.AddWorker(d.outbox)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 启动服务器
	logging.Info().Str("addr", cfg.Server.Port).Bool("outbox", d.outbox != nil).Msg("server starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor stopped")
	}
	logging.Info().Msg("server stopped")
}
