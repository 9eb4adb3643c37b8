package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jengzang/runtrack-go/internal/config"
	"github.com/jengzang/runtrack-go/internal/handler"
	"github.com/jengzang/runtrack-go/internal/middleware"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Session *handler.SessionHandler
	Outbox  *handler.OutboxHandler
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Run tracking API is running",
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API 路由组
	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))
	{
		// 跑步会话接口
		session := api.Group("/session")
		{
			session.GET("", h.Session.Get)
			session.POST("/start", h.Session.Start)
			session.POST("/pause", h.Session.Pause)
			session.POST("/resume", h.Session.Resume)
			session.POST("/stop", h.Session.Stop)
			session.POST("/fixes", h.Session.PushFix)
			session.POST("/errors", h.Session.PushError)
		}

		// 待上传队列接口
		outbox := api.Group("/outbox")
		{
			outbox.GET("", h.Outbox.List)
			outbox.POST("/flush", h.Outbox.Flush)
		}
	}

	// 实时推送不受限流影响
	r.GET("/api/v1/session/live", h.Session.Live)

	return r
}
