package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mssola/user_agent"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lakshin-amin/RakshaNet/internal/guardian"
	"github.com/Lakshin-amin/RakshaNet/internal/models"
	"github.com/Lakshin-amin/RakshaNet/pkg/errors"
	"github.com/Lakshin-amin/RakshaNet/pkg/middleware"
	"github.com/Lakshin-amin/RakshaNet/pkg/response"
	"github.com/Lakshin-amin/RakshaNet/pkg/sse"
)

type Handlers struct {
	service *guardian.Service
	store   *models.Store
	feed    *sse.Hub
}

func New(service *guardian.Service, store *models.Store, feed *sse.Hub) *Handlers {
	return &Handlers{service: service, store: store, feed: feed}
}

// RegisterRoutes 注册全部路由。POST 面挂限流与幂等中间件；
// /sos 不限流（紧急端点必须永远可达）。
func (h *Handlers) RegisterRoutes(r *gin.Engine, limiter *middleware.RateLimiter) {
	r.GET("/", h.Home)
	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	post := r.Group("/")
	if limiter != nil {
		post.Use(limiter.Middleware())
	}
	post.Use(middleware.IdempotencyMiddleware(middleware.IdempotencyConfig{}))
	post.POST("/start-timer", h.StartTimer)
	post.POST("/check-in", h.CheckIn)
	post.POST("/sos", h.SOS)
	post.POST("/add-contact", h.AddContact)
	post.POST("/delete-contact", h.DeleteContact)

	r.GET("/logs/:userId", h.Logs)
	r.GET("/logs/:userId/date/:date", h.LogsByDate)
	r.GET("/stats/:userId", h.Stats)
	r.GET("/contacts/:userId", h.Contacts)
	r.GET("/alerts/stream", h.feed.Serve)
}

// Home 服务器时间、星期、ISO 周号
func (h *Handlers) Home(c *gin.Context) {
	now := models.Now()
	c.JSON(http.StatusOK, gin.H{
		"status":   "RakshaNet backend running",
		"time_ist": models.FormatHuman(now),
		"day":      now.Format("Monday"),
		"week":     models.ISOWeek(now),
	})
}

// HealthCheck 健康检查接口
func (h *Handlers) HealthCheck(c *gin.Context) {
	sqlDB, err := h.store.DB().DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database connection failed"})
		return
	}
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database ping failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// respondError 把核心错误翻译成响应：校验失败 400，其余 500
func respondError(c *gin.Context, err error) {
	switch errors.GetCode(err) {
	case errors.CodeValidation:
		response.BadRequest(c, errors.GetMessage(err))
	default:
		response.FailWithStatus(c, http.StatusInternalServerError, errors.GetMessage(err), nil)
	}
}

// deviceFrom 从 User-Agent 提取设备/浏览器摘要，写入会话审计
func deviceFrom(c *gin.Context) string {
	raw := c.Request.UserAgent()
	if raw == "" {
		return ""
	}
	ua := user_agent.New(raw)
	name, version := ua.Browser()
	parts := make([]string, 0, 2)
	if name != "" {
		parts = append(parts, strings.TrimSpace(name+" "+version))
	}
	if os := ua.OS(); os != "" {
		parts = append(parts, os)
	}
	return strings.Join(parts, " / ")
}
