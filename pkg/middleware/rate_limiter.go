package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiterConfig 限流配置
//
// Rate: "30-M"（每分钟 30 次）；SkipPaths 前缀匹配。
// SOS 必须永远可达：紧急端点应列入 SkipPaths。
type RateLimiterConfig struct {
	Rate      string   `json:"rate"`
	SkipPaths []string `json:"skip_paths"`
}

var (
	rateLimitDeny = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_deny_total",
		Help: "Denied requests by rate limiter",
	}, []string{"route"})
)

// RateLimiter 基于内存存储、按客户端 IP 限流
type RateLimiter struct {
	mu  sync.RWMutex
	cfg RateLimiterConfig
	lim *limiter.Limiter
}

func NewRateLimiter(cfg RateLimiterConfig) (*RateLimiter, error) {
	if cfg.Rate == "" {
		cfg.Rate = "30-M"
	}
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{
		cfg: cfg,
		lim: limiter.New(memory.NewStore(), rate),
	}, nil
}

// Middleware 返回 Gin 中间件
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range l.cfg.SkipPaths {
			if strings.HasPrefix(path, skip) {
				c.Next()
				return
			}
		}

		lctx, err := l.lim.Get(c, c.ClientIP())
		if err != nil {
			// 限流器自身故障时放行
			c.Next()
			return
		}
		if lctx.Reached {
			route := c.FullPath()
			if route == "" {
				route = path
			}
			rateLimitDeny.WithLabelValues(route).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
			})
			return
		}
		c.Next()
	}
}
