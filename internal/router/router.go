package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/surveillance-engine/internal/middleware"
	"github.com/jwalitptl/surveillance-engine/pkg/logger"
)

// Handler registers a route group on the api.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit rate.Limit
	RateBurst int
	Timeout   time.Duration
}

// New assembles the engine with the standard middleware chain and mounts
// each handler under /api/v1.
func New(cfg Config, lg *logger.Logger, handlers ...Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  cfg.RateLimit,
		Burst: cfg.RateBurst,
	})

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(lg),
		middleware.Logger(lg),
		middleware.ErrorHandler(lg),
		middleware.Timeout(cfg.Timeout),
		limiter.RateLimit(),
	)

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/api/v1")
	for _, h := range handlers {
		h.RegisterRoutes(v1)
	}

	return engine
}
