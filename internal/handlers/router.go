package handlers

import (
	"net/http"
	"time"

	"commodity-price-portal/internal/logger"
	"commodity-price-portal/internal/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterOptions collects what NewRouter wires together
type RouterOptions struct {
	Prices      *PriceHandler
	Admin       *AdminHandler
	Limiter     *ratelimit.RateLimiter
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	Ping        func() error
	Log         *zap.Logger
}

// NewRouter builds the gin engine with every route registered
func NewRouter(opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(opts.Log))

	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST"},
			AllowHeaders:     []string{"Origin", "Content-Type", AccountHeader},
			AllowCredentials: true,
		}))
	}

	r.GET("/health", healthCheck(opts.Ping))
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	if opts.Prices != nil {
		prices := r.Group("/api/prices")
		prices.GET("/national", opts.Prices.GetNational)
		prices.GET("/regions/:region", opts.Prices.GetRegional)
		prices.GET("/search", opts.Prices.Search)
	}

	// Admin API routes (requires authentication in production)
	if opts.Admin != nil {
		admin := r.Group("/api/admin")
		trigger := []gin.HandlerFunc{opts.Admin.TriggerIngestion}
		if opts.Limiter != nil {
			trigger = append([]gin.HandlerFunc{RateLimitMiddleware(opts.Limiter)}, trigger...)
			admin.GET("/ratelimit/stats", opts.Admin.GetRateLimitStats)
		}
		admin.GET("/stats", opts.Admin.GetStats)
		admin.POST("/ingestion/trigger", trigger...)
		admin.GET("/ingestion/runs", opts.Admin.ListRuns)
		admin.POST("/retention/run", opts.Admin.RunRetention)
	}

	return r
}

func healthCheck(ping func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			if err := ping(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "degraded",
					"error":  err.Error(),
					"time":   time.Now(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now(),
		})
	}
}
