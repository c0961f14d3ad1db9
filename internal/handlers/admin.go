package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"commodity-price-portal/internal/cleanup"
	"commodity-price-portal/internal/models"
	"commodity-price-portal/internal/persistence"
	"commodity-price-portal/internal/ratelimit"
	"commodity-price-portal/internal/scheduler"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Jobs is the part of the scheduler the admin API drives
type Jobs interface {
	TriggerIngestionNow(ctx context.Context) (*scheduler.DailyResult, error)
	IsIngesting() bool
	RunRetention(ctx context.Context) (*cleanup.CleanupResult, error)
	RetentionPreview(ctx context.Context) (map[string]interface{}, error)
}

// AdminHandler handles admin-related requests
type AdminHandler struct {
	store      *persistence.Store
	jobs       Jobs
	limiter    *ratelimit.RateLimiter
	jobTimeout time.Duration
	log        *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store *persistence.Store, jobs Jobs, limiter *ratelimit.RateLimiter, jobTimeout time.Duration, log *zap.Logger) *AdminHandler {
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Minute
	}
	return &AdminHandler{
		store:      store,
		jobs:       jobs,
		limiter:    limiter,
		jobTimeout: jobTimeout,
		log:        log.Named("admin"),
	}
}

// GetStats returns system statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	db := h.store.DB().WithContext(c.Request.Context())
	stats := make(map[string]interface{})

	var active, inactive, national, history int64
	for _, q := range []struct {
		name  string
		query *gorm.DB
		dest  *int64
	}{
		{"active records", db.Model(&models.CommodityRecord{}).Where("active = ?", true), &active},
		{"inactive records", db.Model(&models.CommodityRecord{}).Where("active = ?", false), &inactive},
		{"national records", db.Model(&models.CommodityRecord{}).Where("region = ? AND active = ?", models.RegionNational, true), &national},
		{"history rows", db.Model(&models.PriceHistoryEntry{}), &history},
	} {
		if err := q.query.Count(q.dest).Error; err != nil {
			h.log.Error("Failed to count "+q.name, zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load statistics"})
			return
		}
	}

	stats["records"] = map[string]interface{}{
		"active":   active,
		"inactive": inactive,
		"national": national,
	}
	stats["history_rows"] = history

	if run, err := h.store.LatestRun(c.Request.Context()); err == nil {
		stats["latest_run"] = run
	} else if !errors.Is(err, persistence.ErrNotFound) {
		h.log.Warn("Failed to load latest run", zap.Error(err))
	}
	if h.limiter != nil {
		stats["rate_limit"] = h.limiter.GetStats()
	}
	if h.jobs != nil {
		stats["ingesting"] = h.jobs.IsIngesting()
		if preview, err := h.jobs.RetentionPreview(c.Request.Context()); err == nil {
			stats["retention"] = preview
		} else {
			h.log.Warn("Failed to preview retention", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, stats)
}

// TriggerIngestion manually triggers the daily ingestion path.
// By default it runs in the background; ?wait=true blocks and returns the result.
func (h *AdminHandler) TriggerIngestion(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler not available"})
		return
	}
	if h.jobs.IsIngesting() {
		c.JSON(http.StatusConflict, gin.H{"error": "ingestion already running"})
		return
	}

	h.log.Info("Manual ingestion trigger requested")

	if c.Query("wait") == "true" {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.jobTimeout)
		defer cancel()
		res, err := h.jobs.TriggerIngestionNow(ctx)
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": "ingestion already running"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}

	// Run in goroutine to avoid blocking
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.jobTimeout)
		defer cancel()
		res, err := h.jobs.TriggerIngestionNow(ctx)
		if err != nil {
			h.log.Warn("Manual ingestion did not run", zap.Error(err))
			return
		}
		h.log.Info("Manual ingestion completed",
			zap.String("run_id", res.Run.ID),
			zap.String("outcome", string(res.Run.Outcome)),
		)
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Ingestion job started",
		"status":  "running",
	})
}

// ListRuns returns recent ingestion runs, newest first
func (h *AdminHandler) ListRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
		return
	}

	runs, err := h.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

// RunRetention applies the retention windows synchronously
func (h *AdminHandler) RunRetention(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler not available"})
		return
	}

	res, err := h.jobs.RunRetention(c.Request.Context())
	if errors.Is(err, scheduler.ErrAlreadyRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": "retention already running"})
		return
	}
	if err != nil {
		h.log.Error("Retention failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetRateLimitStats returns current rate limiter statistics
func (h *AdminHandler) GetRateLimitStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.limiter.GetStats())
}
