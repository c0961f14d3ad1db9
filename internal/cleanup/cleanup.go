package cleanup

import (
	"context"
	"fmt"
	"time"

	"commodity-price-portal/internal/clock"
	"commodity-price-portal/internal/config"
	"commodity-price-portal/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service applies the retention windows: old records are deactivated, old history is pruned
type Service struct {
	db    *gorm.DB
	loc   *time.Location
	clock clock.Clock
	log   *zap.Logger
}

// NewService creates a new retention service
func NewService(db *gorm.DB, loc *time.Location, clk clock.Clock, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Service{db: db, loc: loc, clock: clk, log: log.Named("cleanup")}
}

// CleanupConfig holds configuration for retention operations
type CleanupConfig struct {
	RecordDays       int  // Days a record stays active (default: 90)
	HistoryDays      int  // Days of history kept before pruning (default: 730)
	MaxDeletionCount int  // Maximum number of history rows to delete in one run (safety limit)
	DryRun           bool // If true, only count what would change
}

// FromConfig maps the retention section of the app config
func FromConfig(cfg config.RetentionConfig) CleanupConfig {
	return CleanupConfig{
		RecordDays:       cfg.RecordDays,
		HistoryDays:      cfg.HistoryDays,
		MaxDeletionCount: cfg.MaxDeletionCount,
		DryRun:           cfg.DryRun,
	}
}

// CleanupResult holds the result of a retention run
type CleanupResult struct {
	RecordCutoff       time.Time `json:"record_cutoff"`
	HistoryCutoff      time.Time `json:"history_cutoff"`
	DeactivatedRecords int64     `json:"deactivated_records"`
	PrunedHistory      int64     `json:"pruned_history"`
	DryRun             bool      `json:"dry_run"`
	ExecutedAt         time.Time `json:"executed_at"`
}

// Run deactivates records dated before the record cutoff and deletes history dated
// before the history cutoff. Records are never deleted.
func (s *Service) Run(ctx context.Context, cfg CleanupConfig) (*CleanupResult, error) {
	now := s.clock.Now()
	today := models.DayOf(now, s.loc)
	result := &CleanupResult{
		RecordCutoff:  today.AddDate(0, 0, -cfg.RecordDays),
		HistoryCutoff: today.AddDate(0, 0, -cfg.HistoryDays),
		DryRun:        cfg.DryRun,
		ExecutedAt:    now.UTC(),
	}

	db := s.db.WithContext(ctx)

	stale := db.Model(&models.CommodityRecord{}).
		Where("price_date < ? AND active = ?", result.RecordCutoff, true)
	var expiredHistory int64
	if err := db.Model(&models.PriceHistoryEntry{}).
		Where("price_date < ?", result.HistoryCutoff).
		Count(&expiredHistory).Error; err != nil {
		return nil, fmt.Errorf("failed to count expired history: %w", err)
	}

	// Safety check: abort before touching anything if too much would be deleted
	if cfg.MaxDeletionCount > 0 && expiredHistory > int64(cfg.MaxDeletionCount) {
		return nil, fmt.Errorf("safety check failed: %d history rows exceed max deletion limit of %d",
			expiredHistory, cfg.MaxDeletionCount)
	}

	if cfg.DryRun {
		if err := stale.Count(&result.DeactivatedRecords).Error; err != nil {
			return nil, fmt.Errorf("failed to count stale records: %w", err)
		}
		result.PrunedHistory = expiredHistory
		s.log.Info("[DRY-RUN] Retention would apply",
			zap.Int64("records", result.DeactivatedRecords),
			zap.Int64("history", result.PrunedHistory),
			zap.Time("record_cutoff", result.RecordCutoff),
			zap.Time("history_cutoff", result.HistoryCutoff),
		)
		return result, nil
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CommodityRecord{}).
			Where("price_date < ? AND active = ?", result.RecordCutoff, true).
			Update("active", false)
		if res.Error != nil {
			return fmt.Errorf("failed to deactivate records: %w", res.Error)
		}
		result.DeactivatedRecords = res.RowsAffected

		res = tx.Where("price_date < ?", result.HistoryCutoff).Delete(&models.PriceHistoryEntry{})
		if res.Error != nil {
			return fmt.Errorf("failed to prune history: %w", res.Error)
		}
		result.PrunedHistory = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Retention completed",
		zap.Int64("deactivated_records", result.DeactivatedRecords),
		zap.Int64("pruned_history", result.PrunedHistory),
	)
	return result, nil
}

// GetStats returns counts useful before deciding on a retention run
func (s *Service) GetStats(ctx context.Context, cfg CleanupConfig) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	db := s.db.WithContext(ctx)
	today := models.DayOf(s.clock.Now(), s.loc)

	var active, inactive, history, staleRecords, expiredHistory int64
	if err := db.Model(&models.CommodityRecord{}).Where("active = ?", true).Count(&active).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.CommodityRecord{}).Where("active = ?", false).Count(&inactive).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.PriceHistoryEntry{}).Count(&history).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.CommodityRecord{}).
		Where("price_date < ? AND active = ?", today.AddDate(0, 0, -cfg.RecordDays), true).
		Count(&staleRecords).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.PriceHistoryEntry{}).
		Where("price_date < ?", today.AddDate(0, 0, -cfg.HistoryDays)).
		Count(&expiredHistory).Error; err != nil {
		return nil, err
	}

	stats["active_records"] = active
	stats["inactive_records"] = inactive
	stats["history_rows"] = history
	stats["records_ready_for_deactivation"] = staleRecords
	stats["history_ready_for_pruning"] = expiredHistory
	return stats, nil
}
