package persistence

import (
	"context"
	"errors"
	"time"

	"commodity-price-portal/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by single-row lookups that match nothing
var ErrNotFound = errors.New("not found")

// Store is the gorm-backed access layer for price records, history and run diagnostics
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for components that share the connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

// UpsertRecord inserts rec or overwrites the row with the same (commodity, region, price_date)
func (s *Store) UpsertRecord(ctx context.Context, rec *models.CommodityRecord) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "commodity"}, {Name: "region"}, {Name: "price_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"price", "unit", "source_ref", "scraped_at", "active", "updated_at",
		}),
	}).Create(rec).Error
}

// AppendHistory writes one ledger entry
func (s *Store) AppendHistory(ctx context.Context, entry *models.PriceHistoryEntry) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// GetRecord returns the record for one key
func (s *Store) GetRecord(ctx context.Context, commodity models.Commodity, region models.Region, day time.Time) (*models.CommodityRecord, error) {
	var rec models.CommodityRecord
	err := s.db.WithContext(ctx).
		Where("commodity = ? AND region = ? AND price_date = ?", commodity, region, day).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ActiveRegionalRecords returns the active province-level records of one commodity for day
func (s *Store) ActiveRegionalRecords(ctx context.Context, commodity models.Commodity, day time.Time) ([]models.CommodityRecord, error) {
	var recs []models.CommodityRecord
	err := s.db.WithContext(ctx).
		Where("commodity = ? AND price_date = ? AND active = ? AND region <> ?", commodity, day, true, models.RegionNational).
		Order("region ASC").
		Find(&recs).Error
	return recs, err
}

// RecordsForDay returns the active records of region for day, optionally limited to commodities
func (s *Store) RecordsForDay(ctx context.Context, region models.Region, commodities []models.Commodity, day time.Time) ([]models.CommodityRecord, error) {
	q := s.db.WithContext(ctx).
		Where("region = ? AND price_date = ? AND active = ?", region, day, true)
	if len(commodities) > 0 {
		q = q.Where("commodity IN ?", commodities)
	}

	var recs []models.CommodityRecord
	err := q.Order("commodity ASC").Find(&recs).Error
	return recs, err
}

// LatestRecords returns, per commodity, the newest active record of region on or after since
func (s *Store) LatestRecords(ctx context.Context, region models.Region, commodities []models.Commodity, since time.Time) ([]models.CommodityRecord, error) {
	q := s.db.WithContext(ctx).
		Where("region = ? AND price_date >= ? AND active = ?", region, since, true)
	if len(commodities) > 0 {
		q = q.Where("commodity IN ?", commodities)
	}

	var recs []models.CommodityRecord
	if err := q.Order("price_date DESC").Order("commodity ASC").Find(&recs).Error; err != nil {
		return nil, err
	}

	seen := make(map[models.Commodity]bool, len(recs))
	latest := make([]models.CommodityRecord, 0, len(recs))
	for _, r := range recs {
		if seen[r.Commodity] {
			continue
		}
		seen[r.Commodity] = true
		latest = append(latest, r)
	}
	return latest, nil
}

// History returns ledger entries of region between from and to inclusive, oldest first
func (s *Store) History(ctx context.Context, region models.Region, commodities []models.Commodity, from, to time.Time) ([]models.PriceHistoryEntry, error) {
	q := s.db.WithContext(ctx).
		Where("region = ? AND price_date >= ? AND price_date <= ?", region, from, to)
	if len(commodities) > 0 {
		q = q.Where("commodity IN ?", commodities)
	}

	var entries []models.PriceHistoryEntry
	err := q.Order("price_date ASC").Order("commodity ASC").Order("id ASC").Find(&entries).Error
	return entries, err
}

// SaveRun persists a finished ingestion run
func (s *Store) SaveRun(ctx context.Context, run *models.IngestionRun) error {
	return s.db.WithContext(ctx).Create(run).Error
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.IngestionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.IngestionRun
	err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// LatestRun returns the newest run
func (s *Store) LatestRun(ctx context.Context) (*models.IngestionRun, error) {
	var run models.IngestionRun
	err := s.db.WithContext(ctx).Order("started_at DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
