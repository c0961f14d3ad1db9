package models

import "time"

// CommodityRecord is the canonical price of one commodity in one region on one day.
// (commodity, region, price_date) is unique; re-ingestion overwrites the row in place.
type CommodityRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Commodity Commodity `gorm:"type:varchar(32);not null;uniqueIndex:idx_record_key,priority:1;index:idx_record_lookup,priority:1" json:"commodity"`
	Region    Region    `gorm:"type:varchar(32);not null;uniqueIndex:idx_record_key,priority:2;index:idx_record_lookup,priority:2" json:"region"`
	PriceDate time.Time `gorm:"type:date;not null;uniqueIndex:idx_record_key,priority:3;index:idx_record_date" json:"price_date"`

	Price     int64     `gorm:"not null" json:"price"`
	Unit      string    `gorm:"type:varchar(32)" json:"unit"`
	SourceRef string    `gorm:"type:varchar(500)" json:"source_ref,omitempty"`
	ScrapedAt time.Time `gorm:"not null" json:"scraped_at"`
	Active    bool      `gorm:"not null;default:true;index:idx_record_lookup,priority:3" json:"active"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (CommodityRecord) TableName() string {
	return "commodity_records"
}

// PriceHistoryEntry is one immutable ledger line written after a successful upsert.
// The owning CommodityRecord may be overwritten later; the entry keeps the value it saw.
type PriceHistoryEntry struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Commodity  Commodity `gorm:"type:varchar(32);not null;index:idx_history_series,priority:1" json:"commodity"`
	Region     Region    `gorm:"type:varchar(32);not null;index:idx_history_series,priority:2" json:"region"`
	PriceDate  time.Time `gorm:"type:date;not null;index:idx_history_series,priority:3;index:idx_history_date" json:"price_date"`
	Price      int64     `gorm:"not null" json:"price"`
	RunID      string    `gorm:"type:varchar(36);index" json:"run_id,omitempty"`
	RecordedAt time.Time `gorm:"not null;autoCreateTime" json:"recorded_at"`
}

// TableName specifies the table name
func (PriceHistoryEntry) TableName() string {
	return "price_history"
}
