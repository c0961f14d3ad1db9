package database

import (
	"fmt"
	"strings"
	"time"

	"commodity-price-portal/internal/config"
	"commodity-price-portal/internal/logger"
	"commodity-price-portal/internal/models"

	"github.com/glebarez/sqlite"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormDB wraps the gorm handle shared by every store in the process
type GormDB struct {
	db *gorm.DB
}

// Open connects to the database selected by cfg.Type (mysql, postgres or sqlite)
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*GormDB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	level := gormlogger.Warn
	if cfg.LogSQL {
		level = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLogger(log, level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Type, err)
	}

	// Test connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Type, err)
	}

	if strings.EqualFold(cfg.Type, "sqlite") {
		// a single writer avoids SQLITE_BUSY under the concurrent writer pool
		sqlDB.SetMaxOpenConns(1)
	}

	return &GormDB{db: db}, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Type) {
	case "mysql", "":
		my := cfg.MySQL
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			my.User, my.Password, my.Host, my.Port, my.Database)
		return mysql.Open(dsn), nil
	case "postgres":
		pg := cfg.Postgres
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			pg.Host, pg.Port, pg.User, pg.Password, pg.Database, pg.SSLMode)
		// lib/pq registers the "postgres" database/sql driver; gorm speaks through it
		return postgres.New(postgres.Config{
			DriverName: "postgres",
			DSN:        dsn,
		}), nil
	case "sqlite":
		return sqlite.Open(cfg.SQLite.Path), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}

// NewGormDBFromDB creates a GormDB wrapper from an existing gorm.DB instance
func NewGormDBFromDB(db *gorm.DB) *GormDB {
	return &GormDB{db: db}
}

// DB returns the underlying gorm.DB instance
func (gdb *GormDB) DB() *gorm.DB {
	return gdb.db
}

func (gdb *GormDB) Close() error {
	sqlDB, err := gdb.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema creates tables using GORM AutoMigrate
func (gdb *GormDB) InitSchema() error {
	return InitSchema(gdb.db)
}

// InitSchema migrates every table the price core reads or writes
func InitSchema(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.CommodityRecord{},
		&models.PriceHistoryEntry{},
		&models.IngestionRun{},
		&models.Account{},
		&models.Subscription{},
	)
}
