package database

import (
	"testing"

	"commodity-price-portal/internal/config"
	"commodity-price-portal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenMemoryMigratesTables(t *testing.T) {
	db, err := OpenMemory(t.Name())
	require.NoError(t, err)

	for _, table := range []interface{}{
		&models.CommodityRecord{},
		&models.PriceHistoryEntry{},
		&models.IngestionRun{},
		&models.Account{},
		&models.Subscription{},
	} {
		assert.True(t, db.Migrator().HasTable(table))
	}
	assert.True(t, db.Migrator().HasIndex(&models.CommodityRecord{}, "idx_record_key"))
}

func TestOpenSQLite(t *testing.T) {
	cfg := config.DatabaseConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{Path: "file:open_sqlite?mode=memory&cache=shared"},
	}

	gdb, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)
	defer gdb.Close()

	require.NoError(t, gdb.InitSchema())
	assert.True(t, gdb.DB().Migrator().HasTable(&models.IngestionRun{}))
}

func TestDialectorForUnknownType(t *testing.T) {
	_, err := dialectorFor(config.DatabaseConfig{Type: "oracle"})
	assert.Error(t, err)
}

func TestDialectorNames(t *testing.T) {
	cases := map[string]string{
		"mysql":    "mysql",
		"postgres": "postgres",
		"sqlite":   "sqlite",
	}
	for typ, want := range cases {
		d, err := dialectorFor(config.DatabaseConfig{Type: typ})
		require.NoError(t, err)
		assert.Equal(t, want, d.Name())
	}
}
