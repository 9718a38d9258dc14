package services

import (
	"encoding/json"
	"fmt"
	"testing"

	"BSA-TMPL/internal"
	"BSA-TMPL/internal/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory sqlite database migrated to the full schema.
// A single connection keeps sqlite's write lock out of the way; the store's per-key
// mutex provides the serialization under test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, internal.AutoMigrate(db))
	return db
}

func newTestStore(t *testing.T) *InstanceStore {
	t.Helper()
	return NewInstanceStore(newTestDB(t), logger.NewNop())
}

// asFloat normalizes a JSON-sourced numeric value. Data maps read back from the
// database carry json.Number, while freshly mapped ones carry float64.
func asFloat(t *testing.T, v interface{}) float64 {
	t.Helper()
	switch n := v.(type) {
	case float64:
		return n
	case json.Number:
		f, err := n.Float64()
		require.NoError(t, err)
		return f
	default:
		t.Fatalf("not a number: %T(%v)", v, v)
		return 0
	}
}
