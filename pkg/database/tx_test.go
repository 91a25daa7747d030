package database

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type counterRow struct {
	ID    int `gorm:"primaryKey"`
	Value int
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&counterRow{}))
	require.NoError(t, db.Create(&counterRow{ID: 1}).Error)
	return db
}

func TestWithRetry_RetriesDeadlockAndRollsBack(t *testing.T) {
	db := newTestDB(t)
	attempts := 0

	err := WithRetry(context.Background(), db, TxOptions{MaxRetries: 3}, func(tx *gorm.DB) error {
		attempts++
		if err := tx.Model(&counterRow{}).Where("id = 1").Update("value", gorm.Expr("value + 1")).Error; err != nil {
			return err
		}
		if attempts < 3 {
			return &pgconn.PgError{Code: "40P01"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	// failed attempts were rolled back
	var row counterRow
	require.NoError(t, db.First(&row, 1).Error)
	assert.Equal(t, 1, row.Value)
}

func TestWithRetry_PermanentErrorIsNotRetried(t *testing.T) {
	db := newTestDB(t)
	attempts := 0
	boom := errors.New("boom")

	err := WithRetry(context.Background(), db, DefaultTxOptions(), func(tx *gorm.DB) error {
		attempts++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_GivesUp(t *testing.T) {
	db := newTestDB(t)
	attempts := 0

	err := WithRetry(context.Background(), db, TxOptions{MaxRetries: 1}, func(tx *gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: "40001"}
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries (1) exceeded")
	assert.Equal(t, 2, attempts)
	assert.Equal(t, ErrorClassSerialization, ClassifyError(err))
}

func TestWithRetry_CanceledContext(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := WithRetry(ctx, db, DefaultTxOptions(), func(tx *gorm.DB) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
