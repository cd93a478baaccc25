package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type ledgerRow struct {
	ID   uint `gorm:"primaryKey"`
	Note string
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(&ledgerRow{}))
	return gdb
}

func countRows(t *testing.T, gdb *gorm.DB) int64 {
	var n int64
	require.NoError(t, gdb.Model(&ledgerRow{}).Count(&n).Error)
	return n
}

func TestRunInTransaction_CommitsAndRollsBack(t *testing.T) {
	gdb := setupDB(t)
	tm := NewTransactionManager(gdb)
	ctx := context.Background()

	err := tm.RunInTransaction(ctx, func(ctx context.Context) error {
		assert.True(t, InTransaction(ctx))
		return GetTxFromContext(ctx, gdb).Create(&ledgerRow{Note: "kept"}).Error
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, countRows(t, gdb))

	boom := errors.New("boom")
	err = tm.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, GetTxFromContext(ctx, gdb).Create(&ledgerRow{Note: "dropped"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, countRows(t, gdb))
}

func TestRunInTransaction_NestedJoinsOuter(t *testing.T) {
	gdb := setupDB(t)
	tm := NewTransactionManager(gdb)

	calls := 0
	err := tm.RunInTransaction(context.Background(), func(outer context.Context) error {
		return tm.RunInTransaction(outer, func(inner context.Context) error {
			calls++
			assert.Same(t, GetTxFromContext(outer, gdb), GetTxFromContext(inner, gdb))
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunInTransaction_RetriesLockContention(t *testing.T) {
	gdb := setupDB(t)
	tm := NewTransactionManager(gdb)

	attempts := 0
	err := tm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return &mysql.MySQLError{Number: mysqlDeadlock, Message: "Deadlock found"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRunInTransaction_DoesNotRetryOtherErrors(t *testing.T) {
	gdb := setupDB(t)
	tm := NewTransactionManager(gdb)

	attempts := 0
	err := tm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("validation failed")
	})
	assert.EqualError(t, err, "validation failed")
	assert.Equal(t, 1, attempts)
}

func TestIsLockContention(t *testing.T) {
	assert.True(t, IsLockContention(fmt.Errorf("wrap: %w", &mysql.MySQLError{Number: mysqlLockWaitTimeout})))
	assert.False(t, IsLockContention(&mysql.MySQLError{Number: 1062}))
	assert.True(t, IsLockContention(errors.New("database is locked")))
	assert.False(t, IsLockContention(nil))
}
