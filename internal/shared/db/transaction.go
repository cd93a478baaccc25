// Package db provides the unit-of-work used to serialize per-tenant writes.
package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

type txKey struct{}

// mysql lock wait timeout and deadlock victim.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

const defaultMaxTries = 3

type TransactionManager struct {
	db       *gorm.DB
	maxTries uint
	backOff  func() backoff.BackOff
}

func NewTransactionManager(db *gorm.DB) *TransactionManager {
	return &TransactionManager{
		db:       db,
		maxTries: defaultMaxTries,
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
}

// RunInTransaction runs fn inside one database transaction carried on the
// returned context. A transaction that loses a lock race is rolled back and
// run again; any other error rolls back and is returned as is.
func (tm *TransactionManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(context.WithValue(ctx, txKey{}, tx))
		})
		if err != nil && !IsLockContention(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(tm.backOff()), backoff.WithMaxTries(tm.maxTries))
	return err
}

// GetTxFromContext returns the transaction carried by ctx, or defaultDB.
func GetTxFromContext(ctx context.Context, defaultDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return defaultDB.WithContext(ctx)
}

// InTransaction reports whether ctx carries a transaction.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok
}

// IsLockContention reports whether err is a lock wait timeout or deadlock.
func IsLockContention(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlLockWaitTimeout || myErr.Number == mysqlDeadlock
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}
