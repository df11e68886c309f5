// Package sqlite carries a transaction through context so repositories
// can join the unit of work started by the visit recorder.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/fieldjob/internal/application/port"
)

type txKey struct{}

// txState is the transaction carried by ctx and its savepoint depth
type txState struct {
	tx    *sql.Tx
	depth int
}

// DB wraps sql.DB and implements port.TransactionManager
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database wrapper
func NewDB(sqlDB *sql.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:     sqlDB,
		logger: logger,
	}
}

// WithTransaction runs fn in a transaction. A call nested inside another
// runs in a savepoint: its failure undoes only its own writes and the
// outer fn decides whether to carry on.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// Already in a transaction: nest a savepoint
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return db.savepoint(ctx, st, fn)
	}

	// Start new transaction
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Add transaction to context
	txCtx := context.WithValue(ctx, txKey{}, &txState{tx: tx})

	// Roll back and re-panic
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// savepoint runs fn inside a named savepoint of the parent transaction
func (db *DB) savepoint(ctx context.Context, parent *txState, fn func(ctx context.Context) error) error {
	st := &txState{tx: parent.tx, depth: parent.depth + 1}
	name := fmt.Sprintf("sp_%d", st.depth)

	if _, err := st.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		if _, rbErr := st.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			db.logger.Error("Failed to rollback savepoint", zap.String("savepoint", name), zap.Error(rbErr))
		}
		return err
	}

	if _, err := st.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ExecutorFor returns the transaction carried by ctx, or db outside one
func ExecutorFor(ctx context.Context, db *sql.DB) Executor {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return st.tx
	}
	return db
}

// InTransaction reports whether ctx carries a transaction
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}

// Verify interface compliance
var _ port.TransactionManager = (*DB)(nil)
