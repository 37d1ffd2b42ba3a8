package services

import (
	"context"
	"fmt"

	"github.com/arjun-computer-geek/saas-demo/repositories"
)

// WithTransaction runs fn inside a primary-store transaction. fn receives the
// transaction's context, so repositories called with it join the transaction.
// Commits on success, rolls back on error or panic.
func WithTransaction(ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	_, err := WithTransactionResult(ctx, txMgr, func(txCtx context.Context, tx repositories.Transaction) (struct{}, error) {
		return struct{}{}, fn(txCtx, tx)
	})
	return err
}

// WithTransactionResult is WithTransaction for functions that produce a value.
func WithTransactionResult[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context, tx repositories.Transaction) (T, error)) (T, error) {
	var result T

	tx, err := txMgr.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	result, err = fn(tx.Context(), tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return result, fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return result, err
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}
