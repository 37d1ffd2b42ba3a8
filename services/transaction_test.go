package services

import (
	"context"
	"errors"
	"testing"

	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockTransactionManager is a mock implementation of TransactionManager
type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	args := m.Called(ctx)
	if tx := args.Get(0); tx != nil {
		return tx.(repositories.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

// MockTransaction is a mock implementation of Transaction
type MockTransaction struct {
	mock.Mock
	committed  bool
	rolledback bool
}

func (m *MockTransaction) Commit() error {
	args := m.Called()
	m.committed = true
	return args.Error(0)
}

func (m *MockTransaction) Rollback() error {
	args := m.Called()
	m.rolledback = true
	return args.Error(0)
}

func (m *MockTransaction) Context() context.Context {
	args := m.Called()
	return args.Get(0).(context.Context)
}

type txCtxKey struct{}

func newMocks(ctx context.Context) (*MockTransactionManager, *MockTransaction, context.Context) {
	txMgr := new(MockTransactionManager)
	tx := new(MockTransaction)
	txCtx := context.WithValue(ctx, txCtxKey{}, "tx")
	txMgr.On("Begin", ctx).Return(tx, nil)
	tx.On("Context").Return(txCtx)
	return txMgr, tx, txCtx
}

func TestWithTransaction_Success(t *testing.T) {
	ctx := context.Background()
	txMgr, tx, txCtx := newMocks(ctx)
	tx.On("Commit").Return(nil)

	err := WithTransaction(ctx, txMgr, func(got context.Context, _ repositories.Transaction) error {
		assert.Equal(t, txCtx, got, "fn runs with the transaction context")
		return nil
	})

	assert.NoError(t, err)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledback)
	txMgr.AssertExpectations(t)
	tx.AssertExpectations(t)
}

func TestWithTransaction_ErrorInFunction(t *testing.T) {
	ctx := context.Background()
	txMgr, tx, _ := newMocks(ctx)
	tx.On("Rollback").Return(nil)
	opErr := ErrAlreadyMember

	err := WithTransaction(ctx, txMgr, func(context.Context, repositories.Transaction) error {
		return opErr
	})

	assert.ErrorIs(t, err, ErrAlreadyMember)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledback)
}

func TestWithTransaction_BeginError(t *testing.T) {
	ctx := context.Background()
	txMgr := new(MockTransactionManager)
	txMgr.On("Begin", ctx).Return(nil, errors.New("connection refused"))

	err := WithTransaction(ctx, txMgr, func(context.Context, repositories.Transaction) error {
		t.Fatal("fn must not run")
		return nil
	})

	assert.ErrorContains(t, err, "failed to begin transaction")
}

func TestWithTransaction_CommitError(t *testing.T) {
	ctx := context.Background()
	txMgr, tx, _ := newMocks(ctx)
	tx.On("Commit").Return(errors.New("commit failed"))

	err := WithTransaction(ctx, txMgr, func(context.Context, repositories.Transaction) error { return nil })

	assert.ErrorContains(t, err, "failed to commit transaction")
	assert.True(t, tx.committed)
}

func TestWithTransaction_RollbackErrorKeepsCause(t *testing.T) {
	ctx := context.Background()
	txMgr, tx, _ := newMocks(ctx)
	tx.On("Rollback").Return(errors.New("rollback failed"))

	err := WithTransaction(ctx, txMgr, func(context.Context, repositories.Transaction) error {
		return ErrInviteExpired
	})

	assert.ErrorIs(t, err, ErrInviteExpired)
	assert.ErrorContains(t, err, "rollback error")
	assert.True(t, tx.rolledback)
}

func TestWithTransaction_PanicRollsBack(t *testing.T) {
	ctx := context.Background()
	txMgr, tx, _ := newMocks(ctx)
	tx.On("Rollback").Return(nil)

	assert.Panics(t, func() {
		_ = WithTransaction(ctx, txMgr, func(context.Context, repositories.Transaction) error {
			panic("boom")
		})
	})
	assert.True(t, tx.rolledback)
}

func TestWithTransactionResult(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		txMgr, tx, _ := newMocks(ctx)
		tx.On("Commit").Return(nil)

		result, err := WithTransactionResult(ctx, txMgr, func(context.Context, repositories.Transaction) (int, error) {
			return 42, nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 42, result)
	})

	t.Run("error", func(t *testing.T) {
		txMgr, tx, _ := newMocks(ctx)
		tx.On("Rollback").Return(nil)

		_, err := WithTransactionResult(ctx, txMgr, func(context.Context, repositories.Transaction) (string, error) {
			return "", ErrDuplicateSlug
		})

		assert.ErrorIs(t, err, ErrDuplicateSlug)
		assert.True(t, tx.rolledback)
	})
}
