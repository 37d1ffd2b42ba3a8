// Package memory is an in-process primary store used by tests and by
// DATABASE_DRIVER=memory. Transactions are serialized: while one is open every
// other caller waits, and Rollback restores the snapshot taken at Begin.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errTxClosed = errors.New("transaction already closed")

type txContextKey struct{}

type tables struct {
	orgs        map[uuid.UUID]models.Organization
	users       map[uuid.UUID]models.User
	memberships map[uuid.UUID]models.Membership
	invites     map[uuid.UUID]models.Invite
	audit       []models.AuditLog
}

func newTables() *tables {
	return &tables{
		orgs:        make(map[uuid.UUID]models.Organization),
		users:       make(map[uuid.UUID]models.User),
		memberships: make(map[uuid.UUID]models.Membership),
		invites:     make(map[uuid.UUID]models.Invite),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.orgs {
		c.orgs[k] = v
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.memberships {
		c.memberships[k] = v
	}
	for k, v := range t.invites {
		c.invites[k] = v
	}
	c.audit = append([]models.AuditLog(nil), t.audit...)
	return c
}

// Store holds every table and implements repositories.TransactionManager
type Store struct {
	txMu   sync.Mutex // held for the lifetime of a transaction
	mu     sync.Mutex // guards data
	data   *tables
	logger *zap.Logger
}

// NewStore creates an empty store
func NewStore(logger *zap.Logger) *Store {
	return &Store{data: newTables(), logger: logger}
}

// Repositories returns repository views over the store
func (s *Store) Repositories() *repositories.Repositories {
	return &repositories.Repositories{
		Organizations: &OrganizationRepository{s},
		Users:         &UserRepository{s},
		Memberships:   &MembershipRepository{s},
		Invites:       &InviteRepository{s},
		AuditLogs:     &AuditRepository{s},
	}
}

// Ping always succeeds
func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) activeTx(ctx context.Context) *Transaction {
	tx, ok := ctx.Value(txContextKey{}).(*Transaction)
	if !ok || tx.store != s || tx.done.Load() {
		return nil
	}
	return tx
}

// run executes fn against the tables, joining the transaction carried by ctx
// or waiting for any open transaction to finish.
func (s *Store) run(ctx context.Context, fn func(t *tables) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.activeTx(ctx) == nil {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// Begin starts a transaction. A context already inside one gets a nested
// handle whose Commit and Rollback defer to the outer transaction.
func (s *Store) Begin(ctx context.Context) (repositories.Transaction, error) {
	if outer := s.activeTx(ctx); outer != nil {
		return &Transaction{store: s, ctx: ctx, nested: true}, nil
	}

	s.txMu.Lock()
	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	tx := &Transaction{store: s, snapshot: snapshot}
	tx.ctx = context.WithValue(ctx, txContextKey{}, tx)
	s.logger.Debug("transaction started")
	return tx, nil
}

// InTransaction executes fn within a transaction
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx.Context(), tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Transaction implements repositories.Transaction
type Transaction struct {
	store    *Store
	snapshot *tables
	ctx      context.Context
	nested   bool
	done     atomic.Bool
}

// Commit releases the store
func (t *Transaction) Commit() error {
	if t.nested {
		return nil
	}
	if t.done.Swap(true) {
		return fmt.Errorf("failed to commit transaction: %w", errTxClosed)
	}
	t.store.txMu.Unlock()
	t.store.logger.Debug("transaction committed")
	return nil
}

// Rollback restores the snapshot and releases the store
func (t *Transaction) Rollback() error {
	if t.nested || t.done.Swap(true) {
		return nil
	}
	t.store.mu.Lock()
	t.store.data = t.snapshot
	t.store.mu.Unlock()
	t.store.txMu.Unlock()
	t.store.logger.Debug("transaction rolled back")
	return nil
}

// Context returns a context carrying the transaction
func (t *Transaction) Context() context.Context {
	return t.ctx
}

var _ repositories.TransactionManager = (*Store)(nil)
