package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is satisfied by *pgxpool.Pool.
type Pool interface {
	Querier
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Scope is a request-wide unit of work. The transaction is opened lazily by
// the first query, committed only when a write asks for it and rolled back
// by the request teardown otherwise.
type Scope struct {
	mu sync.Mutex
	tx pgx.Tx
}

type scopeContextKey struct{}

// WithScope attaches a fresh Scope to ctx.
func WithScope(ctx context.Context) (context.Context, *Scope) {
	s := &Scope{}
	return context.WithValue(ctx, scopeContextKey{}, s), s
}

// Detach returns a context that outlives ctx and carries no Scope, so work
// shared between requests reads from the pool instead of one request's tx.
func Detach(ctx context.Context) context.Context {
	return context.WithValue(context.WithoutCancel(ctx), scopeContextKey{}, (*Scope)(nil))
}

// ScopeFromContext returns the Scope attached to ctx, if any.
func ScopeFromContext(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeContextKey{}).(*Scope)
	return s
}

// Conn returns the scoped transaction, opening it on pool when needed. Without
// a scope in ctx the pool itself is returned.
func Conn(ctx context.Context, pool Pool) (Querier, error) {
	s := ScopeFromContext(ctx)
	if s == nil {
		return pool, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("platform/db: begin tx: %w", err)
	}
	s.tx = tx
	return tx, nil
}

// Commit commits the scoped transaction. It is a no-op when nothing was
// opened.
func Commit(ctx context.Context) error {
	s := ScopeFromContext(ctx)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	return nil
}

// Rollback discards whatever the scoped transaction holds. It runs even when
// ctx is already cancelled.
func Rollback(ctx context.Context) error {
	s := ScopeFromContext(ctx)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("platform/db: rollback tx: %w", err)
	}
	return nil
}
