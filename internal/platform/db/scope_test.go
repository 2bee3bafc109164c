package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  int
	rolledBack int
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed++
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack++
	return nil
}

type fakePool struct {
	begun int
	tx    *fakeTx
}

func (p *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (p *fakePool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (p *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (p *fakePool) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	p.begun++
	p.tx = &fakeTx{}
	return p.tx, nil
}

func TestConnWithoutScopeUsesPool(t *testing.T) {
	pool := &fakePool{}
	q, err := Conn(context.Background(), pool)
	require.NoError(t, err)
	assert.Same(t, pool, q)
	assert.Zero(t, pool.begun)
	assert.NoError(t, Rollback(context.Background()))
	assert.NoError(t, Commit(context.Background()))
}

func TestScopeOpensOnceAndRollsBack(t *testing.T) {
	pool := &fakePool{}
	ctx, _ := WithScope(context.Background())

	first, err := Conn(ctx, pool)
	require.NoError(t, err)
	second, err := Conn(ctx, pool)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, pool.begun)

	require.NoError(t, Rollback(ctx))
	assert.Equal(t, 1, pool.tx.rolledBack)
	assert.Zero(t, pool.tx.committed)

	require.NoError(t, Rollback(ctx))
	assert.Equal(t, 1, pool.tx.rolledBack)
}

func TestCommitThenTeardownRollbackIsNoop(t *testing.T) {
	pool := &fakePool{}
	ctx, _ := WithScope(context.Background())

	_, err := Conn(ctx, pool)
	require.NoError(t, err)
	require.NoError(t, Commit(ctx))
	require.NoError(t, Rollback(ctx))

	assert.Equal(t, 1, pool.tx.committed)
	assert.Zero(t, pool.tx.rolledBack)
}

func TestRollbackSurvivesCancelledContext(t *testing.T) {
	pool := &fakePool{}
	base, cancel := context.WithCancel(context.Background())
	ctx, _ := WithScope(base)
	_, err := Conn(ctx, pool)
	require.NoError(t, err)
	cancel()

	require.NoError(t, Rollback(ctx))
	assert.Equal(t, 1, pool.tx.rolledBack)
}

func TestDetachDropsScopeAndCancellation(t *testing.T) {
	scoped, s := WithScope(context.Background())
	ctx, cancel := context.WithCancel(scoped)
	require.Same(t, s, ScopeFromContext(ctx))

	detached := Detach(ctx)
	cancel()
	assert.Nil(t, ScopeFromContext(detached))
	assert.NoError(t, detached.Err())

	pool := &fakePool{}
	q, err := Conn(detached, pool)
	require.NoError(t, err)
	assert.Same(t, pool, q)
	assert.Zero(t, pool.begun)
}
