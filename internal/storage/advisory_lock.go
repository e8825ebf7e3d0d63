package storage

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryLock is a named, cooperative process-wide lock backed by Postgres
// session advisory locks. The lock is held on a dedicated pooled connection;
// Postgres releases it automatically if that connection drops, which covers
// holder death without a lease protocol.
type AdvisoryLock struct {
	pool *pgxpool.Pool
	name string
	key  int64

	mu   sync.Mutex
	conn *pgxpool.Conn
}

// LockKey hashes a lock name to the stable 64-bit key Postgres expects.
// FNV-1a is not cryptographic; with the handful of named locks this system
// uses, 64 bits keeps collision probability negligible.
func LockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64()) // #nosec G115 - advisory lock keys are signed 64-bit by definition
}

// NewAdvisoryLock creates an advisory lock handle for the given name.
func NewAdvisoryLock(db *PostgresDB, name string) *AdvisoryLock {
	return &AdvisoryLock{
		pool: db.Pool(),
		name: name,
		key:  LockKey(name),
	}
}

// Name returns the lock name.
func (l *AdvisoryLock) Name() string {
	return l.name
}

// TryAcquire attempts to take the lock without blocking. It returns false on
// contention; callers are expected to sleep and retry rather than proceed.
func (l *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		// Already held by this handle.
		return true, nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection for lock %q: %w", l.name, err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&locked); err != nil {
		conn.Release()
		return false, fmt.Errorf("try advisory lock %q: %w", l.name, err)
	}
	if !locked {
		conn.Release()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Release releases the lock and returns its connection to the pool.
// Releasing an unheld lock is a no-op.
func (l *AdvisoryLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil
	}

	_, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	l.conn.Release()
	l.conn = nil
	if err != nil {
		return fmt.Errorf("release advisory lock %q: %w", l.name, err)
	}
	return nil
}
