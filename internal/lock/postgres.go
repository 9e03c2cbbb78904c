package lock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
)

// PostgresLocker uses pg_try_advisory_lock. Advisory locks belong to a session,
// so each acquisition pins a dedicated connection until released.
type PostgresLocker struct {
	db *sql.DB
}

func NewPostgresLocker(db *sql.DB) *PostgresLocker {
	return &PostgresLocker{db: db}
}

// advisoryKey maps a lock name onto the bigint key space.
func advisoryKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}

func (l *PostgresLocker) Acquire(ctx context.Context, key string) (Release, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	id := advisoryKey(key)

	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, id).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("db error: %w", err)
	}
	if !ok {
		_ = conn.Close()
		return nil, ErrHeld
	}

	return func(ctx context.Context) error {
		defer conn.Close()
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	}, nil
}
