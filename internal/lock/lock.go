// Package lock provides mutual exclusion between processes, backed by a Redis
// lease or a PostgreSQL session advisory lock.
package lock

import (
	"context"
	"errors"
)

// ErrHeld is returned by Acquire when another holder owns the lock.
var ErrHeld = errors.New("lock is held")

// Release frees an acquired lock. It is safe to call once.
type Release func(ctx context.Context) error

// Locker acquires named locks without blocking.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}
