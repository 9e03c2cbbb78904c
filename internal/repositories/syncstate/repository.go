// Package syncstate stores named sync values such as the registry cursor.
package syncstate

import "context"

// Store is a durable key/value store. Get returns common.ErrorNotFound for an
// unknown key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
