// Package cache provides the expiring key-value store behind the admin guard
// counters and the server-side session records.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired
var ErrNotFound = errors.New("cache: key not found")

// Store is an expiring key-value store. A zero ttl means no expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Increment adds one to the decimal counter at key, treating a missing key
	// as zero, and (re)sets its ttl. It returns the new value.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	Ping(ctx context.Context) error
}
