// Package kv is the namespaced key-value abstraction every entity repository
// is built on. Drivers provide single-key atomicity plus an atomic Update.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key is missing or expired.
var ErrNotFound = errors.New("kv: key not found")

// ErrConflict is returned by Update when optimistic retries are exhausted.
var ErrConflict = errors.New("kv: concurrent update conflict")

// KeepTTL tells Set and Update to preserve the key's current expiry.
const KeepTTL time.Duration = -1

// UpdateFunc receives the current value (nil when missing) and returns the
// value to store. Returning a nil value deletes the key; returning an error
// aborts the update without writing.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is the shared key-value store. A zero ttl means no expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error
	Delete(ctx context.Context, keys ...string) error

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	ZAdd(ctx context.Context, key, member string, score float64) error
	// ZRangeByScore returns members with score <= max, lowest score first.
	ZRangeByScore(ctx context.Context, key string, max float64) ([]string, error)
	ZRem(ctx context.Context, key string, members ...string) error

	Ping(ctx context.Context) error
}

// Purger is implemented by drivers that do not expire keys on their own.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

const maxUpdateAttempts = 100
