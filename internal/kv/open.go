package kv

import (
	"context"
	"fmt"

	"chatcommerce/internal/db"
)

// Options selects and configures a Store driver.
type Options struct {
	Driver   string
	RedisURL string
	DSN      string

	// Pool tunes the postgres driver's connection pool.
	Pool db.Options
}

// Open connects the configured driver. The returned func releases its resources.
func Open(ctx context.Context, opts Options) (Store, func(), error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemory(), func() {}, nil
	case "redis":
		client, err := ConnectRedis(ctx, opts.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return NewRedis(client), func() { client.Close() }, nil
	case "postgres":
		pool, err := db.Connect(ctx, opts.DSN, opts.Pool)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to db: %w", err)
		}
		return NewPostgres(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown kv driver %q", opts.Driver)
	}
}
