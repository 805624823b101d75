// Package syncmeta stores sync bookkeeping, chiefly the pull watermark, in the
// sync_meta key/value table.
package syncmeta

import (
	"context"
	"time"
)

// KeyLastSyncAt holds the time of the last successful pull request.
const KeyLastSyncAt = "lastSyncAt"

type Repository interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) (*string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) error

	// GetTime decodes a timestamp value, returning def when the key is absent.
	GetTime(ctx context.Context, key string, def time.Time) (time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
}
