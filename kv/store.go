package kv

import (
	"context"

	"github.com/wippyai/zhur/message"
)

// Store is a key-value store namespaced by owner and table. Calls are
// independent; there are no transactions across calls.
type Store interface {
	Get(ctx context.Context, owner, table, key string) ([]byte, bool, error)
	Set(ctx context.Context, owner, table, key string, value []byte) error
	Del(ctx context.Context, owner, table, key string) error
	// Scan returns the pairs whose key starts with prefix, ordered by key.
	Scan(ctx context.Context, owner, table, prefix string) ([]message.KVPair, error)
	// DelPrefix deletes the keys starting with prefix and returns how many.
	DelPrefix(ctx context.Context, owner, table, prefix string) (int, error)
	SetMany(ctx context.Context, owner, table string, pairs []message.KVPair) error
	Close() error
}
