package output

import (
	"context"
	"encoding/json"
)

// PersistentStore holds whole JSON documents under a few fixed keys.
// Missing keys are simply absent from the Get result.
type PersistentStore interface {
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, values map[string]json.RawMessage) error
	Remove(ctx context.Context, keys ...string) error
	Close() error
}
