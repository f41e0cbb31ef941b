package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"taskpilot/internal/application/port/output"
)

var ErrStoreClosed = errors.New("store closed")

type Type string

const (
	TypeMemory Type = "memory"
	TypeFile   Type = "file"
	TypeRedis  Type = "redis"
	TypeSQLite Type = "sqlite"
)

type Config struct {
	Type          Type
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Namespace     string
}

func DefaultConfig() Config {
	return Config{
		Type:      TypeFile,
		Path:      "data/state.json",
		RedisAddr: "localhost:6379",
		Namespace: "taskpilot",
	}
}

// New builds the configured PersistentStore.
func New(ctx context.Context, cfg Config) (output.PersistentStore, error) {
	switch cfg.Type {
	case TypeMemory, "":
		return NewMemoryStore(), nil
	case TypeFile:
		return NewFileStore(cfg.Path)
	case TypeRedis:
		return NewRedisStore(ctx, RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Namespace: cfg.Namespace,
		})
	case TypeSQLite:
		return NewSQLiteStore(ctx, cfg.Path)
	}
	return nil, fmt.Errorf("unknown store type %q", cfg.Type)
}

var _ output.PersistentStore = (*MemoryStore)(nil)

type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]json.RawMessage
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]json.RawMessage)}
}

func (s *MemoryStore) Get(_ context.Context, keys ...string) (map[string]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			out[k] = cloneRaw(v)
		}
	}
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, values map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	for k, v := range values {
		s.data[k] = cloneRaw(v)
	}
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneRaw(v json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}

// GetJSON decodes one key into dst. It reports false when the key is absent.
func GetJSON(ctx context.Context, s output.PersistentStore, key string, dst any) (bool, error) {
	values, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	raw, ok := values[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and writes it under key.
func SetJSON(ctx context.Context, s output.PersistentStore, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Set(ctx, map[string]json.RawMessage{key: raw}); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
