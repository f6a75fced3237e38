// Package kv is the persisted key-value collaborator. Values are opaque
// bytes; callers encode them (profiles are stored as JSON).
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kv: store closed")

// Store is a small persistent map.
type Store interface {
	// Get returns ok=false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open selects a backend from a location string:
//
//	"" or "memory:"       in-process map
//	"file:<path>"         YAML document on disk
//	"sqlite:<path>"       SQLite database
//	"redis://..."         Redis server (rediss:// for TLS)
//
// A bare path ending in .yaml, .yml or .json is treated as file:, and one
// ending in .db or .sqlite as sqlite:.
func Open(ctx context.Context, location string) (Store, error) {
	loc := strings.TrimSpace(location)
	switch {
	case loc == "" || loc == "memory:":
		return NewMemory(), nil
	case strings.HasPrefix(loc, "file:"):
		return storeOrErr(OpenFile(strings.TrimPrefix(loc, "file:")))
	case strings.HasPrefix(loc, "sqlite:"):
		return storeOrErr(OpenSQLite(ctx, strings.TrimPrefix(loc, "sqlite:")))
	case strings.HasPrefix(loc, "redis://"), strings.HasPrefix(loc, "rediss://"):
		return storeOrErr(OpenRedis(ctx, loc, "webbriefer"))
	case hasSuffix(loc, ".yaml", ".yml", ".json"):
		return storeOrErr(OpenFile(loc))
	case hasSuffix(loc, ".db", ".sqlite", ".sqlite3"):
		return storeOrErr(OpenSQLite(ctx, loc))
	}
	return nil, fmt.Errorf("kv: unsupported store location %q", location)
}

// storeOrErr keeps a typed nil out of the Store interface.
func storeOrErr[S Store](s S, err error) (Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

func hasSuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(strings.ToLower(s), suf) {
			return true
		}
	}
	return false
}

// Memory is a goroutine-safe in-process Store.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.data, key)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
