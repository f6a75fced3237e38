package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	yaml "gopkg.in/yaml.v3"
)

// FileStore keeps every key in a single YAML mapping of key to string value.
// Writes replace the whole file through a temp file and rename.
type FileStore struct {
	path string

	mu   sync.Mutex
	data map[string]string
}

// OpenFile loads path if it exists; a missing file is an empty store.
func OpenFile(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("kv: file path is empty")
	}
	fs := &FileStore{path: path, data: map[string]string{}}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fs, nil
	case err != nil:
		return nil, fmt.Errorf("kv: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &fs.data); err != nil {
		return nil, fmt.Errorf("kv: parse %s: %w", path, err)
	}
	if fs.data == nil {
		fs.data = map[string]string{}
	}
	return fs, nil
}

func (f *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (f *FileStore) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.data[key]
	f.data[key] = string(value)
	if err := f.flush(); err != nil {
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; !ok {
		return nil
	}
	delete(f.data, key)
	return f.flush()
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) flush() error {
	b, err := yaml.Marshal(f.data)
	if err != nil {
		return fmt.Errorf("kv: encode: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("kv: mkdir: %w", err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("kv: write: %w", err)
	}
	return os.Rename(tmp, f.path)
}
