// Package cache keeps model replies and fetched pages on disk so briefing the
// same page twice touches neither the network nor the model again.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	repliesDir = "replies"
	pagesDir   = "pages"
)

// Dir is a cache root. Replies and pages live in separate subdirectories so
// they can be pruned on their own terms.
type Dir struct {
	Root string
	// StrictPerms enforces 0700 on directories and 0600 on files.
	StrictPerms bool
}

// Open prepares root and its subdirectories.
func Open(root string, strict bool) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("cache: empty root")
	}
	d := &Dir{Root: root, StrictPerms: strict}
	for _, sub := range []string{repliesDir, pagesDir} {
		if err := ensureDir(filepath.Join(root, sub), strict); err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
	}
	return d, nil
}

// Replies returns the model reply store under d.
func (d *Dir) Replies() *Replies {
	return &Replies{dir: filepath.Join(d.Root, repliesDir), strict: d.StrictPerms}
}

// Pages returns the fetched page store under d.
func (d *Dir) Pages() *Pages {
	return &Pages{dir: filepath.Join(d.Root, pagesDir), strict: d.StrictPerms}
}

// Clear empties both stores.
func (d *Dir) Clear() error {
	for _, sub := range []string{repliesDir, pagesDir} {
		p := filepath.Join(d.Root, sub)
		if err := os.RemoveAll(p); err != nil {
			return err
		}
		if err := ensureDir(p, d.StrictPerms); err != nil {
			return err
		}
	}
	return nil
}

// Pruned counts entries removed by a maintenance pass.
type Pruned struct {
	Replies int
	Pages   int
}

// Prune removes pages saved more than maxAge ago and replies not read for
// maxAge. A non-positive maxAge is a no-op.
func (d *Dir) Prune(maxAge time.Duration) (Pruned, error) {
	var out Pruned
	if maxAge <= 0 {
		return out, nil
	}
	cutoff := time.Now().Add(-maxAge)

	files, err := listFiles(filepath.Join(d.Root, repliesDir))
	if err != nil {
		return out, err
	}
	for _, f := range files {
		if f.mod.Before(cutoff) && os.Remove(f.path) == nil {
			out.Replies++
		}
	}

	pages := d.Pages()
	files, err = listFiles(pages.dir)
	if err != nil {
		return out, err
	}
	for _, f := range files {
		p, err := readPage(f.path)
		// unreadable entries are garbage either way
		if err == nil && !p.SavedAt.Before(cutoff) {
			continue
		}
		if os.Remove(f.path) == nil {
			out.Pages++
		}
	}
	return out, nil
}

// Trim evicts least recently read replies until at most maxCount remain and
// they total at most maxBytes. Zero disables a bound.
func (d *Dir) Trim(maxBytes int64, maxCount int) (int, error) {
	if maxBytes <= 0 && maxCount <= 0 {
		return 0, nil
	}
	files, err := listFiles(filepath.Join(d.Root, repliesDir))
	if err != nil {
		return 0, err
	}
	sortOldestFirst(files)
	var total int64
	for _, f := range files {
		total += f.size
	}
	left, removed := len(files), 0
	for _, f := range files {
		if (maxCount <= 0 || left <= maxCount) && (maxBytes <= 0 || total <= maxBytes) {
			break
		}
		if os.Remove(f.path) != nil {
			continue
		}
		removed++
		left--
		total -= f.size
	}
	return removed, nil
}

type file struct {
	path string
	size int64
	mod  time.Time
}

func listFiles(dir string) ([]file, error) {
	des, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]file, 0, len(des))
	for _, de := range des {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, file{path: filepath.Join(dir, de.Name()), size: info.Size(), mod: info.ModTime()})
	}
	return out, nil
}

func sortOldestFirst(files []file) {
	sort.SliceStable(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })
}

func ensureDir(dir string, strict bool) error {
	perm := os.FileMode(0o755)
	if strict {
		perm = 0o700
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return err
	}
	// MkdirAll leaves an existing directory alone.
	if strict {
		if info, err := os.Stat(dir); err == nil && info.Mode().Perm() != 0o700 {
			return os.Chmod(dir, 0o700)
		}
	}
	return nil
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte, strict bool) error {
	mode := os.FileMode(0o644)
	if strict {
		mode = 0o600
	}
	if err := ensureDir(filepath.Dir(path), strict); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
