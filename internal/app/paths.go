package app

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// ExportPath returns a stable path under dir for a page export. The name is
// a slug of the title plus a short hash of the URL, so re-exporting the same
// page overwrites the previous file.
func ExportPath(dir, title, pageURL, ext string) string {
	root := strings.TrimSpace(dir)
	if root == "" {
		root = DefaultExportDir
	}
	key := strings.TrimSpace(pageURL)
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(title))
	}
	h := sha256.Sum256([]byte(key))
	short := hex.EncodeToString(h[:])[:12]
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(root, slugify(title)+"-"+short+ext)
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(nonSlug.ReplaceAllString(s, "-"), "-")
	if len(s) > 60 {
		s = strings.TrimRight(s[:60], "-")
	}
	if s == "" {
		s = "page"
	}
	return s
}
