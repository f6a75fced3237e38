package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Prompt identifies one chat completion. Identical prompts to the same model
// at the same temperature share a reply.
type Prompt struct {
	Model       string
	System      string
	User        string
	Temperature float32
}

func (p Prompt) key() string {
	h := sha256.New()
	for _, part := range []string{p.Model, p.System, p.User, strconv.FormatFloat(float64(p.Temperature), 'g', -1, 32)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type reply struct {
	Model   string    `json:"model"`
	Content string    `json:"content"`
	SavedAt time.Time `json:"saved_at"`
}

// Replies stores model replies, one JSON file per prompt. A nil *Replies is
// an always-missing cache.
type Replies struct {
	dir    string
	strict bool
}

func (r *Replies) path(p Prompt) string { return filepath.Join(r.dir, p.key()+".json") }

// Lookup returns the stored reply for p. A hit refreshes the file's mtime so
// Trim evicts the least recently read replies first.
func (r *Replies) Lookup(p Prompt) (string, bool) {
	if r == nil {
		return "", false
	}
	path := r.path(p)
	b, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var rep reply
	if json.Unmarshal(b, &rep) != nil || rep.Model != p.Model || rep.Content == "" {
		return "", false
	}
	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return rep.Content, true
}

// Store records content as the reply to p.
func (r *Replies) Store(p Prompt, content string) error {
	if r == nil {
		return nil
	}
	b, err := json.Marshal(reply{Model: p.Model, Content: content, SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return writeFile(r.path(p), b, r.strict)
}
