// Package robots decides whether a page may be fetched under the site's
// robots.txt. Rules are fetched once per origin and kept in memory.
package robots

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrDisallowed is returned by Check for a path robots.txt excludes.
var ErrDisallowed = errors.New("disallowed by robots.txt")

const (
	DefaultTTL = 30 * time.Minute
	// maxBytes caps the robots.txt body, as major crawlers do.
	maxBytes = 500 << 10
)

// Rules are the groups of one robots.txt file.
type Rules struct {
	Groups []Group
}

// Group applies to every agent token it names.
type Group struct {
	Agents   []string
	Allow    []string
	Disallow []string
}

// Parse reads robots.txt text. Unknown directives are ignored.
func Parse(text string) Rules {
	var rules Rules
	var cur *Group
	inAgents := false
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "user-agent":
			// Consecutive user-agent lines share one group.
			if cur == nil || !inAgents {
				rules.Groups = append(rules.Groups, Group{})
				cur = &rules.Groups[len(rules.Groups)-1]
			}
			cur.Agents = append(cur.Agents, strings.ToLower(val))
			inAgents = true
		case "allow", "disallow":
			inAgents = false
			if cur == nil || val == "" {
				continue
			}
			if key == "allow" {
				cur.Allow = append(cur.Allow, val)
			} else {
				cur.Disallow = append(cur.Disallow, val)
			}
		default:
			inAgents = false
		}
	}
	return rules
}

// Allowed reports whether userAgent may fetch path (with optional query).
// The longest matching pattern wins; Allow wins a tie. No match allows.
func (r Rules) Allowed(userAgent, path string) bool {
	g := r.group(userAgent)
	if g == nil {
		return true
	}
	best, allow := -1, true
	for _, p := range g.Disallow {
		if n := specificity(p); n > best && match(p, path) {
			best, allow = n, false
		}
	}
	for _, p := range g.Allow {
		if n := specificity(p); n >= best && match(p, path) {
			best, allow = n, true
		}
	}
	return allow
}

// group picks the group whose agent token is the longest substring of
// userAgent, falling back to "*".
func (r Rules) group(userAgent string) *Group {
	ua := strings.ToLower(userAgent)
	var best *Group
	bestLen := -1
	for i := range r.Groups {
		for _, a := range r.Groups[i].Agents {
			n := -1
			switch {
			case a == "*":
				n = 0
			case a != "" && strings.Contains(ua, a):
				n = len(a)
			}
			if n > bestLen {
				best, bestLen = &r.Groups[i], n
			}
		}
	}
	return best
}

func specificity(pattern string) int {
	return len(strings.ReplaceAll(strings.TrimSuffix(pattern, "$"), "*", ""))
}

// match implements prefix matching with '*' wildcards and a '$' end anchor.
func match(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	parts := strings.Split(strings.TrimSuffix(pattern, "$"), "*")
	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	rest := path[len(parts[0]):]
	for _, part := range parts[1:] {
		i := strings.Index(rest, part)
		if i < 0 {
			return false
		}
		rest = rest[i+len(part):]
	}
	if !anchored {
		return true
	}
	last := parts[len(parts)-1]
	return rest == "" || (len(parts) > 1 && strings.HasSuffix(path, last))
}

// Checker fetches and caches robots.txt per origin.
type Checker struct {
	HTTPClient *http.Client
	UserAgent  string
	TTL        time.Duration

	rules *cache.Cache
	group singleflight.Group
}

// NewChecker returns a Checker whose rules live for ttl.
func NewChecker(client *http.Client, userAgent string, ttl time.Duration) *Checker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Checker{
		HTTPClient: client,
		UserAgent:  userAgent,
		TTL:        ttl,
		rules:      cache.New(ttl, 2*ttl),
	}
}

// Check returns ErrDisallowed when pageURL is excluded. A robots.txt that
// cannot be fetched, or answers 4xx, allows everything.
func (c *Checker) Check(ctx context.Context, pageURL string) error {
	u, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	origin := u.Scheme + "://" + u.Host
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	rules := c.load(ctx, origin)
	if !rules.Allowed(c.UserAgent, path) {
		return fmt.Errorf("%w: %s", ErrDisallowed, pageURL)
	}
	return nil
}

func (c *Checker) load(ctx context.Context, origin string) Rules {
	if v, ok := c.rules.Get(origin); ok {
		return v.(Rules)
	}
	v, _, _ := c.group.Do(origin, func() (any, error) {
		rules, err := c.fetch(ctx, origin+"/robots.txt")
		if err != nil {
			log.Warn().Err(err).Str("origin", origin).Msg("robots.txt unavailable; allowing")
		}
		c.rules.SetDefault(origin, rules)
		return rules, nil
	})
	return v.(Rules)
}

func (c *Checker) fetch(ctx context.Context, robotsURL string) (Rules, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return Rules{}, err
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Rules{}, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Rules{}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Rules{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return Rules{}, fmt.Errorf("read robots: %w", err)
	}
	return Parse(string(b)), nil
}
