// Package dom exposes a read-only view of a parsed HTML document. Extraction
// code works against Node and Document so that it never depends on a
// particular parser.
package dom

import (
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Node is a single element of the tree.
type Node interface {
	// Tag returns the lowercase element name, or "" for the document node.
	Tag() string
	Attr(name string) (string, bool)
	ID() string
	// Text returns the text content of the subtree. Block-level elements are
	// separated by whitespace so adjacent paragraphs do not merge into one word.
	Text() string
	Children() []Node
	// Parent returns nil at the top of the tree.
	Parent() Node
	// Find returns matching descendants in document order. An invalid
	// selector matches nothing.
	Find(selector string) []Node
	Is(selector string) bool
}

// Document is a parsed page.
type Document interface {
	Root() Node
	Find(selector string) []Node
	// First returns the first match of selector, or nil.
	First(selector string) Node
	Title() string
	// Clone returns an independent deep copy.
	Clone() Document
	// Remove detaches every element matching any of the selectors.
	Remove(selectors ...string)
	// HTML returns the underlying document node.
	HTML() *html.Node
}

// Parse reads an HTML document. Malformed markup is repaired the way browsers
// do; only read errors are returned.
func Parse(r io.Reader) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return &document{doc: doc}, nil
}

// ParseString is Parse for an in-memory string.
func ParseString(s string) (Document, error) {
	return Parse(strings.NewReader(s))
}

// FromNode wraps an already parsed tree.
func FromNode(n *html.Node) Document {
	return &document{doc: goquery.NewDocumentFromNode(n)}
}

type document struct {
	doc *goquery.Document
}

func (d *document) Root() Node { return &element{sel: d.doc.Selection} }

func (d *document) Find(selector string) []Node { return d.Root().Find(selector) }

func (d *document) First(selector string) Node {
	m := matcher(selector)
	if m == nil {
		return nil
	}
	s := d.doc.Selection.FindMatcher(m).First()
	if s.Length() == 0 {
		return nil
	}
	return &element{sel: s}
}

func (d *document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

func (d *document) Clone() Document {
	cloned := d.doc.Selection.Clone()
	if cloned.Length() == 0 {
		return &document{doc: goquery.NewDocumentFromNode(&html.Node{Type: html.DocumentNode})}
	}
	return &document{doc: goquery.NewDocumentFromNode(cloned.Get(0))}
}

func (d *document) Remove(selectors ...string) {
	for _, s := range selectors {
		if m := matcher(s); m != nil {
			d.doc.Selection.FindMatcher(m).Remove()
		}
	}
}

func (d *document) HTML() *html.Node {
	if d.doc.Selection.Length() == 0 {
		return nil
	}
	return d.doc.Selection.Get(0)
}

type element struct {
	sel *goquery.Selection
}

func (e *element) node() *html.Node { return e.sel.Get(0) }

func (e *element) Tag() string {
	n := e.node()
	if n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

func (e *element) Attr(name string) (string, bool) { return e.sel.Attr(name) }

func (e *element) ID() string {
	v, _ := e.sel.Attr("id")
	return v
}

func (e *element) Text() string {
	var b strings.Builder
	collectText(&b, e.node())
	return b.String()
}

func (e *element) Children() []Node { return wrap(e.sel.Children()) }

func (e *element) Parent() Node {
	p := e.sel.Parent()
	if p.Length() == 0 {
		return nil
	}
	return &element{sel: p}
}

func (e *element) Find(selector string) []Node {
	m := matcher(selector)
	if m == nil {
		return nil
	}
	return wrap(e.sel.FindMatcher(m))
}

func (e *element) Is(selector string) bool {
	m := matcher(selector)
	if m == nil {
		return false
	}
	return e.sel.IsMatcher(m)
}

func wrap(s *goquery.Selection) []Node {
	out := make([]Node, 0, s.Length())
	s.Each(func(_ int, one *goquery.Selection) {
		out = append(out, &element{sel: one})
	})
	return out
}

// Compiled selectors are cached; extraction reuses the same few dozen
// selectors for every page.
var (
	selMu    sync.RWMutex
	selCache = map[string]goquery.Matcher{}
)

func matcher(selector string) goquery.Matcher {
	selMu.RLock()
	m, ok := selCache[selector]
	selMu.RUnlock()
	if ok {
		return m
	}
	compiled, err := cascadia.Compile(selector)
	if err != nil {
		m = nil
	} else {
		m = compiled
	}
	selMu.Lock()
	selCache[selector] = m
	selMu.Unlock()
	return m
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true, "figure": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "hr": true, "li": true, "main": true,
	"nav": true, "ol": true, "p": true, "pre": true, "section": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}

func collectText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	}
	block := n.Type == html.ElementNode && blockTags[strings.ToLower(n.Data)]
	if block {
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
	if block {
		b.WriteByte(' ')
	}
}
