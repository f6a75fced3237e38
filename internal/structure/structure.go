// Package structure infers layout landmarks and a coarse content type for a
// page.
package structure

import (
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/FrankUSC/WebBriefer/internal/dom"
	"github.com/FrankUSC/WebBriefer/internal/page"
)

const (
	mainSelector    = `main, article, [role="main"]`
	navSelector     = `nav, [role="navigation"]`
	headerSelector  = `header, [role="banner"]`
	footerSelector  = `footer, [role="contentinfo"]`
	sidebarSelector = `aside, .sidebar, [role="complementary"]`
)

// rule matches when any of its url, title or body substrings is present.
// All comparisons are on lowercased input.
type rule struct {
	kind  page.ContentType
	url   []string
	title []string
	body  []string
}

// Evaluated top to bottom; first match wins.
var rules = []rule{
	{kind: page.TypeArticle, url: []string{"/blog/", "/article/"}, title: []string{"blog"}, body: []string{"published"}},
	{kind: page.TypeNews, url: []string{"/news/"}, title: []string{"news"}},
	{kind: page.TypeProduct, url: []string{"/product/"}, body: []string{"price", "buy now"}},
	{kind: page.TypeAbout, url: []string{"/about"}, title: []string{"about"}},
}

// Classify probes doc for landmarks and estimates the content type from the
// page URL, its title and the document body text.
func Classify(doc dom.Document, pageURL, title string) page.Structure {
	s := page.Structure{
		HasMainContent: has(doc, mainSelector),
		HasNavigation:  has(doc, navSelector),
		HasHeader:      has(doc, headerSelector),
		HasFooter:      has(doc, footerSelector),
		HasSidebar:     has(doc, sidebarSelector),
		HeadingLevels:  HeadingLevels(doc),
	}
	var body string
	if b := doc.First("body"); b != nil {
		body = b.Text()
	} else {
		body = doc.Root().Text()
	}
	s.EstimatedContentType = ContentType(pageURL, title, body)
	s.ProbablyReadable = probablyReadable(doc)
	return s
}

func has(doc dom.Document, selector string) bool {
	return doc.First(selector) != nil
}

// HeadingLevels lists which of h1..h6 occur, ascending.
func HeadingLevels(doc dom.Document) []int {
	levels := []int{}
	for i, tag := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		if doc.First(tag) != nil {
			levels = append(levels, i+1)
		}
	}
	return levels
}

// ContentType applies the ordered rule list.
func ContentType(pageURL, title, body string) page.ContentType {
	u := strings.ToLower(pageURL)
	t := strings.ToLower(title)
	b := strings.ToLower(body)
	for _, r := range rules {
		if containsAny(u, r.url) || containsAny(t, r.title) || containsAny(b, r.body) {
			return r.kind
		}
	}
	return page.TypeGeneral
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func probablyReadable(doc dom.Document) bool {
	root := doc.HTML()
	if root == nil {
		return false
	}
	p := readability.NewParser()
	return p.CheckDocument(root)
}
