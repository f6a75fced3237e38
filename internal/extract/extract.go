package extract

import (
	"bytes"
	"context"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/FrankUSC/WebBriefer/internal/dom"
	"github.com/FrankUSC/WebBriefer/internal/normalize"
	"github.com/FrankUSC/WebBriefer/internal/page"
	"github.com/FrankUSC/WebBriefer/internal/readability"
	"github.com/FrankUSC/WebBriefer/internal/structure"
)

// Regions removed from the working copy before the primary region is chosen.
var noiseSelectors = []string{
	"script", "style", "noscript", "iframe", "nav", "header", "footer", "aside",
	".advertisement", ".ads", ".sidebar", ".comments", ".social-share", ".share",
	".popup", ".modal",
}

// Candidate primary regions, most specific first.
var contentSelectors = []string{
	"main", "article", `[role="main"]`, ".content", ".post-content",
	".entry-content", ".article-content", ".story-body", ".post-body",
	".content-body",
}

const (
	headingSelector = "h1, h2, h3, h4, h5, h6"
	quoteSelector   = "blockquote, q, .quote"
	authorSelector  = ".author, .attribution, cite, .quote-author, .byline, .credit"
)

// Image URLs containing any of these are trackers or ads.
var imageDenylist = []string{"doubleclick", "googleadservices", "facebook.com/tr", "analytics"}

// FromHTML parses input and extracts it with a default HeuristicExtractor.
// Unparseable input yields a Content with only URL, domain and timestamp set.
func FromHTML(input []byte, pageURL string) page.Content {
	doc, err := dom.Parse(bytes.NewReader(input))
	if err != nil {
		return emptyContent(pageURL, time.Now())
	}
	var x HeuristicExtractor
	return x.Extract(context.Background(), doc, pageURL)
}

func emptyContent(pageURL string, now time.Time) page.Content {
	return page.Content{
		URL:       pageURL,
		Domain:    hostOf(pageURL),
		Timestamp: now,
		Text: page.Text{
			Paragraphs: []string{},
			Headings:   []page.Heading{},
			Lists:      []page.List{},
			Quotes:     []page.Quote{},
			Links:      []page.Link{},
		},
		Images:    []page.Image{},
		Metadata:  page.Metadata{Canonical: pageURL, Language: "en"},
		Structure: page.Structure{HeadingLevels: []int{}, EstimatedContentType: page.TypeGeneral},
	}
}

func (x *HeuristicExtractor) extract(ctx context.Context, doc dom.Document, pageURL string) page.Content {
	now := time.Now
	if x.Now != nil {
		now = x.Now
	}
	base, _ := url.Parse(pageURL)

	title := doc.Title()
	if title == "" {
		if h := doc.First("h1"); h != nil {
			title = normalize.Text(h.Text())
		}
	}

	// Work on a detached copy; the caller's document is never modified.
	work := doc.Clone()
	work.Remove(noiseSelectors...)
	region := primaryRegion(work)

	text := extractText(region, base)
	c := page.Content{
		URL:       pageURL,
		Title:     title,
		Domain:    hostOf(pageURL),
		Timestamp: now(),
		Text:      text,
		Images:    x.extractImages(ctx, doc, base),
		Metadata:  extractMetadata(doc, pageURL, base),
		Structure: structure.Classify(doc, pageURL, title),
	}
	c.Readability = readability.Analyze(text.Raw)
	return c
}

func primaryRegion(doc dom.Document) dom.Node {
	for _, sel := range contentSelectors {
		if n := doc.First(sel); n != nil {
			return n
		}
	}
	if b := doc.First("body"); b != nil {
		return b
	}
	return doc.Root()
}

func extractText(region dom.Node, base *url.URL) page.Text {
	raw := normalize.Text(region.Text())
	words := normalize.CountWords(raw)
	return page.Text{
		Raw:         raw,
		Paragraphs:  paragraphs(region),
		Headings:    headings(region),
		Lists:       lists(region),
		Quotes:      quotes(region),
		Links:       links(region, base),
		WordCount:   words,
		ReadingTime: normalize.ReadingTime(words),
	}
}

func paragraphs(region dom.Node) []string {
	out := []string{}
	for _, p := range region.Find("p") {
		if len(out) == page.MaxParagraphs {
			break
		}
		t := normalize.Text(p.Text())
		if utf8.RuneCountInString(t) > page.MinParagraphChars {
			out = append(out, t)
		}
	}
	return out
}

func headings(region dom.Node) []page.Heading {
	out := []page.Heading{}
	for _, h := range region.Find(headingSelector) {
		if len(out) == page.MaxHeadings {
			break
		}
		t := normalize.Text(h.Text())
		if t == "" {
			continue
		}
		level, _ := strconv.Atoi(strings.TrimPrefix(h.Tag(), "h"))
		out = append(out, page.Heading{Level: level, Text: t, ID: h.ID()})
	}
	return out
}

// lists collects every <li> below each list, nested ones included. A nested
// list is also reported on its own.
func lists(region dom.Node) []page.List {
	out := []page.List{}
	for _, l := range region.Find("ul, ol") {
		if len(out) == page.MaxLists {
			break
		}
		items := []string{}
		for _, li := range l.Find("li") {
			if t := normalize.Text(li.Text()); t != "" {
				items = append(items, t)
				if len(items) == page.MaxListItems {
					break
				}
			}
		}
		if len(items) == 0 {
			continue
		}
		out = append(out, page.List{Type: l.Tag(), Items: items})
	}
	return out
}

func quotes(region dom.Node) []page.Quote {
	out := []page.Quote{}
	for _, q := range region.Find(quoteSelector) {
		if len(out) == page.MaxQuotes {
			break
		}
		t := normalize.Text(q.Text())
		if utf8.RuneCountInString(t) <= page.MinQuoteChars {
			continue
		}
		out = append(out, page.Quote{Text: t, Author: quoteAuthor(q)})
	}
	return out
}

func quoteAuthor(q dom.Node) string {
	if a := q.Find(authorSelector); len(a) > 0 {
		return normalize.Text(a[0].Text())
	}
	if p := q.Parent(); p != nil {
		if a := p.Find(authorSelector); len(a) > 0 {
			return normalize.Text(a[0].Text())
		}
	}
	return ""
}

func links(region dom.Node, base *url.URL) []page.Link {
	out := []page.Link{}
	for _, a := range region.Find("a[href]") {
		if len(out) == page.MaxLinks {
			break
		}
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			continue
		}
		text := normalize.Text(a.Text())
		if text == "" {
			continue
		}
		abs := resolve(base, href)
		out = append(out, page.Link{Text: text, URL: abs, IsExternal: isExternal(base, abs)})
	}
	return out
}

func (x *HeuristicExtractor) extractImages(ctx context.Context, doc dom.Document, base *url.URL) []page.Image {
	out := []page.Image{}
	for _, img := range doc.Find("img[src]") {
		if len(out) == page.MaxImages {
			break
		}
		src, _ := img.Attr("src")
		src = resolve(base, strings.TrimSpace(src))
		if src == "" || containsAny(strings.ToLower(src), imageDenylist) {
			continue
		}
		w := dimension(img, "width")
		h := dimension(img, "height")
		if (w == 0 || h == 0) && x.Sizer != nil {
			if sw, sh, err := x.Sizer.Size(ctx, src); err == nil {
				w, h = sw, sh
			}
		}
		// Unknown dimensions count as too small.
		if w < page.MinImageSide || h < page.MinImageSide {
			continue
		}
		alt, _ := img.Attr("alt")
		title, _ := img.Attr("title")
		out = append(out, page.Image{
			Src:         src,
			Alt:         strings.TrimSpace(alt),
			Title:       strings.TrimSpace(title),
			Width:       w,
			Height:      h,
			AspectRatio: math.Round(float64(w)/float64(h)*100) / 100,
		})
	}
	return out
}

// dimension reads an integer width or height attribute, accepting a "px"
// suffix. Percentages and garbage yield 0.
func dimension(n dom.Node, attr string) int {
	v, ok := n.Attr(attr)
	if !ok {
		return 0
	}
	v = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(v)), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f)
}

func extractMetadata(doc dom.Document, pageURL string, base *url.URL) page.Metadata {
	md := page.Metadata{
		Description:        meta(doc, "description"),
		Keywords:           meta(doc, "keywords"),
		Author:             meta(doc, "author"),
		PublishDate:        firstNonEmpty(meta(doc, "article:published_time"), meta(doc, "pubdate")),
		ModifiedDate:       meta(doc, "article:modified_time"),
		OGTitle:            meta(doc, "og:title"),
		OGDescription:      meta(doc, "og:description"),
		OGImage:            meta(doc, "og:image"),
		TwitterTitle:       meta(doc, "twitter:title"),
		TwitterDescription: meta(doc, "twitter:description"),
		Canonical:          pageURL,
		Language:           "en",
	}
	if l := doc.First(`link[rel="canonical"]`); l != nil {
		if href, _ := l.Attr("href"); strings.TrimSpace(href) != "" {
			md.Canonical = resolve(base, strings.TrimSpace(href))
		}
	}
	if h := doc.First("html"); h != nil {
		if lang, _ := h.Attr("lang"); strings.TrimSpace(lang) != "" {
			md.Language = strings.TrimSpace(lang)
		}
	}
	return md
}

func meta(doc dom.Document, name string) string {
	n := doc.First(`meta[name="` + name + `"], meta[property="` + name + `"]`)
	if n == nil {
		return ""
	}
	v, _ := n.Attr("content")
	return strings.TrimSpace(v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolve(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil || base.Scheme == "" {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func isExternal(base *url.URL, abs string) bool {
	if base == nil || base.Host == "" {
		return false
	}
	u, err := url.Parse(abs)
	if err != nil || u.Host == "" {
		return false
	}
	return !strings.EqualFold(u.Hostname(), base.Hostname())
}

func hostOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
