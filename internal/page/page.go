// Package page defines the analysis record produced for a single web page.
package page

import "time"

// Extraction caps.
const (
	MaxParagraphs = 20
	MaxHeadings   = 10
	MaxLists      = 5
	MaxListItems  = 10
	MaxQuotes     = 5
	MaxLinks      = 20
	MaxImages     = 10

	// MinParagraphChars is the length a paragraph must exceed to be kept.
	MinParagraphChars = 50
	// MinQuoteChars is the length a quote must exceed to be kept.
	MinQuoteChars = 20
	// MinImageSide is the smallest width and height an image may have.
	MinImageSide = 100
)

// Content is the full analysis record of one page. It is built once per
// extraction and not mutated afterwards.
type Content struct {
	URL         string      `json:"url"`
	Title       string      `json:"title"`
	Domain      string      `json:"domain"`
	Timestamp   time.Time   `json:"timestamp"`
	Text        Text        `json:"text"`
	Images      []Image     `json:"images"`
	Metadata    Metadata    `json:"metadata"`
	Structure   Structure   `json:"structure"`
	Readability Readability `json:"readability"`
}

// Text is the readable text of the primary content region.
type Text struct {
	Raw         string    `json:"raw"`
	Paragraphs  []string  `json:"paragraphs"`
	Headings    []Heading `json:"headings"`
	Lists       []List    `json:"lists"`
	Quotes      []Quote   `json:"quotes"`
	Links       []Link    `json:"links"`
	WordCount   int       `json:"wordCount"`
	ReadingTime int       `json:"readingTime"`
}

type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	ID    string `json:"id,omitempty"`
}

type List struct {
	Type  string   `json:"type"`
	Items []string `json:"items"`
}

type Quote struct {
	Text   string `json:"text"`
	Author string `json:"author,omitempty"`
}

type Link struct {
	Text       string `json:"text"`
	URL        string `json:"url"`
	IsExternal bool   `json:"isExternal"`
}

// Image is a content image that survived size and ad filtering.
type Image struct {
	Src         string  `json:"src"`
	Alt         string  `json:"alt"`
	Title       string  `json:"title"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspectRatio"`
}

// Metadata holds document-level descriptors from <meta>, <link> and <html>.
type Metadata struct {
	Description        string `json:"description"`
	Keywords           string `json:"keywords"`
	Author             string `json:"author"`
	PublishDate        string `json:"publishDate"`
	ModifiedDate       string `json:"modifiedDate"`
	OGTitle            string `json:"ogTitle"`
	OGDescription      string `json:"ogDescription"`
	OGImage            string `json:"ogImage"`
	TwitterTitle       string `json:"twitterTitle"`
	TwitterDescription string `json:"twitterDescription"`
	Canonical          string `json:"canonical"`
	Language           string `json:"language"`
}

// ContentType is the coarse page category.
type ContentType string

const (
	TypeArticle ContentType = "article"
	TypeNews    ContentType = "news"
	TypeProduct ContentType = "product"
	TypeAbout   ContentType = "about"
	TypeGeneral ContentType = "general"
)

// Structure records layout landmarks found in the document.
type Structure struct {
	HasMainContent       bool        `json:"hasMainContent"`
	HasNavigation        bool        `json:"hasNavigation"`
	HasHeader            bool        `json:"hasHeader"`
	HasFooter            bool        `json:"hasFooter"`
	HasSidebar           bool        `json:"hasSidebar"`
	HeadingLevels        []int       `json:"headingLevels"`
	EstimatedContentType ContentType `json:"estimatedContentType"`
	ProbablyReadable     bool        `json:"probablyReadable"`
}

// Readability holds surface statistics of the page text.
type Readability struct {
	WordCount               int     `json:"wordCount"`
	SentenceCount           int     `json:"sentenceCount"`
	AverageWordsPerSentence float64 `json:"averageWordsPerSentence"`
	AverageSyllablesPerWord float64 `json:"averageSyllablesPerWord"`
	// EstimatedGradeLevel is the unrounded Flesch-Kincaid grade.
	EstimatedGradeLevel float64 `json:"estimatedGradeLevel"`
}
