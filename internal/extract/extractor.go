package extract

import (
	"context"
	"time"

	"github.com/FrankUSC/WebBriefer/internal/dom"
	"github.com/FrankUSC/WebBriefer/internal/page"
)

// Extractor defines a minimal interface for content extraction strategies.
// Implementations must not modify doc.
type Extractor interface {
	Extract(ctx context.Context, doc dom.Document, pageURL string) page.Content
}

// HeuristicExtractor removes boilerplate regions, picks the primary region
// with a fixed selector list and falls back to <body>.
type HeuristicExtractor struct {
	// Sizer, when set, measures images whose markup omits dimensions.
	Sizer ImageSizer
	// Now overrides the extraction timestamp clock.
	Now func() time.Time
}

func (x *HeuristicExtractor) Extract(ctx context.Context, doc dom.Document, pageURL string) page.Content {
	if doc == nil {
		now := time.Now
		if x.Now != nil {
			now = x.Now
		}
		return emptyContent(pageURL, now())
	}
	return x.extract(ctx, doc, pageURL)
}
