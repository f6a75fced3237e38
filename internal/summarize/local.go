package summarize

import (
	"fmt"
	"strings"

	"github.com/FrankUSC/WebBriefer/internal/normalize"
	"github.com/FrankUSC/WebBriefer/internal/page"
)

const (
	localMaxTopics     = 5
	localMaxPoints     = 3
	localPointMaxChars = 200
)

// Local writes a summary from the extracted structure alone. It never calls
// a backend.
func Local(c page.Content) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Summary of %s\n\n", c.Title)

	if len(c.Text.Headings) > 0 {
		b.WriteString("## Key Topics:\n")
		for i, h := range c.Text.Headings {
			if i == localMaxTopics {
				break
			}
			fmt.Fprintf(&b, "- %s\n", h.Text)
		}
		b.WriteString("\n")
	}

	if len(c.Text.Paragraphs) > 0 {
		b.WriteString("## Main Points:\n")
		for i, p := range c.Text.Paragraphs {
			if i == localMaxPoints {
				break
			}
			fmt.Fprintf(&b, "%s\n\n", normalize.Truncate(p, localPointMaxChars, "..."))
		}
	}

	fmt.Fprintf(&b, "\n**Reading Time:** %d minutes\n", c.Text.ReadingTime)
	fmt.Fprintf(&b, "**Word Count:** %d words", c.Text.WordCount)
	return b.String()
}
