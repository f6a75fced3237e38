package template

import (
	"strings"

	"github.com/FrankUSC/WebBriefer/internal/llm"
)

// Style represents the supported summary styles
type Style string

const (
	// Balanced is the install-time default: medium length key points
	Balanced Style = "balanced"
	// Brief keeps only the headline points
	Brief Style = "brief"
	// Detailed covers the page section by section
	Detailed Style = "detailed"
	// Technical keeps terminology and figures intact
	Technical Style = "technical"
	// Simple uses plain language for a general audience
	Simple Style = "simple"
)

// Profile defines how a summary style maps onto summarizer knobs
type Profile struct {
	Style       Style
	Name        string
	Description string
	// Summarizer options used when a dedicated summarizer serves the request.
	Type   string
	Length string
	// Context is passed to the summarizer as shared context.
	Context string
}

// GetProfile returns the profile for a user-entered style name
func GetProfile(style string) Profile {
	switch Style(normalizeStyle(style)) {
	case Brief:
		return briefProfile()
	case Detailed:
		return detailedProfile()
	case Technical:
		return technicalProfile()
	case Simple:
		return simpleProfile()
	default:
		return balancedProfile()
	}
}

// SummarizerOptions converts the profile into summarizer options with
// Markdown output.
func (p Profile) SummarizerOptions() llm.SummarizerOptions {
	return llm.SummarizerOptions{
		Type:          p.Type,
		Format:        llm.DefaultSummarizerOptions.Format,
		Length:        p.Length,
		SharedContext: p.Context,
	}
}

// normalizeStyle converts string input to canonical Style value
func normalizeStyle(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "balanced", "default", "standard", "normal", "":
		return string(Balanced)
	case "brief", "short", "concise", "tl;dr", "tldr", "headline":
		return string(Brief)
	case "detailed", "long", "comprehensive", "in-depth", "thorough":
		return string(Detailed)
	case "technical", "tech", "expert", "professional":
		return string(Technical)
	case "simple", "casual", "plain", "easy", "eli5":
		return string(Simple)
	default:
		if strings.Contains(v, "brief") || strings.Contains(v, "short") || strings.Contains(v, "concise") {
			return string(Brief)
		}
		if strings.Contains(v, "detail") || strings.Contains(v, "depth") {
			return string(Detailed)
		}
		if strings.Contains(v, "tech") || strings.Contains(v, "expert") {
			return string(Technical)
		}
		if strings.Contains(v, "simple") || strings.Contains(v, "casual") || strings.Contains(v, "plain") {
			return string(Simple)
		}
		return string(Balanced)
	}
}

func balancedProfile() Profile {
	return Profile{
		Style:       Balanced,
		Name:        "Balanced",
		Description: "Key points of medium length",
		Type:        "key-points",
		Length:      "medium",
	}
}

func briefProfile() Profile {
	return Profile{
		Style:       Brief,
		Name:        "Brief",
		Description: "A few sentences with the main takeaway",
		Type:        "tldr",
		Length:      "short",
	}
}

func detailedProfile() Profile {
	return Profile{
		Style:       Detailed,
		Name:        "Detailed",
		Description: "Section by section coverage of the page",
		Type:        "key-points",
		Length:      "long",
	}
}

func technicalProfile() Profile {
	return Profile{
		Style:       Technical,
		Name:        "Technical",
		Description: "Keeps terminology, figures and units as written",
		Type:        "key-points",
		Length:      "medium",
		Context:     "The reader is a domain expert. Keep technical terms, numbers and units exactly as written.",
	}
}

func simpleProfile() Profile {
	return Profile{
		Style:       Simple,
		Name:        "Simple",
		Description: "Plain language for a general audience",
		Type:        "teaser",
		Length:      "medium",
		Context:     "Explain in plain language without jargon.",
	}
}
