// Package prompt renders the personalized prompts sent to the language model.
// Every builder is a pure function of its inputs.
package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/FrankUSC/WebBriefer/internal/normalize"
	"github.com/FrankUSC/WebBriefer/internal/page"
	"github.com/FrankUSC/WebBriefer/internal/profile"
)

const (
	// SummaryTextLimit bounds the page text embedded in a summary prompt.
	SummaryTextLimit = 4000
	// AnswerContextLimit bounds the page text embedded in an answer prompt.
	AnswerContextLimit = 2000
	// Ellipsis marks truncated text.
	Ellipsis = "..."
)

// MainSystemPrompt is the system prompt of the long-lived assistant session.
const MainSystemPrompt = "You are a helpful AI assistant that creates personalized content summaries. Always provide accurate, well-structured, and relevant information adapted to the user's profile and preferences."

// CohortLabel buckets an age into the label used to set tone and level.
func CohortLabel(age int) string {
	switch {
	case age < 18:
		return "teenager"
	case age < 25:
		return "young adult"
	case age < 35:
		return "adult"
	case age < 50:
		return "middle-aged adult"
	default:
		return "mature adult"
	}
}

// FocusAreas joins the labels of the enabled focus flags.
func FocusAreas(f profile.Focus) string {
	var areas []string
	if f.KeyPoints {
		areas = append(areas, "key points")
	}
	if f.Numbers {
		areas = append(areas, "statistics and numbers")
	}
	if f.Quotes {
		areas = append(areas, "important quotes")
	}
	if f.Actions {
		areas = append(areas, "actionable insights")
	}
	if len(areas) == 0 {
		return "general overview"
	}
	return strings.Join(areas, ", ")
}

// LanguageName returns the English name of an ISO-639 code, or the code
// itself when it is unknown.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func writeProfile(b *strings.Builder, p profile.Profile, cohort, focus string) {
	fmt.Fprintf(b, "- Age: %d (%s)\n", p.Age, cohort)
	fmt.Fprintf(b, "- Occupation: %s\n", p.Occupation)
	fmt.Fprintf(b, "- Education: %s\n", p.Education)
	fmt.Fprintf(b, "- Summary Style: %s\n", p.SummaryStyle)
	fmt.Fprintf(b, "- Focus Areas: %s\n", focus)
}

// SummaryPrompt asks for an English summary of c written for p.
func SummaryPrompt(c page.Content, p profile.Profile) string {
	cohort := CohortLabel(p.Age)
	focus := FocusAreas(p.ContentFocus)
	text := normalize.Truncate(c.Text.Raw, SummaryTextLimit, Ellipsis)

	var b strings.Builder
	b.WriteString("You are an AI assistant helping to create personalized content summaries. Please create a summary of the following webpage content:\n\n")
	b.WriteString("User Profile:\n")
	writeProfile(&b, p, cohort, focus)
	b.WriteString("\nContent to Summarize:\n")
	fmt.Fprintf(&b, "Title: %s\n", orDefault(c.Title, "No title available"))
	fmt.Fprintf(&b, "URL: %s\n", orDefault(c.URL, "No URL available"))
	fmt.Fprintf(&b, "Text: %s\n\n", text)
	b.WriteString("Instructions:\n")
	fmt.Fprintf(&b, "1. Create a summary in less than 500 words\n")
	fmt.Fprintf(&b, "2. Adapt the language complexity for a %s with %s education\n", cohort, p.Education)
	fmt.Fprintf(&b, "3. Focus on %s as requested by the user\n", focus)
	fmt.Fprintf(&b, "4. Use a %s tone\n", p.SummaryStyle)
	b.WriteString("5. Structure the summary with clear headings and bullet points\n")
	fmt.Fprintf(&b, "6. Include the most relevant information for someone in %s\n", p.Occupation)
	b.WriteString("7. Write in English (translation will be handled separately if needed)\n")
	b.WriteString("8. Include the title, the main topic of the page and its key points\n")
	b.WriteString("9. Make sure the reader described above can fully understand the summary\n\n")
	b.WriteString("Please provide a well-structured, personalized summary that would be most valuable for this specific user profile.")
	return b.String()
}

// AnswerPrompt asks a follow-up question about a summarized page. c may be
// nil when the original content is not at hand.
func AnswerPrompt(question, summary string, c *page.Content, p profile.Profile) string {
	excerpt := "Not available"
	if c != nil && strings.TrimSpace(c.Text.Raw) != "" {
		excerpt = normalize.Truncate(c.Text.Raw, AnswerContextLimit, Ellipsis)
	}

	var b strings.Builder
	b.WriteString("You are answering a follow-up question about a webpage that has been summarized for a specific user.\n\n")
	b.WriteString("User Profile:\n")
	fmt.Fprintf(&b, "- Age: %d\n", p.Age)
	fmt.Fprintf(&b, "- Occupation: %s\n", p.Occupation)
	fmt.Fprintf(&b, "- Education: %s\n\n", p.Education)
	fmt.Fprintf(&b, "Summary of the webpage:\n%s\n\n", summary)
	fmt.Fprintf(&b, "Original content context:\n%s\n\n", excerpt)
	fmt.Fprintf(&b, "User's Question: %s\n\n", question)
	b.WriteString("Instructions:\n")
	b.WriteString("1. Answer the question based on the summary and original content\n")
	fmt.Fprintf(&b, "2. Adapt your answer for someone with %s education level\n", p.Education)
	b.WriteString("3. Keep the answer concise but informative (max 200 words)\n")
	b.WriteString("4. If the information isn't available in the content, say so clearly\n")
	fmt.Fprintf(&b, "5. Relate the answer to the user's occupation (%s) if relevant\n", p.Occupation)
	b.WriteString("6. Use a helpful and professional tone\n\n")
	b.WriteString("Please provide a clear, accurate answer to the user's question.")
	return b.String()
}

// TranslatePrompt asks the language model for a bare translation from
// English.
func TranslatePrompt(text, target string) string {
	return fmt.Sprintf("Please translate the following text from English to %s. Only provide the translation, no additional text:\n\n%s", LanguageName(target), text)
}
