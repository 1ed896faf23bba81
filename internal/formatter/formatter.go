// Package formatter renders analysis results into user-facing text.
// Output degrades gracefully: with no LLM summary it falls back to a
// locally computed base analysis, and every template placeholder that
// cannot be resolved renders as empty rather than failing.
package formatter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/linkdigest/linkdigest/pkg/models"
)

// Settings controls result presentation.
type Settings struct {
	EnableEmoji          bool
	EnableStatistics     bool
	EnableCustomTemplate bool
	ResultTemplate       string
	CollapseThreshold    int // rune count above which output is folded; 0 disables
}

// Formatter renders analysis results.
type Formatter struct {
	settings Settings
}

// New creates a Formatter with the given settings.
func New(settings Settings) *Formatter {
	return &Formatter{settings: settings}
}

var typeEmoji = map[models.ContentType]string{
	models.TypeArticle:  "📰",
	models.TypeVideo:    "🎬",
	models.TypeSocial:   "💬",
	models.TypeCode:     "💻",
	models.TypeDocument: "📄",
	models.TypeGeneric:  "🔗",
}

var typeLabel = map[models.ContentType]string{
	models.TypeArticle:  "Article",
	models.TypeVideo:    "Video",
	models.TypeSocial:   "Social Post",
	models.TypeCode:     "Code",
	models.TypeDocument: "Document",
	models.TypeGeneric:  "Web Page",
}

// Format renders one analysis result. When the result carries an LLM
// summary that summary leads; otherwise the base analysis does.
func (f *Formatter) Format(result models.AnalysisResult) string {
	if f.settings.EnableCustomTemplate && f.settings.ResultTemplate != "" {
		return f.collapse(f.renderTemplate(result))
	}

	var b strings.Builder

	b.WriteString(f.header(result))
	b.WriteString("\n🔗 ")
	b.WriteString(result.Raw.URL)
	b.WriteString("\n\n")

	if result.LLMSummary != "" {
		b.WriteString(f.decorate("📝", "Summary"))
		b.WriteString("\n")
		b.WriteString(result.LLMSummary)
	} else {
		b.WriteString(BaseAnalysis(result.Raw, f.settings.EnableEmoji))
	}

	if f.settings.EnableStatistics {
		b.WriteString("\n\n")
		b.WriteString(f.statistics(result))
	}

	return f.collapse(b.String())
}

func (f *Formatter) header(result models.AnalysisResult) string {
	title := result.Raw.Title
	if title == "" {
		title = "(untitled)"
	}
	label := typeLabel[result.ContentType]
	if label == "" {
		label = typeLabel[models.TypeGeneric]
	}
	if f.settings.EnableEmoji {
		emoji := typeEmoji[result.ContentType]
		if emoji == "" {
			emoji = typeEmoji[models.TypeGeneric]
		}
		return fmt.Sprintf("%s %s | %s", emoji, label, title)
	}
	return fmt.Sprintf("[%s] %s", label, title)
}

func (f *Formatter) decorate(emoji, label string) string {
	if f.settings.EnableEmoji {
		return emoji + " " + label
	}
	return label
}

// statistics summarizes the content: word count, estimated read time,
// and media reference counts.
func (f *Formatter) statistics(result models.AnalysisResult) string {
	words := len(strings.Fields(result.Raw.Content))
	// Average silent reading speed, rounded up.
	minutes := (words + 199) / 200
	if minutes < 1 {
		minutes = 1
	}

	parts := []string{
		fmt.Sprintf("%d words", words),
		fmt.Sprintf("~%d min read", minutes),
	}
	if !result.Specific.Empty() {
		if n := len(result.Specific.Images); n > 0 {
			parts = append(parts, fmt.Sprintf("%d images", n))
		}
		if n := len(result.Specific.Links); n > 0 {
			parts = append(parts, fmt.Sprintf("%d links", n))
		}
		if n := len(result.Specific.Videos); n > 0 {
			parts = append(parts, fmt.Sprintf("%d videos", n))
		}
	}

	return f.decorate("📊", "Stats: ") + strings.Join(parts, " · ")
}

var placeholderRe = regexp.MustCompile(`\{[a-z_]+\}`)

// renderTemplate fills the custom template. Unknown placeholders render
// as empty strings.
func (f *Formatter) renderTemplate(result models.AnalysisResult) string {
	values := map[string]string{
		"{title}":        result.Raw.Title,
		"{url}":          result.Raw.URL,
		"{summary}":      result.LLMSummary,
		"{content}":      result.Raw.Content,
		"{content_type}": string(result.ContentType),
		"{description}":  result.Raw.Metadata["description"],
		"{stats}":        f.statistics(result),
		"{timestamp}":    result.AnalyzedAt.Format("2006-01-02 15:04"),
	}
	return placeholderRe.ReplaceAllStringFunc(f.settings.ResultTemplate, func(ph string) string {
		return values[ph]
	})
}

const collapseHeadRunes = 300

// collapse folds output that exceeds the threshold: the head stays
// visible and the rest goes behind a fold marker.
func (f *Formatter) collapse(text string) string {
	threshold := f.settings.CollapseThreshold
	if threshold <= 0 || utf8.RuneCountInString(text) <= threshold {
		return text
	}
	runes := []rune(text)
	head := collapseHeadRunes
	if head > threshold {
		head = threshold
	}
	visible := strings.TrimSpace(string(runes[:head]))
	folded := strings.TrimSpace(string(runes[head:]))
	return visible + "\n\n▼ full analysis (" + fmt.Sprint(len(runes)) + " chars)\n" + folded
}

// BaseAnalysis builds a non-LLM summary of fetched content: the page
// description when present, plus the leading sentences of the body.
func BaseAnalysis(data models.ContentData, emoji bool) string {
	var b strings.Builder

	label := "Overview"
	if emoji {
		label = "📋 " + label
	}
	b.WriteString(label)
	b.WriteString("\n")

	if desc := data.Metadata["description"]; desc != "" {
		b.WriteString(desc)
		b.WriteString("\n\n")
	}

	if lead := keySentences(data.Content, 3); lead != "" {
		b.WriteString(lead)
	}

	return strings.TrimSpace(b.String())
}

// keySentences returns the first n sentences of prose content,
// skipping markdown headings and link-only lines.
func keySentences(content string, n int) string {
	var prose []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "![") {
			continue
		}
		prose = append(prose, line)
	}
	text := strings.Join(prose, " ")

	var sentences []string
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		switch r {
		case '.', '!', '?', '。', '！', '？':
			s := strings.TrimSpace(string(runes[start : i+1]))
			if utf8.RuneCountInString(s) > 10 {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
		if len(sentences) == n {
			break
		}
	}
	if len(sentences) == 0 && len(runes) > 0 {
		limit := 200
		if len(runes) < limit {
			limit = len(runes)
		}
		return strings.TrimSpace(string(runes[:limit]))
	}
	return strings.Join(sentences, " ")
}
