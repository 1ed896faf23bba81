// Package export renders analysis results into portable files.
// JSON exports round-trip back into results; markdown and text are
// presentation formats.
package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/linkdigest/linkdigest/internal/faults"
	"github.com/linkdigest/linkdigest/pkg/models"
)

// Format identifies an export file format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
	FormatText     Format = "txt"
)

// ParseFormat resolves a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", faults.New(faults.KindConfig, "export", "",
		fmt.Errorf("unsupported export format %q (md, json, txt)", s))
}

// ContentType returns the MIME type for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatMarkdown:
		return "text/markdown"
	default:
		return "text/plain"
	}
}

// Filename builds a timestamped export filename.
func (f Format) Filename(now time.Time) string {
	return fmt.Sprintf("analysis-%s.%s", now.UTC().Format("2006-01-02T15-04-05"), f)
}

// Document is the JSON export envelope.
type Document struct {
	ExportedAt time.Time               `json:"exported_at"`
	Count      int                     `json:"count"`
	Results    []models.AnalysisResult `json:"results"`
}

// Render serializes results in the requested format.
func Render(results []models.AnalysisResult, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return renderJSON(results)
	case FormatMarkdown:
		return []byte(renderMarkdown(results)), nil
	case FormatText:
		return []byte(renderText(results)), nil
	}
	return nil, faults.New(faults.KindConfig, "export", "",
		fmt.Errorf("unsupported export format %q", format))
}

func renderJSON(results []models.AnalysisResult) ([]byte, error) {
	doc := Document{
		ExportedAt: time.Now().UTC(),
		Count:      len(results),
		Results:    results,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return data, nil
}

// ParseJSON reads a JSON export back into results.
func ParseJSON(data []byte) ([]models.AnalysisResult, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}
	return doc.Results, nil
}

func renderMarkdown(results []models.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("# URL Analysis Export\n\n")
	fmt.Fprintf(&b, "%d results\n\n", len(results))

	for _, r := range results {
		title := r.Raw.Title
		if title == "" {
			title = r.Raw.URL
		}
		fmt.Fprintf(&b, "## %s\n\n", title)
		fmt.Fprintf(&b, "- URL: <%s>\n", r.Raw.URL)
		fmt.Fprintf(&b, "- Type: %s\n", r.ContentType)
		fmt.Fprintf(&b, "- Analyzed: %s\n\n", r.AnalyzedAt.UTC().Format(time.RFC3339))
		if r.LLMSummary != "" {
			b.WriteString(r.LLMSummary)
			b.WriteString("\n\n")
		}
		if desc := r.Raw.Metadata["description"]; desc != "" && r.LLMSummary == "" {
			b.WriteString(desc)
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func renderText(results []models.AnalysisResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n" + strings.Repeat("-", 40) + "\n\n")
		}
		title := r.Raw.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&b, "%s\n%s\n", title, r.Raw.URL)
		if r.LLMSummary != "" {
			b.WriteString("\n" + r.LLMSummary + "\n")
		}
	}
	return b.String()
}
