package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linkdigest/linkdigest/internal/faults"
	"github.com/linkdigest/linkdigest/pkg/models"
)

// Analyzer turns fetched content into an LLM summary using a prompt
// picked for the detected content type.
type Analyzer struct {
	provider          Provider
	customPrompt      string
	maxSummaryLength  int
	targetLanguage    string
	translationPrompt string
}

// NewAnalyzer creates an analyzer over a provider. A custom prompt, if
// non-empty, replaces the per-type templates. maxSummaryLength <= 0
// leaves summaries uncapped.
func NewAnalyzer(provider Provider, customPrompt string, maxSummaryLength int) *Analyzer {
	return &Analyzer{
		provider:         provider,
		customPrompt:     customPrompt,
		maxSummaryLength: maxSummaryLength,
	}
}

// WithTranslation enables translating page content into targetLanguage
// before summarization. A custom translation prompt, if non-empty,
// replaces the default; its {content} and {target_language}
// placeholders are substituted.
func (a *Analyzer) WithTranslation(targetLanguage, customPrompt string) *Analyzer {
	a.targetLanguage = targetLanguage
	a.translationPrompt = customPrompt
	return a
}

// Available reports whether summaries can be generated at all.
func (a *Analyzer) Available() bool {
	return a != nil && a.provider != nil && a.provider.Available()
}

// Summarize generates a summary for the fetched content. The returned
// error is always an llm_unavailable fault so callers can degrade
// uniformly.
func (a *Analyzer) Summarize(ctx context.Context, data models.ContentData, contentType models.ContentType) (string, error) {
	if !a.Available() {
		return "", faults.New(faults.KindLLMUnavailable, "summarize", data.URL,
			fmt.Errorf("no provider configured"))
	}

	if a.targetLanguage != "" {
		data.Content = a.translate(ctx, data.Content)
	}

	prompt := a.buildPrompt(data, contentType)
	slog.Debug("generating summary", "url", data.URL, "content_type", contentType)

	summary, err := a.provider.Complete(ctx, prompt, 0)
	if err != nil {
		return "", faults.New(faults.KindLLMUnavailable, "summarize", data.URL, err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", faults.New(faults.KindLLMUnavailable, "summarize", data.URL,
			fmt.Errorf("empty response"))
	}

	return capSummary(summary, a.maxSummaryLength), nil
}

// translate rewrites content into the target language through the
// provider. Translation is best effort: on any failure or an empty
// reply the original content is returned so summarization still runs.
func (a *Analyzer) translate(ctx context.Context, content string) string {
	var prompt string
	if a.translationPrompt != "" {
		prompt = strings.NewReplacer(
			"{content}", content,
			"{target_language}", a.targetLanguage,
		).Replace(a.translationPrompt)
	} else {
		prompt = fmt.Sprintf(`Translate the following content into %s. Keep the original meaning, tone and formatting. Output only the translation.

%s`, a.targetLanguage, content)
	}

	translated, err := a.provider.Complete(ctx, prompt, 0)
	if err != nil {
		slog.Warn("translation failed, keeping original content", "error", err)
		return content
	}
	if strings.TrimSpace(translated) == "" {
		slog.Warn("translation returned empty response, keeping original content")
		return content
	}
	return translated
}

// buildPrompt selects the template for the content type and fills in
// the page fields. A configured custom prompt wins over the templates;
// its {url}, {title} and {content} placeholders are substituted.
func (a *Analyzer) buildPrompt(data models.ContentData, contentType models.ContentType) string {
	if a.customPrompt != "" {
		r := strings.NewReplacer(
			"{url}", data.URL,
			"{title}", data.Title,
			"{content}", data.Content,
		)
		return r.Replace(a.customPrompt)
	}

	tmpl, ok := promptByType[contentType]
	if !ok {
		tmpl = promptByType[models.TypeGeneric]
	}
	return fmt.Sprintf(tmpl, data.Title, data.URL, data.Content)
}

// promptByType maps content types to their summary prompt. Each
// template takes title, URL, content in that order.
var promptByType = map[models.ContentType]string{
	models.TypeArticle: `Summarize this article in 3-5 sentences. Cover the main argument, key supporting points, and the conclusion. Write in plain language.

Title: %s
URL: %s

Content:
%s`,
	models.TypeVideo: `This is a video page. Summarize what the video is about based on its title, description and any transcript text below. Mention the topic, who made it if known, and what a viewer would learn.

Title: %s
URL: %s

Content:
%s`,
	models.TypeSocial: `This is a social media post. Summarize what is being said, by whom if known, and the context or discussion around it. Keep it to 2-3 sentences.

Title: %s
URL: %s

Content:
%s`,
	models.TypeCode: `This is a code repository or technical page. Summarize what the project or code does, the language or stack it uses, and anything notable about its usage or status.

Title: %s
URL: %s

Content:
%s`,
	models.TypeDocument: `This is a document. Summarize its purpose, main sections, and key takeaways in 3-5 sentences.

Title: %s
URL: %s

Content:
%s`,
	models.TypeGeneric: `Summarize this web page in 3-4 sentences: what it is, what it contains, and why someone might visit it.

Title: %s
URL: %s

Content:
%s`,
}

// capSummary trims a summary to max runes, cutting at a sentence
// boundary when one is reasonably close.
func capSummary(summary string, max int) string {
	if max <= 0 {
		return summary
	}
	runes := []rune(summary)
	if len(runes) <= max {
		return summary
	}
	cut := runes[:max]
	for i := len(cut) - 1; i > max/2; i-- {
		switch cut[i] {
		case '.', '!', '?', '。', '！', '？':
			return string(cut[:i+1])
		}
	}
	return string(cut) + "..."
}

// DetectContentType classifies a page for prompt selection. URL
// patterns win over metadata; metadata wins over the generic fallback.
func DetectContentType(data models.ContentData) models.ContentType {
	host, path := splitURL(data.URL)

	switch {
	case hostMatches(host, "youtube.com", "youtu.be", "bilibili.com", "vimeo.com", "tiktok.com"):
		return models.TypeVideo
	case hostMatches(host, "twitter.com", "x.com", "weibo.com", "facebook.com", "instagram.com", "reddit.com"):
		return models.TypeSocial
	case hostMatches(host, "github.com", "gitlab.com", "bitbucket.org", "stackoverflow.com"):
		return models.TypeCode
	case strings.HasSuffix(path, ".pdf"), strings.HasSuffix(path, ".doc"), strings.HasSuffix(path, ".docx"),
		hostMatches(host, "arxiv.org"):
		return models.TypeDocument
	}

	switch data.Metadata["og:type"] {
	case "article":
		return models.TypeArticle
	case "video", "video.other":
		return models.TypeVideo
	}

	// A long prose page without platform hints reads as an article.
	if len([]rune(data.Content)) > 1000 {
		return models.TypeArticle
	}
	return models.TypeGeneric
}

func splitURL(raw string) (host, path string) {
	s := strings.ToLower(raw)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		return s[:idx], s[idx:]
	}
	return s, ""
}

func hostMatches(host string, domains ...string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
