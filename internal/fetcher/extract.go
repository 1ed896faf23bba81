package fetcher

import (
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	"github.com/linkdigest/linkdigest/pkg/models"
)

// extraction is the structured output of one HTML page.
type extraction struct {
	title    string
	markdown string
	metadata map[string]string
	specific *models.SpecificContent
}

const maxSpecificRefs = 20

// extractHTML converts an HTML page into markdown plus structured
// extras. The markdown conversion is the content of record; the DOM
// walk only collects the title, meta tags and media references.
func extractHTML(pageURL, htmlContent string) (extraction, error) {
	md, err := htmltomarkdown.ConvertString(htmlContent)
	if err != nil {
		return extraction{}, err
	}

	out := extraction{
		markdown: strings.TrimSpace(md),
		metadata: map[string]string{},
		specific: &models.SpecificContent{},
	}

	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		// The markdown converter already accepted the page; a DOM parse
		// failure only loses the extras.
		return out, nil
	}

	base, _ := url.Parse(pageURL)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if out.title == "" && n.FirstChild != nil {
					out.title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				collectMeta(n, out.metadata)
			case "img":
				if src := resolveAttr(n, "src", base); src != "" && len(out.specific.Images) < maxSpecificRefs {
					out.specific.Images = append(out.specific.Images, models.ImageRef{URL: src, Alt: attr(n, "alt")})
				}
			case "a":
				if href := resolveAttr(n, "href", base); isExternalLink(href) && len(out.specific.Links) < maxSpecificRefs {
					out.specific.Links = append(out.specific.Links, models.LinkRef{URL: href, Text: textOf(n)})
				}
			case "video", "source":
				if src := resolveAttr(n, "src", base); src != "" && len(out.specific.Videos) < maxSpecificRefs {
					out.specific.Videos = append(out.specific.Videos, models.VideoRef{URL: src, Kind: attr(n, "type")})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if out.title == "" {
		if og := out.metadata["og:title"]; og != "" {
			out.title = og
		}
	}
	if out.specific.Empty() {
		out.specific = nil
	}
	return out, nil
}

// collectMeta records description/keywords and OpenGraph tags.
func collectMeta(n *html.Node, meta map[string]string) {
	name := attr(n, "name")
	if name == "" {
		name = attr(n, "property")
	}
	content := attr(n, "content")
	if content == "" {
		return
	}
	switch {
	case name == "description", name == "keywords", name == "author":
		meta[name] = content
	case strings.HasPrefix(name, "og:"):
		meta[name] = content
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// resolveAttr reads an attribute and resolves it against the page URL.
func resolveAttr(n *html.Node, key string, base *url.URL) string {
	raw := attr(n, key)
	if raw == "" || strings.HasPrefix(raw, "data:") || strings.HasPrefix(raw, "javascript:") {
		return ""
	}
	if base == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// isExternalLink keeps only http(s) links; anchors and mailto noise are
// dropped.
func isExternalLink(href string) bool {
	return strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://")
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
