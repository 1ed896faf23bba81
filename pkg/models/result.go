package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ContentType classifies fetched content for prompt selection.
type ContentType string

const (
	TypeArticle  ContentType = "article"
	TypeVideo    ContentType = "video"
	TypeSocial   ContentType = "social"
	TypeCode     ContentType = "code"
	TypeDocument ContentType = "document"
	TypeGeneric  ContentType = "generic"
)

// AnalysisMode controls when URL analysis is triggered.
type AnalysisMode string

const (
	ModeAuto    AnalysisMode = "auto"
	ModeManual  AnalysisMode = "manual"
	ModeHybrid  AnalysisMode = "hybrid"
	ModeLLMTool AnalysisMode = "llmtool"
)

// ValidMode reports whether m is one of the supported analysis modes.
func ValidMode(m AnalysisMode) bool {
	switch m {
	case ModeAuto, ModeManual, ModeHybrid, ModeLLMTool:
		return true
	}
	return false
}

// ContentData holds the raw extraction of a fetched page.
type ContentData struct {
	URL          string            `json:"url"`
	Title        string            `json:"title"`
	Content      string            `json:"content"`       // markdown text
	DeclaredType string            `json:"declared_type"` // HTTP Content-Type header
	Metadata     map[string]string `json:"metadata,omitempty"`
	Specific     *SpecificContent  `json:"specific,omitempty"`
	Screenshot   []byte            `json:"screenshot,omitempty"`
	FetchedAt    time.Time         `json:"fetched_at"`
}

// ImageRef is an extracted image link.
type ImageRef struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// LinkRef is an extracted hyperlink.
type LinkRef struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
}

// VideoRef is an extracted video source.
type VideoRef struct {
	URL  string `json:"url"`
	Kind string `json:"kind,omitempty"`
}

// SpecificContent holds optional structured extras pulled from the page.
type SpecificContent struct {
	Images []ImageRef `json:"images,omitempty"`
	Links  []LinkRef  `json:"links,omitempty"`
	Videos []VideoRef `json:"videos,omitempty"`
}

// Empty reports whether no extras were extracted.
func (s *SpecificContent) Empty() bool {
	return s == nil || (len(s.Images) == 0 && len(s.Links) == 0 && len(s.Videos) == 0)
}

// AnalysisResult is the immutable outcome of analyzing one URL.
// A refreshed analysis always replaces a cached result, never mutates it.
type AnalysisResult struct {
	Raw         ContentData      `json:"raw"`
	LLMSummary  string           `json:"llm_summary,omitempty"`
	ContentType ContentType      `json:"content_type"`
	Specific    *SpecificContent `json:"specific,omitempty"`
	AnalyzedAt  time.Time        `json:"analyzed_at"`
}

// ResultID creates a deterministic short ID from a URL.
// The ID is the first 16 hex chars of the URL's SHA-256 hash.
func ResultID(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])[:16]
}
