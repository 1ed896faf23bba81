package pipeline

import (
	"reflect"
	"testing"
)

func TestExtractURLs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"no urls", "just some chatter", nil},
		{"single url", "look at https://example.com/page", []string{"https://example.com/page"}},
		{"multiple urls", "a https://a.example.com and b http://b.example.com", []string{"https://a.example.com", "http://b.example.com"}},
		{"trailing punctuation", "see https://example.com/page, ok?", []string{"https://example.com/page"}},
		{"wrapped in parens", "(https://example.com/page)", []string{"https://example.com/page"}},
		{"duplicates dropped", "https://example.com twice https://example.com", []string{"https://example.com"}},
		{"order preserved", "https://z.example.com then https://a.example.com", []string{"https://z.example.com", "https://a.example.com"}},
		{"query string kept", "ref https://example.com/s?q=go&n=1 here", []string{"https://example.com/s?q=go&n=1"}},
		{"cjk text boundary", "看这个https://example.com/页面链接在这里", []string{"https://example.com/"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractURLs(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractURLs(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestIsURLOnly(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"https://example.com/page", true},
		{"  https://example.com/page  ", true},
		{"https://a.example.com https://b.example.com", true},
		{"check this out https://example.com/page", false},
		{"https://example.com/page what do you think?", false},
	}

	for _, tt := range tests {
		urls := ExtractURLs(tt.message)
		if got := isURLOnly(tt.message, urls); got != tt.want {
			t.Errorf("isURLOnly(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}
