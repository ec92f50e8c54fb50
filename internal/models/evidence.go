package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// SourceKind identifies which fetcher produced an evidence item
type SourceKind string

const (
	SourceDocument SourceKind = "document"
	SourceWebPage  SourceKind = "web_scrape"
	SourceSocial   SourceKind = "social_media"
)

// Ingestion caps, in characters.
const (
	DocumentContentCap = 10000
	WebPageContentCap  = 10000
	SocialContentCap   = 15000
)

// ContentCap returns the ingestion cap for a source kind.
func (k SourceKind) ContentCap() int {
	switch k {
	case SourceSocial:
		return SocialContentCap
	case SourceWebPage:
		return WebPageContentCap
	default:
		return DocumentContentCap
	}
}

// Valid reports whether k is one of the known kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceDocument, SourceWebPage, SourceSocial:
		return true
	}
	return false
}

// EvidenceItem is one unit of captured text from a single source.
// Items are passed by value; nothing mutates an item once it is built.
type EvidenceItem struct {
	Kind       SourceKind `json:"kind"`
	Label      string     `json:"label"`           // filename, URL or platform name
	Query      string     `json:"query,omitempty"` // social search query
	URL        string     `json:"url,omitempty"`   // social search URL
	Content    string     `json:"content"`
	WordCount  int        `json:"word_count"`
	CapturedAt time.Time  `json:"captured_at"`
}

// NewEvidenceItem builds an item from raw text, counting words on the
// uncapped text and truncating content to the kind's cap.
func NewEvidenceItem(kind SourceKind, label, raw string, capturedAt time.Time) EvidenceItem {
	return EvidenceItem{
		Kind:       kind,
		Label:      label,
		Content:    TruncateChars(raw, kind.ContentCap()),
		WordCount:  len(strings.Fields(raw)),
		CapturedAt: capturedAt,
	}
}

// NewSocialItem builds a social platform item.
func NewSocialItem(platform, query, url, raw string, capturedAt time.Time) EvidenceItem {
	item := NewEvidenceItem(SourceSocial, platform, raw, capturedAt)
	item.Query = query
	item.URL = url
	return item
}

// TruncateChars cuts s to at most n characters (code points).
func TruncateChars(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// CharCount returns the number of characters (code points) in s.
func CharCount(s string) int {
	return utf8.RuneCountInString(s)
}

// EvidenceCounts holds the number of items per kind.
type EvidenceCounts struct {
	Documents int `json:"documents"`
	WebPages  int `json:"web_pages"`
	Social    int `json:"social_media"`
}

// Total returns the number of items across kinds.
func (c EvidenceCounts) Total() int {
	return c.Documents + c.WebPages + c.Social
}

// CountItems tallies items by kind.
func CountItems(items []EvidenceItem) EvidenceCounts {
	var c EvidenceCounts
	for _, item := range items {
		switch item.Kind {
		case SourceDocument:
			c.Documents++
		case SourceWebPage:
			c.WebPages++
		case SourceSocial:
			c.Social++
		}
	}
	return c
}
