package models

import (
	"time"
)

// Record is the persisted form of a subject: the evidence snapshot plus the
// current profile report, laid out as the saved-profile JSON document.
type Record struct {
	Name          string          `json:"name"`
	ScanTimestamp string          `json:"scan_timestamp"`
	Documents     []DocumentEntry `json:"documents"`
	WebData       []WebEntry      `json:"web_data"`
	SocialMedia   []SocialEntry   `json:"social_media"`
	Profile       *ProfileReport  `json:"profile,omitempty"`
}

// DocumentEntry is a document item in a record.
type DocumentEntry struct {
	Filename  string `json:"filename"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
	Timestamp string `json:"timestamp"`
}

// WebEntry is a scraped page in a record.
type WebEntry struct {
	URL       string `json:"url"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
	Timestamp string `json:"timestamp"`
}

// SocialEntry is a platform search result in a record.
type SocialEntry struct {
	Platform  string `json:"platform"`
	Query     string `json:"query"`
	URL       string `json:"url"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
	Timestamp string `json:"timestamp"`
}

// RecordTimeLayout is the timestamp layout used inside records.
const RecordTimeLayout = "2006-01-02T15:04:05.999999"

// NewRecord builds a record from a subject, its evidence and report.
// A zero report is stored as no profile.
func NewRecord(subject string, scannedAt time.Time, items []EvidenceItem, report ProfileReport) *Record {
	rec := &Record{
		Name:          subject,
		ScanTimestamp: formatRecordTime(scannedAt),
		Documents:     []DocumentEntry{},
		WebData:       []WebEntry{},
		SocialMedia:   []SocialEntry{},
	}

	for _, item := range items {
		ts := formatRecordTime(item.CapturedAt)
		switch item.Kind {
		case SourceDocument:
			rec.Documents = append(rec.Documents, DocumentEntry{
				Filename:  item.Label,
				Type:      string(SourceDocument),
				Content:   item.Content,
				WordCount: item.WordCount,
				Timestamp: ts,
			})
		case SourceWebPage:
			rec.WebData = append(rec.WebData, WebEntry{
				URL:       item.Label,
				Type:      string(SourceWebPage),
				Content:   item.Content,
				WordCount: item.WordCount,
				Timestamp: ts,
			})
		case SourceSocial:
			rec.SocialMedia = append(rec.SocialMedia, SocialEntry{
				Platform:  item.Label,
				Query:     item.Query,
				URL:       item.URL,
				Type:      string(SourceSocial),
				Content:   item.Content,
				WordCount: item.WordCount,
				Timestamp: ts,
			})
		}
	}

	if !report.IsZero() {
		r := report
		rec.Profile = &r
	}
	return rec
}

// Items converts the record back into evidence items: documents, then web
// pages, then social results.
func (r *Record) Items() []EvidenceItem {
	items := make([]EvidenceItem, 0, len(r.Documents)+len(r.WebData)+len(r.SocialMedia))
	for _, d := range r.Documents {
		items = append(items, EvidenceItem{
			Kind:       SourceDocument,
			Label:      d.Filename,
			Content:    d.Content,
			WordCount:  d.WordCount,
			CapturedAt: parseRecordTime(d.Timestamp),
		})
	}
	for _, w := range r.WebData {
		items = append(items, EvidenceItem{
			Kind:       SourceWebPage,
			Label:      w.URL,
			Content:    w.Content,
			WordCount:  w.WordCount,
			CapturedAt: parseRecordTime(w.Timestamp),
		})
	}
	for _, s := range r.SocialMedia {
		items = append(items, EvidenceItem{
			Kind:       SourceSocial,
			Label:      s.Platform,
			Query:      s.Query,
			URL:        s.URL,
			Content:    s.Content,
			WordCount:  s.WordCount,
			CapturedAt: parseRecordTime(s.Timestamp),
		})
	}
	return items
}

// ScannedAt parses the scan timestamp, zero if absent or malformed.
func (r *Record) ScannedAt() time.Time {
	return parseRecordTime(r.ScanTimestamp)
}

// Report returns the stored profile, zero if none.
func (r *Record) Report() ProfileReport {
	if r.Profile == nil {
		return ProfileReport{}
	}
	return *r.Profile
}

func formatRecordTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(RecordTimeLayout)
}

func parseRecordTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{RecordTimeLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
