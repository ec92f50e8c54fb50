package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvidenceItem_CapsContentAndCountsUncappedWords(t *testing.T) {
	now := time.Now()
	raw := strings.Repeat("word ", 5000) // 25,000 chars, 5,000 words

	doc := NewEvidenceItem(SourceDocument, "notes.txt", raw, now)
	assert.Equal(t, DocumentContentCap, CharCount(doc.Content))
	assert.Equal(t, 5000, doc.WordCount)

	web := NewEvidenceItem(SourceWebPage, "https://example.com", raw, now)
	assert.Equal(t, WebPageContentCap, CharCount(web.Content))

	social := NewSocialItem("Reddit", "jane doe", "https://reddit.com", raw, now)
	assert.Equal(t, SocialContentCap, CharCount(social.Content))
	assert.Equal(t, 5000, social.WordCount)
	assert.Equal(t, "jane doe", social.Query)
}

func TestNewEvidenceItem_ShortContentUntouched(t *testing.T) {
	item := NewEvidenceItem(SourceDocument, "a.txt", "Hello world", time.Now())
	assert.Equal(t, "Hello world", item.Content)
	assert.Equal(t, 2, item.WordCount)
}

func TestTruncateChars_CountsCodePoints(t *testing.T) {
	s := strings.Repeat("ж", 10)
	out := TruncateChars(s, 4)
	assert.Equal(t, 4, CharCount(out))
	assert.Equal(t, "жжжж", out)
	assert.Equal(t, "", TruncateChars(s, 0))
	assert.Equal(t, s, TruncateChars(s, 100))
}

func TestCountItems(t *testing.T) {
	now := time.Now()
	items := []EvidenceItem{
		NewEvidenceItem(SourceDocument, "a", "x", now),
		NewEvidenceItem(SourceDocument, "b", "x", now),
		NewEvidenceItem(SourceWebPage, "c", "x", now),
		NewSocialItem("Reddit", "q", "u", "x", now),
	}
	counts := CountItems(items)
	assert.Equal(t, EvidenceCounts{Documents: 2, WebPages: 1, Social: 1}, counts)
	assert.Equal(t, 4, counts.Total())
}

func TestProfileReport_Shapes(t *testing.T) {
	var zero ProfileReport
	assert.True(t, zero.IsZero())

	structured := NewStructuredReport(StructuredProfile{PrimaryTraits: []string{"Calm"}}, OriginBaseline, time.Now())
	assert.Equal(t, ReportStructured, structured.Kind())
	_, ok := structured.Narrative()
	assert.False(t, ok)
	p, ok := structured.Structured()
	require.True(t, ok)
	assert.Equal(t, []string{"Calm"}, p.PrimaryTraits)

	narrative, err := NewNarrativeReport("long text", OriginSynthesis, time.Now())
	require.NoError(t, err)
	assert.Equal(t, ReportNarrative, narrative.Kind())
	_, ok = narrative.Structured()
	assert.False(t, ok)

	_, err = NewNarrativeReport("   ", OriginSynthesis, time.Now())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProfileReport_StructuredIsDetachedFromCaller(t *testing.T) {
	traits := []string{"Calm"}
	report := NewStructuredReport(StructuredProfile{PrimaryTraits: traits}, OriginBaseline, time.Now())
	traits[0] = "Changed"

	p, _ := report.Structured()
	assert.Equal(t, "Calm", p.PrimaryTraits[0])
}

func TestProfileReport_JSONUsesRecordFieldNames(t *testing.T) {
	narrative, err := NewNarrativeReport("the analysis", OriginSynthesis, time.Now())
	require.NoError(t, err)
	data, err := json.Marshal(narrative)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ai_analysis":"the analysis"}`, string(data))

	var decoded ProfileReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	text, ok := decoded.Narrative()
	require.True(t, ok)
	assert.Equal(t, "the analysis", text)

	structured := []byte(`{
		"primary_traits": ["Guarded"],
		"behavioral_patterns": ["Avoids questions"],
		"emotional_triggers": ["Criticism"],
		"background": "Grew up abroad",
		"psychological_markers": {"empathy_level": "Moderate"},
		"communication_style": "Terse",
		"threat_assessment": "Low"
	}`)
	require.NoError(t, json.Unmarshal(structured, &decoded))
	p, ok := decoded.Structured()
	require.True(t, ok)
	assert.Equal(t, "Terse", p.CommunicationStyle)
	assert.Equal(t, "Moderate", p.Markers["empathy_level"])
}

func TestRecord_FromItemsAndBack(t *testing.T) {
	scanned := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	items := []EvidenceItem{
		NewEvidenceItem(SourceDocument, "letter.txt", "Hello world", scanned),
		NewEvidenceItem(SourceWebPage, "https://example.com", "Example page text", scanned),
		NewSocialItem("Mastodon", "jane", "https://mastodon.social/tags/jane", "toot toot", scanned),
	}
	report, err := NewNarrativeReport("analysis", OriginSynthesis, scanned)
	require.NoError(t, err)

	rec := NewRecord("Jane", scanned, items, report)
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"name", "scan_timestamp", "documents", "web_data", "social_media", "profile"} {
		assert.Contains(t, raw, key)
	}

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, scanned.Equal(decoded.ScannedAt()))

	back := decoded.Items()
	require.Len(t, back, 3)
	assert.Equal(t, items[0].Content, back[0].Content)
	assert.Equal(t, SourceWebPage, back[1].Kind)
	assert.Equal(t, "jane", back[2].Query)
	assert.Equal(t, ReportNarrative, decoded.Report().Kind())
}

func TestRecord_WithoutProfile(t *testing.T) {
	rec := NewRecord("Jane", time.Now(), nil, ProfileReport{})
	assert.Nil(t, rec.Profile)
	assert.True(t, rec.Report().IsZero())

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"profile"`)
	assert.Contains(t, string(data), `"documents":[]`)
}
