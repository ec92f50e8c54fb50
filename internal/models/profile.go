package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ReportKind tells which shape a ProfileReport holds
type ReportKind int

const (
	ReportNone ReportKind = iota
	ReportStructured
	ReportNarrative
)

func (k ReportKind) String() string {
	switch k {
	case ReportStructured:
		return "structured"
	case ReportNarrative:
		return "narrative"
	default:
		return "none"
	}
}

// ReportOrigin records which path produced a report.
type ReportOrigin string

const (
	OriginBaseline  ReportOrigin = "baseline"
	OriginSynthesis ReportOrigin = "synthesis"
	OriginRecord    ReportOrigin = "record"
)

// StructuredProfile is the discrete-field shape of a profile report.
type StructuredProfile struct {
	PrimaryTraits      []string          `json:"primary_traits" yaml:"primary_traits"`
	BehavioralPatterns []string          `json:"behavioral_patterns" yaml:"behavioral_patterns"`
	EmotionalTriggers  []string          `json:"emotional_triggers" yaml:"emotional_triggers"`
	Background         string            `json:"background" yaml:"background"`
	Markers            map[string]string `json:"psychological_markers" yaml:"psychological_markers"`
	CommunicationStyle string            `json:"communication_style" yaml:"communication_style"`
	ThreatAssessment   string            `json:"threat_assessment" yaml:"threat_assessment"`
}

// ProfileReport is the current understanding of a subject. It holds exactly
// one of two shapes: a StructuredProfile or a long-form narrative returned by
// the model. The zero value holds neither.
type ProfileReport struct {
	kind       ReportKind
	structured StructuredProfile
	narrative  string

	Origin      ReportOrigin `json:"-"`
	GeneratedAt time.Time    `json:"-"`
}

// NewStructuredReport wraps a structured profile.
func NewStructuredReport(p StructuredProfile, origin ReportOrigin, at time.Time) ProfileReport {
	return ProfileReport{
		kind:        ReportStructured,
		structured:  p.clone(),
		Origin:      origin,
		GeneratedAt: at,
	}
}

// NewNarrativeReport wraps model text. Blank text is rejected.
func NewNarrativeReport(text string, origin ReportOrigin, at time.Time) (ProfileReport, error) {
	if strings.TrimSpace(text) == "" {
		return ProfileReport{}, fmt.Errorf("%w: empty narrative report", ErrInvalidInput)
	}
	return ProfileReport{
		kind:        ReportNarrative,
		narrative:   text,
		Origin:      origin,
		GeneratedAt: at,
	}, nil
}

// Kind returns which shape the report holds.
func (r ProfileReport) Kind() ReportKind {
	return r.kind
}

// IsZero reports whether the report holds neither shape.
func (r ProfileReport) IsZero() bool {
	return r.kind == ReportNone
}

// Structured returns the structured fields when the report has that shape.
func (r ProfileReport) Structured() (StructuredProfile, bool) {
	if r.kind != ReportStructured {
		return StructuredProfile{}, false
	}
	return r.structured.clone(), true
}

// Narrative returns the long-form text when the report has that shape.
func (r ProfileReport) Narrative() (string, bool) {
	if r.kind != ReportNarrative {
		return "", false
	}
	return r.narrative, true
}

// narrativeJSON is how a narrative report is stored in a record.
type narrativeJSON struct {
	AIAnalysis string `json:"ai_analysis"`
}

// MarshalJSON writes either the structured field set or {"ai_analysis": ...}.
func (r ProfileReport) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case ReportStructured:
		return json.Marshal(r.structured)
	case ReportNarrative:
		return json.Marshal(narrativeJSON{AIAnalysis: r.narrative})
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON picks the shape from the presence of "ai_analysis".
func (r *ProfileReport) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "{}" || trimmed == "" {
		*r = ProfileReport{}
		return nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("failed to decode profile: %w", err)
	}

	if raw, ok := probe["ai_analysis"]; ok {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return fmt.Errorf("failed to decode ai_analysis: %w", err)
		}
		if strings.TrimSpace(text) != "" {
			*r = ProfileReport{kind: ReportNarrative, narrative: text, Origin: OriginRecord}
			return nil
		}
	}

	var p StructuredProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to decode structured profile: %w", err)
	}
	*r = ProfileReport{kind: ReportStructured, structured: p, Origin: OriginRecord}
	return nil
}

func (p StructuredProfile) clone() StructuredProfile {
	out := p
	out.PrimaryTraits = append([]string(nil), p.PrimaryTraits...)
	out.BehavioralPatterns = append([]string(nil), p.BehavioralPatterns...)
	out.EmotionalTriggers = append([]string(nil), p.EmotionalTriggers...)
	if p.Markers != nil {
		out.Markers = make(map[string]string, len(p.Markers))
		for k, v := range p.Markers {
			out.Markers[k] = v
		}
	}
	return out
}
