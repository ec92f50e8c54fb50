package assembler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"profiler-service/internal/models"
)

const boardWidth = 72

var (
	heavyRule = strings.Repeat("=", boardWidth)
	lightRule = strings.Repeat("-", boardWidth)
)

// FormatReport renders a report as a text board for terminals and the
// text profile endpoint. Output depends only on its arguments.
func FormatReport(subject string, report models.ProfileReport, counts models.EvidenceCounts, at time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n    PSYCHOLOGICAL PROFILE: %s\n%s\n", heavyRule, strings.ToUpper(subject), heavyRule)

	switch report.Kind() {
	case models.ReportStructured:
		p, _ := report.Structured()
		writeStructured(&b, p)
	case models.ReportNarrative:
		text, _ := report.Narrative()
		fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(text))
	default:
		b.WriteString("\n  No profile report yet.\n")
	}

	fmt.Fprintf(&b, "\n%s\nEVIDENCE SOURCES ANALYZED:\n%s\n", heavyRule, heavyRule)
	fmt.Fprintf(&b, "  Documents:    %d files\n", counts.Documents)
	fmt.Fprintf(&b, "  Web Sources:  %d URLs\n", counts.WebPages)
	fmt.Fprintf(&b, "  Social Media: %d platforms\n", counts.Social)
	if !report.IsZero() {
		fmt.Fprintf(&b, "\nReport origin: %s\n", report.Origin)
	}
	fmt.Fprintf(&b, "Report generated: %s\n%s\n", at.Format("2006-01-02 15:04:05"), heavyRule)
	return b.String()
}

func writeStructured(b *strings.Builder, p models.StructuredProfile) {
	section(b, "PRIMARY TRAITS")
	for _, t := range p.PrimaryTraits {
		fmt.Fprintf(b, "  * %s\n", t)
	}

	section(b, "BEHAVIORAL PATTERNS")
	for _, pattern := range p.BehavioralPatterns {
		fmt.Fprintf(b, "  -> %s\n", pattern)
	}

	section(b, "EMOTIONAL TRIGGERS")
	for _, t := range p.EmotionalTriggers {
		fmt.Fprintf(b, "  ! %s\n", t)
	}

	section(b, "PSYCHOLOGICAL MARKERS")
	keys := make([]string, 0, len(p.Markers))
	for k := range p.Markers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "  %-22s %s\n", markerLabel(k)+":", p.Markers[k])
	}

	section(b, "COMMUNICATION STYLE")
	fmt.Fprintf(b, "  %s\n", orNA(p.CommunicationStyle))

	section(b, "THREAT ASSESSMENT")
	fmt.Fprintf(b, "  %s\n", orNA(p.ThreatAssessment))

	section(b, "BACKGROUND ANALYSIS")
	fmt.Fprintf(b, "  %s\n", orNA(p.Background))
}

func section(b *strings.Builder, title string) {
	fmt.Fprintf(b, "\n[%s]\n%s\n", title, lightRule)
}

// markerLabel turns "impulse_control" into "Impulse Control".
func markerLabel(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
