// Package assembler renders evidence and profile reports into bounded
// prompt text. All budgets are counted in characters (code points), not
// tokens, and every cut is a hard cut.
package assembler

import (
	"fmt"
	"strings"

	"profiler-service/internal/models"
)

const (
	// SynthesisBudget caps the rendered evidence block in a synthesis prompt.
	SynthesisBudget = 20000
	// DocumentExcerpt is taken from each document when seeding a persona.
	DocumentExcerpt = 2000
	// SourceBudget caps the concatenated document excerpts.
	SourceBudget = 3000
	// ReportExcerpt is taken from a narrative report when seeding a persona.
	ReportExcerpt = 2000
)

// KindLabel is the block heading used for an item's kind.
func KindLabel(item models.EvidenceItem) string {
	switch item.Kind {
	case models.SourceDocument:
		return "DOCUMENT"
	case models.SourceWebPage:
		return "WEB SOURCE"
	case models.SourceSocial:
		return fmt.Sprintf("SOCIAL MEDIA (%s)", item.Label)
	default:
		return strings.ToUpper(string(item.Kind))
	}
}

// Block renders one item as a labelled evidence block. Social results are
// labelled with the query that produced them.
func Block(item models.EvidenceItem) string {
	label := item.Label
	if item.Kind == models.SourceSocial {
		label = item.Query
	}
	return fmt.Sprintf("\n\n=== %s: %s ===\n%s\n", KindLabel(item), label, item.Content)
}

// RenderEvidence concatenates the blocks of items in order and cuts the
// result at SynthesisBudget characters.
func RenderEvidence(items []models.EvidenceItem) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(Block(item))
	}
	return models.TruncateChars(sb.String(), SynthesisBudget)
}

// SourceExcerpts joins the leading DocumentExcerpt characters of every
// document, each wrapped in newlines, cut at SourceBudget characters.
func SourceExcerpts(items []models.EvidenceItem) string {
	var sb strings.Builder
	for _, item := range items {
		if item.Kind != models.SourceDocument {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(models.TruncateChars(item.Content, DocumentExcerpt))
		sb.WriteString("\n")
	}
	return models.TruncateChars(sb.String(), SourceBudget)
}
