package channel

import (
	"regexp"
	"strings"

	"github.com/svcops/intake-pipeline/internal/model"
)

var collapseWhitespace = regexp.MustCompile(`\s+`)

// ClassifyPart implements the Part Classifier rule:
// normalize candidate text to lowercase with collapsed whitespace;
// PART_A wins on substring "medicare part a", PART_B on "medicare
// part b", otherwise UNKNOWN. When both substrings are present, PART_A
// wins (the documented tie-break).
func ClassifyPart(candidate string) model.PartType {
	normalized := collapseWhitespace.ReplaceAllString(strings.ToLower(candidate), " ")
	normalized = strings.TrimSpace(normalized)

	hasA := strings.Contains(normalized, "medicare part a")
	hasB := strings.Contains(normalized, "medicare part b")

	switch {
	case hasA:
		return model.PartA
	case hasB:
		return model.PartB
	default:
		return model.PartUnknown
	}
}

// ClassifierCandidate picks the text the classifier runs over: the
// OCR result's coversheet_type when present, else fields.title.value
// (the Part Classifier rule).
func ClassifierCandidate(coversheetType string, fields map[string]model.FieldValue) string {
	if coversheetType != "" {
		return coversheetType
	}
	if fv, ok := fields["title"]; ok {
		if s, ok := fv.Value.(string); ok {
			return s
		}
	}
	return ""
}
