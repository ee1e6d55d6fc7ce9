package fields

import (
	"strings"

	"github.com/svcops/intake-pipeline/internal/model"
)

var expeditedPrefixes = []string{"expedited", "expedite", "urgent", "rush"}
var standardPrefixes = []string{"standard", "normal", "routine", "regular"}

// ClassifySubmissionType implements a case-insensitive
// prefix-match rule over a raw submission-type string. Returns nil
// when the text matches neither family, leaving the Case column
// unchanged.
func ClassifySubmissionType(raw string) *model.SubmissionType {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return nil
	}
	for _, p := range expeditedPrefixes {
		if strings.HasPrefix(text, p) {
			v := model.SubmissionExpedited
			return &v
		}
	}
	for _, p := range standardPrefixes {
		if strings.HasPrefix(text, p) {
			v := model.SubmissionStandard
			return &v
		}
	}
	return nil
}
