// Package fields implements the Field Normalizer: canonicalizing
// field names/types coming off OCR or a payload's inline field
// bundle, and the placeholder-sync rules (NPI normalization,
// submission type classification) that drive Case column updates out
// of a document's extracted fields.
package fields

import (
	"strings"

	"github.com/svcops/intake-pipeline/internal/model"
)

// Normalize canonicalizes a raw field bundle: field_type values are
// stripped of any enum-qualifier prefix (e.g. "DocumentFieldType.STRING"
// becomes "STRING"), and names are deduplicated by keeping the entry
// with the highest confidence, a rule first needed for the Portal
// channel's pre-extracted bundle and generalized here to every field
// source.
func Normalize(raw map[string]model.FieldValue) map[string]model.FieldValue {
	out := make(map[string]model.FieldValue, len(raw))
	for name, fv := range raw {
		canonical := strings.TrimSpace(name)
		fv.FieldType = stripEnumPrefix(fv.FieldType)

		existing, ok := out[canonical]
		if !ok || fv.Confidence > existing.Confidence {
			out[canonical] = fv
		}
	}
	return out
}

// stripEnumPrefix drops everything up to and including the last '.' in
// a qualified enum value, e.g. "DocumentFieldType.STRING" -> "STRING".
// Values with no '.' pass through unchanged.
func stripEnumPrefix(fieldType string) string {
	if i := strings.LastIndex(fieldType, "."); i >= 0 {
		return fieldType[i+1:]
	}
	return fieldType
}

// fieldText extracts a field's value as text, used by both the NPI
// and submission-type classifiers below. Non-string values stringify
// via fmt-like best effort is deliberately avoided: only string values
// participate in these classifications.
func fieldText(fields map[string]model.FieldValue, name string) (string, bool) {
	fv, ok := fields[name]
	if !ok {
		return "", false
	}
	s, ok := fv.Value.(string)
	return s, ok
}
