package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ParsedPayload is the typed deserialization boundary over the
// upstream SourceMessage's schemaless payload. Anything this type
// doesn't name is preserved untouched in Raw so it can round-trip into
// ocr_metadata/extracted_fields bundles without loss (SPEC_FULL.md,
// supplemental feature 1).
type ParsedPayload struct {
	SubmissionMetadata *SubmissionMetadata `json:"submission_metadata,omitempty"`
	Documents          []PayloadDocument   `json:"documents,omitempty"`
	OCR                *PayloadOCR         `json:"ocr,omitempty"`
	PacketID           string              `json:"packet_id,omitempty"`
	TransactionID      string              `json:"transaction_id,omitempty"`
	MessageType        string              `json:"messageType,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type SubmissionMetadata struct {
	CreationTime *time.Time `json:"creationTime,omitempty"`
}

type PayloadDocument struct {
	SourceAbsoluteURL string `json:"source_absolute_url"`
	ContentType       string `json:"content_type,omitempty"`
	FileName          string `json:"file_name,omitempty"`
}

// PayloadOCR is the Portal channel's pre-extracted field bundle,
// carried inline on the source payload rather than produced by our own
// OCR stage (the Portal channel strategy).
type PayloadOCR struct {
	Fields         map[string]PayloadField `json:"fields,omitempty"`
	CoversheetType string                  `json:"coversheet_type,omitempty"`
	PartType       string                  `json:"part_type,omitempty"`
}

// PayloadField is the shape of one field as it arrives on the wire
// inside payload.ocr.fields. It is structurally identical to
// FieldValue (document.go) but kept as a distinct name at the parsing
// boundary, matching Portal's raw field_type values (e.g.
// "DocumentFieldType.STRING") before normalization strips the enum
// prefix.
type PayloadField = FieldValue

// ParsePayload parses the raw payload JSON into a ParsedPayload,
// retaining the original bytes in Raw. Returns InvalidPayload-wrapped
// errors on malformed JSON (Stage A: "fail fast with
// InvalidPayload if malformed").
func ParsePayload(raw []byte) (*ParsedPayload, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	var p ParsedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	p.Raw = append(json.RawMessage(nil), raw...)
	return &p, nil
}

// HasDocuments reports whether the payload names at least one document.
func (p *ParsedPayload) HasDocuments() bool {
	return p != nil && len(p.Documents) > 0
}

// HasOCRFields reports whether the payload carries an inline OCR field
// bundle (the Portal exception during Stage A).
func (p *ParsedPayload) HasOCRFields() bool {
	return p != nil && p.OCR != nil && len(p.OCR.Fields) > 0
}
