package model

import "strconv"

// FieldValue is a single normalized extracted field: its value, an
// OCR/payload confidence score, and a canonical type name: Portal
// normalizes each field to {value, confidence, field_type:
// stripped-of-enum-prefix}.
type FieldValue struct {
	Value      interface{} `json:"value"`
	Confidence float64     `json:"confidence"`
	FieldType  string      `json:"field_type"`
}

// PageMeta describes one split page artifact.
type PageMeta struct {
	PageNumber    int     `json:"page_number"`
	BlobPath      string  `json:"blob_path"`
	ContentType   string  `json:"content_type"`
	SizeBytes     int64   `json:"size_bytes"`
	SHA256        string  `json:"sha256"`
	IsCoversheet  bool    `json:"is_coversheet"`
	OCRConfidence float64 `json:"ocr_confidence,omitempty"`
	OCRStatus     string  `json:"ocr_status,omitempty"`
}

// PagesMetadata is the structured split-stage checkpoint.
type PagesMetadata struct {
	Version int        `json:"version"`
	Pages   []PageMeta `json:"pages"`
}

// WellFormed validates the Resume Planner's safety property: pages
// is non-empty and every entry has a positive page_number and a
// non-empty blob path.
func (pm *PagesMetadata) WellFormed() bool {
	if pm == nil || len(pm.Pages) == 0 {
		return false
	}
	for _, p := range pm.Pages {
		if p.PageNumber < 1 {
			return false
		}
		if p.BlobPath == "" {
			return false
		}
	}
	return true
}

// OCRPageResult records the disposition of one page considered during
// Stage D's OCR path: "processed", "skipped (early-stop)", or "error".
type OCRPageResult struct {
	PageNumber int                   `json:"page_number"`
	Fields     map[string]FieldValue `json:"fields,omitempty"`
	Confidence float64               `json:"confidence"`
	DurationMS int64                 `json:"duration_ms"`
	Status     string                `json:"status"`
	SkipReason string                `json:"skip_reason,omitempty"`
}

const (
	OCRPageStatusProcessed = "processed"
	OCRPageStatusSkipped   = "skipped"
	OCRPageStatusError     = "error"
)

// OCRMetadata is the structured OCR-stage checkpoint covering every
// page that was in scope for this document.
type OCRMetadata struct {
	Version              int             `json:"version"`
	Pages                []OCRPageResult `json:"pages"`
	CoversheetPageNumber *int            `json:"coversheet_page_number,omitempty"`
	PartType             PartType        `json:"part_type"`
	Source               string          `json:"source"`
}

const (
	FieldSourcePayloadInitial = "PAYLOAD_INITIAL"
	FieldSourceOCRInitial     = "OCR_INITIAL"
	MetadataSourcePayload     = "payload"
)

// ExtractedFields is the (once-set, nominally immutable) baseline
// field bundle, or the mutable working copy deep-cloned from it
// (Document.extracted_fields / updated_extracted_fields).
type ExtractedFields struct {
	Fields map[string]FieldValue `json:"fields"`
	Source string                `json:"source"`
}

// MissingDocumentsFields is the sentinel extracted_fields bundle
// written when a payload names zero documents (Stage A special case).
func MissingDocumentsFields() *ExtractedFields {
	return &ExtractedFields{Fields: map[string]FieldValue{}, Source: "MISSING_DOCUMENTS"}
}

// EmptyOCRFields is the synthetic bundle written on graceful OCR
// failure: source OCR_INITIAL, zero fields.
func EmptyOCRFields() *ExtractedFields {
	return &ExtractedFields{Fields: map[string]FieldValue{}, Source: FieldSourceOCRInitial}
}

// Clone deep-copies an ExtractedFields bundle, used to seed
// updated_extracted_fields from the immutable baseline.
func (f *ExtractedFields) Clone() *ExtractedFields {
	if f == nil {
		return nil
	}
	var out = &ExtractedFields{Fields: make(map[string]FieldValue, len(f.Fields)), Source: f.Source}
	for k, v := range f.Fields {
		out.Fields[k] = v
	}
	return out
}

// Document is the single consolidated artifact owned by a Case.
// At most one Document exists per CaseID (unique index).
type Document struct {
	DocumentID             int64
	CaseID                 int64
	ExternalID             string
	FileName               string
	ConsolidatedBlobPath   *string
	FileSizeBytes          int64
	ProcessingPath         string
	PageCount              int
	PagesMetadata          *PagesMetadata
	OCRMetadata            *OCRMetadata
	ExtractedFields        *ExtractedFields
	UpdatedExtractedFields *ExtractedFields
	SplitStatus            StageStatus
	OCRStatus              StageStatus
	CoversheetPageNumber   *int
	PartType               PartType
	ManualReviewRequired   bool
}

// ExternalIDFor derives Document.external_id deterministically from
// its owning case: "DOC-<case_id>".
func ExternalIDFor(caseID int64) string {
	return "DOC-" + strconv.FormatInt(caseID, 10)
}
