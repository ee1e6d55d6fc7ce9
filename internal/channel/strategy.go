// Package channel implements the Channel Strategy:
// per-channel policy governing whether OCR runs, how fields are
// extracted when it doesn't, and how the coversheet's part type is
// classified.
package channel

import (
	"fmt"

	"github.com/svcops/intake-pipeline/internal/fields"
	"github.com/svcops/intake-pipeline/internal/model"
)

// Strategy is the four-method channel contract. ExtractFieldsFromPayload
// is only meaningful when RunsOCR() is false; callers must not invoke it
// for an OCR-driven channel.
type Strategy interface {
	Channel() model.ChannelType
	RunsOCR() bool
	ExtractFieldsFromPayload(payload *model.ParsedPayload) (map[string]model.FieldValue, error)
	ClassifyPartType(payload *model.ParsedPayload, coversheetType string, ocrFields map[string]model.FieldValue) model.PartType
}

// For builds the strategy for a treated channel type (the
// three variants).
func For(ch model.ChannelType) Strategy {
	switch ch {
	case model.ChannelPortal:
		return portalStrategy{}
	case model.ChannelFax:
		return ocrStrategy{channel: model.ChannelFax}
	default:
		return ocrStrategy{channel: model.ChannelESMD}
	}
}

// ocrStrategy covers ESMD and Fax: both run OCR, have no payload field
// extraction, and classify part type off the OCR result chosen by the
// Document Processor's coversheet selection.
type ocrStrategy struct {
	channel model.ChannelType
}

func (s ocrStrategy) Channel() model.ChannelType { return s.channel }
func (s ocrStrategy) RunsOCR() bool               { return true }

func (s ocrStrategy) ExtractFieldsFromPayload(*model.ParsedPayload) (map[string]model.FieldValue, error) {
	return nil, fmt.Errorf("channel %s does not extract fields from payload", s.channel)
}

func (s ocrStrategy) ClassifyPartType(_ *model.ParsedPayload, coversheetType string, ocrFields map[string]model.FieldValue) model.PartType {
	return ClassifyPart(ClassifierCandidate(coversheetType, ocrFields))
}

// portalStrategy never runs OCR: it pulls a pre-extracted field bundle
// straight off the payload.
type portalStrategy struct{}

func (portalStrategy) Channel() model.ChannelType { return model.ChannelPortal }
func (portalStrategy) RunsOCR() bool               { return false }

// ExtractFieldsFromPayload parses payload.ocr.fields, normalizes each
// field to {value, confidence, field_type: stripped-of-enum-prefix},
// and fails with InvalidPayload when payload.ocr or payload.ocr.fields
// is missing.
func (portalStrategy) ExtractFieldsFromPayload(payload *model.ParsedPayload) (map[string]model.FieldValue, error) {
	if payload == nil || !payload.HasOCRFields() {
		return nil, fmt.Errorf("%w: portal payload missing ocr.fields", model.ErrInvalidPayload)
	}
	raw := make(map[string]model.FieldValue, len(payload.OCR.Fields))
	for name, f := range payload.OCR.Fields {
		raw[name] = f
	}
	return fields.Normalize(raw), nil
}

// ClassifyPartType reads payload.ocr.part_type verbatim when it is one
// of the known enum values; otherwise it delegates to the Part
// Classifier against the payload's own coversheet_type/fields, and on
// any unexpected shape returns UNKNOWN rather than propagating an
// error, returning UNKNOWN on classifier exception.
func (portalStrategy) ClassifyPartType(payload *model.ParsedPayload, coversheetType string, ocrFields map[string]model.FieldValue) (result model.PartType) {
	defer func() {
		if recover() != nil {
			result = model.PartUnknown
		}
	}()

	if payload != nil && payload.OCR != nil {
		switch model.PartType(payload.OCR.PartType) {
		case model.PartA, model.PartB, model.PartUnknown:
			return model.PartType(payload.OCR.PartType)
		}
	}
	return ClassifyPart(ClassifierCandidate(coversheetType, ocrFields))
}
