package processor

import (
	"time"

	"github.com/svcops/intake-pipeline/internal/model"
)

// submissionTime implements Stage A's per-channel submission
// timestamp extraction: ESMD/Fax read payload.submission_metadata.creationTime,
// Portal reads payload.ocr.fields["Submitted Date"].value, and any channel
// falls back to the source row's created_at, preserving raw timezone.
func submissionTime(ch model.ChannelType, payload *model.ParsedPayload, sourceCreatedAt time.Time) time.Time {
	if payload == nil {
		return sourceCreatedAt
	}

	if ch == model.ChannelPortal {
		if payload.OCR != nil {
			if fv, ok := payload.OCR.Fields["Submitted Date"]; ok {
				if s, ok := fv.Value.(string); ok {
					if t, err := time.Parse(time.RFC3339, s); err == nil {
						return t
					}
				}
			}
		}
		return sourceCreatedAt
	}

	if payload.SubmissionMetadata != nil && payload.SubmissionMetadata.CreationTime != nil {
		return *payload.SubmissionMetadata.CreationTime
	}
	return sourceCreatedAt
}
