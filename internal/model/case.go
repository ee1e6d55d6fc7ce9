package model

import "time"

// Case is the per-decision_tracking_id aggregate. At most
// one Case exists per DecisionTrackingID (unique index); ExternalID is
// globally unique.
type Case struct {
	CaseID             int64
	ExternalID         string
	DecisionTrackingID string
	ChannelSpecificID  *string
	ReceivedDate       time.Time
	DueDate            time.Time
	SubmissionType     *SubmissionType
	ChannelTypeID      *int
	DetailedStatus     string

	BeneficiaryName *string
	BeneficiaryMBI  *string
	ProviderName    *string
	ProviderNPI     *string
}

// NewCasePlaceholders returns the TBD-sentinel values a freshly created
// Case carries until Stage D's extraction sync overwrites them (spec
// §3 Case lifecycle: "placeholder fields for beneficiary/provider").
func NewCasePlaceholders() (beneficiaryName, beneficiaryMBI, providerName, providerNPI string) {
	return TBDSentinel, TBDSentinel, TBDSentinel, TBDSentinel
}

// ComputeDueDate derives due_date from a received timestamp and
// submission type classification: received date normalized to
// midnight UTC, plus 48h for Expedited or 72h otherwise, itself
// normalized to midnight (Case.due_date).
func ComputeDueDate(received time.Time, submissionType *SubmissionType) time.Time {
	var midnight = time.Date(received.Year(), received.Month(), received.Day(), 0, 0, 0, 0, time.UTC)

	var offset = 72 * time.Hour
	if submissionType != nil && *submissionType == SubmissionExpedited {
		offset = 48 * time.Hour
	}

	var due = midnight.Add(offset)
	return time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
}

// ChannelSpecificIDFor derives Case.channel_specific_id per channel
// Portal -> payload's packet id, ESMD -> payload's
// transaction id, Fax -> nil.
func ChannelSpecificIDFor(channel ChannelType, payload *ParsedPayload) *string {
	if payload == nil {
		return nil
	}
	switch channel {
	case ChannelPortal:
		if payload.PacketID != "" {
			return &payload.PacketID
		}
	case ChannelESMD:
		if payload.TransactionID != "" {
			return &payload.TransactionID
		}
	}
	return nil
}
