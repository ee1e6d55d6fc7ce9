package model

import "time"

// InboxRow is this core's local processing-state record for one
// upstream message. It is the idempotency unit: a unique
// index on MessageID enforces one InboxRow per upstream message.
type InboxRow struct {
	InboxID            int64
	MessageID          int64
	DecisionTrackingID string
	MessageType        MessageType
	SourceCreatedAt    time.Time
	Status             InboxStatus
	AttemptCount       int
	LockedBy           *string
	LockedAt           *time.Time
	NextAttemptAt      time.Time
	LastError          *string
	ChannelTypeID      *int
	MessageTypeID      *int
}

// ChannelType returns the treated channel type (null/unknown -> ESMD).
func (r InboxRow) ChannelType() ChannelType {
	return NormalizeChannelType(r.ChannelTypeID)
}

// Invariant (b): status=PROCESSING => locked_by/locked_at set.
func (r InboxRow) Locked() bool {
	return r.LockedBy != nil && r.LockedAt != nil
}

// ClaimedJob is the result of InboxStore.ClaimOne: a freshly locked
// InboxRow, ready for the Document Processor.
type ClaimedJob struct {
	Row InboxRow
}
