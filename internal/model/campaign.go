package model

import "time"

// Campaign broadcast statuses.
const (
	CampaignDraft   = "draft"
	CampaignSending = "sending"
	CampaignSent    = "sent"
)

// Campaign records one admin-triggered broadcast to all confirmed
// subscribers. RecipientCount is snapshotted when the broadcast is
// queued; SentCount and FailedCount are bumped by the queue consumer
// as individual deliveries finish.
type Campaign struct {
	ID             uint64     // campaigns.id
	Subject        string     // campaigns.subject
	BodyHTML       string     // campaigns.body_html
	Status         string     // campaigns.status
	RecipientCount uint32     // campaigns.recipient_count
	SentCount      uint32     // campaigns.sent_count
	FailedCount    uint32     // campaigns.failed_count
	CreatedAt      time.Time  // campaigns.created_at
	SentAt         *time.Time // campaigns.sent_at (nullable)
}
