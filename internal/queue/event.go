// Package queue defines message payloads exchanged over the message broker
// and the background consumer that delivers campaign email.
package queue

// CampaignQueueName is the durable queue carrying one message per
// campaign recipient.
const CampaignQueueName = "newsletter.campaign.send"

// CampaignEmailJob is published once per confirmed subscriber when an
// admin triggers a campaign broadcast. It carries everything the
// consumer needs to render and deliver without querying the database.
type CampaignEmailJob struct {
	JobID      string `json:"job_id"`
	CampaignID uint64 `json:"campaign_id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name,omitempty"`
	Subject    string `json:"subject"`
	BodyHTML   string `json:"body_html"`
	QueuedAt   string `json:"queued_at"`
}
