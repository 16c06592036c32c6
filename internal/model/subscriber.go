package model

import "time"

// Subscriber lifecycle statuses. A subscriber enters as PENDING, becomes
// CONFIRMED after following the emailed confirmation link, and ends up
// UNSUBSCRIBED after completing the two-step opt-out. BOUNCED is terminal
// and only ever set from delivery-failure signals outside this service.
const (
	StatusPending      = "pending"
	StatusConfirmed    = "confirmed"
	StatusUnsubscribed = "unsubscribed"
	StatusBounced      = "bounced"
)

// Interests a subscriber may pick at signup. The set is fixed; anything
// outside of it is rejected during intake validation.
var AllowedInterests = []string{
	"web-development",
	"design",
	"marketing",
	"company-news",
	"technology",
}

// Subscriber mirrors the 'subscribers' table.
//
// Fields:
//  ID              – primary key identifier.
//  Email           – unique, stored lowercase.
//  FirstName       – optional display name used in email greetings.
//  Interests       – comma-joined subset of AllowedInterests.
//  Source          – optional acquisition source ("footer", "blog", ...).
//  Status          – one of the Status* constants above.
//  ConfirmToken    – single-use opaque token, cleared on confirmation.
//  Metadata        – auxiliary JSON blob (unsubscribe_token, email_failed).
//  EmailCount      – cumulative transactional + campaign sends.
//  SubscribedAt    – when the intake request was accepted.
//  ConfirmedAt     – when the confirmation token was consumed.
//  UnsubscribedAt  – when the opt-out completed.
//  LastEmailSentAt – last successful delivery to this address.
type Subscriber struct {
	ID              uint64     // subscribers.id
	Email           string     // subscribers.email
	FirstName       *string    // subscribers.first_name (nullable)
	Interests       string     // subscribers.interests
	Source          *string    // subscribers.source (nullable)
	Status          string     // subscribers.status
	ConfirmToken    *string    // subscribers.confirm_token (nullable)
	Metadata        *string    // subscribers.metadata (nullable JSON)
	EmailCount      uint32     // subscribers.email_count
	SubscribedAt    time.Time  // subscribers.subscribed_at
	ConfirmedAt     *time.Time // subscribers.confirmed_at (nullable)
	UnsubscribedAt  *time.Time // subscribers.unsubscribed_at (nullable)
	LastEmailSentAt *time.Time // subscribers.last_email_sent_at (nullable)
}

// ValidInterest reports whether a single interest value belongs to the
// fixed set offered at signup.
func ValidInterest(v string) bool {
	for _, a := range AllowedInterests {
		if v == a {
			return true
		}
	}
	return false
}
