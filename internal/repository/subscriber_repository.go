package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lumenworks/newsletter-api/internal/model"
)

type SubscriberRepo struct{ DB *sql.DB }

func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{DB: db} }

// NewSubscriber carries the validated intake fields into the store.
type NewSubscriber struct {
	Email        string
	FirstName    *string
	Interests    []string
	Source       *string
	ConfirmToken string
}

// UpsertPending creates the subscriber as pending, or resets an existing
// row back to pending with a fresh confirmation token. Re-subscribing
// after an unsubscribe intentionally restarts the double opt-in.
func (r *SubscriberRepo) UpsertPending(ctx context.Context, s NewSubscriber) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO subscribers (email, first_name, interests, source, status, confirm_token, subscribed_at)
		 VALUES (?,?,?,?, 'pending', ?, NOW())
		 ON DUPLICATE KEY UPDATE
		   first_name=VALUES(first_name), interests=VALUES(interests), source=VALUES(source),
		   status='pending', confirm_token=VALUES(confirm_token), subscribed_at=NOW(),
		   confirmed_at=NULL, unsubscribed_at=NULL`,
		strings.ToLower(strings.TrimSpace(s.Email)), s.FirstName,
		strings.Join(s.Interests, ","), s.Source, s.ConfirmToken)
	return err
}

// Confirm consumes a confirmation token atomically: the conditional
// UPDATE only matches while the row is still pending and the stored
// token equals the supplied one, and it clears the token in the same
// statement so a replayed link affects zero rows.
func (r *SubscriberRepo) Confirm(ctx context.Context, email, token string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE subscribers
		 SET status='confirmed', confirmed_at=NOW(), confirm_token=NULL
		 WHERE email=? AND confirm_token=? AND status='pending'`,
		strings.ToLower(strings.TrimSpace(email)), token)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidToken
	}
	return nil
}

// FindConfirmed fetches a subscriber by email, filtered to confirmed status.
func (r *SubscriberRepo) FindConfirmed(ctx context.Context, email string) (model.Subscriber, error) {
	var s model.Subscriber
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,email,first_name,interests,source,status,confirm_token,metadata,
		        email_count,subscribed_at,confirmed_at,unsubscribed_at,last_email_sent_at
		 FROM subscribers WHERE email=? AND status='confirmed' LIMIT 1`,
		strings.ToLower(strings.TrimSpace(email))).
		Scan(&s.ID, &s.Email, &s.FirstName, &s.Interests, &s.Source, &s.Status,
			&s.ConfirmToken, &s.Metadata, &s.EmailCount, &s.SubscribedAt,
			&s.ConfirmedAt, &s.UnsubscribedAt, &s.LastEmailSentAt)
	if err == sql.ErrNoRows {
		return model.Subscriber{}, ErrNotFound
	}
	return s, err
}

// SetUnsubscribeToken merges a fresh opt-out token into the metadata
// column. JSON_SET preserves any other keys already stored there.
func (r *SubscriberRepo) SetUnsubscribeToken(ctx context.Context, email, token string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE subscribers
		 SET metadata=JSON_SET(COALESCE(metadata,'{}'), '$.unsubscribe_token', ?)
		 WHERE email=? AND status='confirmed'`,
		token, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteUnsubscribe finishes the two-step opt-out. Same
// compare-and-clear shape as Confirm: the token in metadata must match
// and the row must still be confirmed, and the token is removed in the
// same statement.
func (r *SubscriberRepo) CompleteUnsubscribe(ctx context.Context, email, token string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE subscribers
		 SET status='unsubscribed', unsubscribed_at=NOW(),
		     metadata=JSON_REMOVE(metadata, '$.unsubscribe_token')
		 WHERE email=? AND status='confirmed'
		   AND JSON_UNQUOTE(JSON_EXTRACT(metadata, '$.unsubscribe_token'))=?`,
		strings.ToLower(strings.TrimSpace(email)), token)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidToken
	}
	return nil
}

// MarkEmailFailed records in metadata that a transactional send failed
// after the row was written, so the partial state is visible instead of
// silent. The flag is informational; nothing in the request path reads it.
func (r *SubscriberRepo) MarkEmailFailed(ctx context.Context, email string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE subscribers
		 SET metadata=JSON_SET(COALESCE(metadata,'{}'), '$.email_failed', true)
		 WHERE email=?`,
		strings.ToLower(strings.TrimSpace(email)))
	return err
}

// BumpEmailStats increments the cumulative send counter and stamps the
// last delivery time. Called after each successful delivery.
func (r *SubscriberRepo) BumpEmailStats(ctx context.Context, email string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE subscribers SET email_count=email_count+1, last_email_sent_at=NOW() WHERE email=?`,
		strings.ToLower(strings.TrimSpace(email)))
	return err
}

// List returns subscribers, optionally filtered by status, newest first.
func (r *SubscriberRepo) List(ctx context.Context, status string, limit, offset int) ([]model.Subscriber, error) {
	query := `SELECT id,email,first_name,interests,source,status,confirm_token,metadata,
	                 email_count,subscribed_at,confirmed_at,unsubscribed_at,last_email_sent_at
	          FROM subscribers`
	args := []any{}
	if status != "" {
		query += " WHERE status=?"
		args = append(args, status)
	}
	query += " ORDER BY subscribed_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Subscriber
	for rows.Next() {
		var s model.Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.FirstName, &s.Interests, &s.Source, &s.Status,
			&s.ConfirmToken, &s.Metadata, &s.EmailCount, &s.SubscribedAt,
			&s.ConfirmedAt, &s.UnsubscribedAt, &s.LastEmailSentAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ConfirmedRecipients returns email and first name of every confirmed
// subscriber, used to fan a campaign out into delivery jobs.
func (r *SubscriberRepo) ConfirmedRecipients(ctx context.Context) ([]model.Subscriber, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT email, first_name FROM subscribers WHERE status='confirmed'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Subscriber
	for rows.Next() {
		var s model.Subscriber
		if err := rows.Scan(&s.Email, &s.FirstName); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountByStatus returns subscriber counts grouped by status.
func (r *SubscriberRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM subscribers GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// BatchUnsubscribe force-unsubscribes the given emails, or every
// active row when all is true. Admin-only escape hatch for suppression
// requests that arrive outside the normal flow. Bounced rows are
// terminal and left alone.
func (r *SubscriberRepo) BatchUnsubscribe(ctx context.Context, emails []string, all bool) (int64, error) {
	if !all && len(emails) == 0 {
		return 0, nil
	}
	query := `UPDATE subscribers SET status='unsubscribed', unsubscribed_at=NOW()
	          WHERE status NOT IN ('unsubscribed','bounced')`
	args := []any{}
	if !all {
		placeholders := strings.TrimRight(strings.Repeat("?,", len(emails)), ",")
		query += " AND email IN (" + placeholders + ")"
		for _, e := range emails {
			args = append(args, strings.ToLower(strings.TrimSpace(e)))
		}
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
