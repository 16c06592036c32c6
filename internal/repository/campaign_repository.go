package repository

import (
	"context"
	"database/sql"

	"github.com/lumenworks/newsletter-api/internal/model"
)

type CampaignRepo struct{ DB *sql.DB }

func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{DB: db} }

// Create inserts a draft campaign and returns its ID.
func (r *CampaignRepo) Create(ctx context.Context, subject, bodyHTML string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO campaigns (subject, body_html, status) VALUES (?,?, 'draft')",
		subject, bodyHTML)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Get fetches a campaign by id.
func (r *CampaignRepo) Get(ctx context.Context, id uint64) (model.Campaign, error) {
	var c model.Campaign
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,subject,body_html,status,recipient_count,sent_count,failed_count,created_at,sent_at
		 FROM campaigns WHERE id=? LIMIT 1`, id).
		Scan(&c.ID, &c.Subject, &c.BodyHTML, &c.Status, &c.RecipientCount,
			&c.SentCount, &c.FailedCount, &c.CreatedAt, &c.SentAt)
	if err == sql.ErrNoRows {
		return model.Campaign{}, ErrNotFound
	}
	return c, err
}

// MarkSending snapshots the recipient count and flips the campaign into
// the sending state once all delivery jobs are queued.
func (r *CampaignRepo) MarkSending(ctx context.Context, id uint64, recipients int) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE campaigns SET status='sending', recipient_count=? WHERE id=? AND status='draft'",
		recipients, id)
	return err
}

// RecordDelivery bumps the sent or failed counter for one finished job,
// then flips the campaign to sent once the counters cover the snapshot.
// Both updates are plain counter arithmetic so concurrent consumers do
// not need coordination.
func (r *CampaignRepo) RecordDelivery(ctx context.Context, id uint64, ok bool) error {
	col := "failed_count"
	if ok {
		col = "sent_count"
	}
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE campaigns SET "+col+"="+col+"+1 WHERE id=?", id); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx,
		`UPDATE campaigns SET status='sent', sent_at=NOW()
		 WHERE id=? AND status='sending' AND sent_count+failed_count>=recipient_count`, id)
	return err
}
