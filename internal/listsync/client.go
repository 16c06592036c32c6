// Package listsync is a thin client for the external mailing-list
// provider. The integration is optional and fire-and-forget: callers log
// failures and carry on, the provider's own state is authoritative.
package listsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Syncer mirrors the two list operations the subscription flows need.
type Syncer interface {
	// UpsertMember registers or updates a member on the configured list.
	UpsertMember(ctx context.Context, m Member) error

	// ArchiveMember removes a member from the configured list.
	ArchiveMember(ctx context.Context, email string) error
}

// Member is the provider-side view of a subscriber.
type Member struct {
	Email     string   `json:"email_address"`
	Status    string   `json:"status"` // "pending" until confirmed, then "subscribed"
	FirstName string   `json:"first_name,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// Client talks to a Mailchimp-style members API.
type Client struct {
	baseURL string
	apiKey  string
	listID  string
	client  *http.Client
}

// New creates a list-sync client. Returns nil when baseURL or apiKey is
// empty, which callers treat as "integration not configured".
func New(baseURL, apiKey, listID string) *Client {
	if baseURL == "" || apiKey == "" {
		return nil
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		listID:  listID,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// UpsertMember implements Syncer.UpsertMember.
func (c *Client) UpsertMember(ctx context.Context, m Member) error {
	url := fmt.Sprintf("%s/lists/%s/members", c.baseURL, c.listID)

	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode member: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// ArchiveMember implements Syncer.ArchiveMember.
func (c *Client) ArchiveMember(ctx context.Context, email string) error {
	url := fmt.Sprintf("%s/lists/%s/members/%s", c.baseURL, c.listID, strings.ToLower(email))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to archive member: %w", err)
	}
	defer resp.Body.Close()

	// 404 means the member was never synced; nothing to archive.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}
