package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lumenworks/newsletter-api/internal/model"
	"github.com/lumenworks/newsletter-api/internal/queue"
	"github.com/lumenworks/newsletter-api/internal/repository"
)

// AdminStore is the subscriber surface the admin endpoints need.
type AdminStore interface {
	List(ctx context.Context, status string, limit, offset int) ([]model.Subscriber, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	BatchUnsubscribe(ctx context.Context, emails []string, all bool) (int64, error)
	ConfirmedRecipients(ctx context.Context) ([]model.Subscriber, error)
}

// CampaignStore is the campaign bookkeeping surface.
type CampaignStore interface {
	Create(ctx context.Context, subject, bodyHTML string) (uint64, error)
	Get(ctx context.Context, id uint64) (model.Campaign, error)
	MarkSending(ctx context.Context, id uint64, recipients int) error
}

// JobPublisher fans campaign delivery jobs out to the broker. Injected
// so tests can capture the jobs instead of dialing RabbitMQ.
type JobPublisher func(ctx context.Context, jobs []queue.CampaignEmailJob) (int, error)

// AdminHandler bundles dependencies for the protected admin endpoints.
type AdminHandler struct {
	Subs      AdminStore
	Campaigns CampaignStore
	Publish   JobPublisher
}

func NewAdminHandler(subs AdminStore, campaigns CampaignStore, publish JobPublisher) *AdminHandler {
	return &AdminHandler{Subs: subs, Campaigns: campaigns, Publish: publish}
}

// subscriberView is the wire shape of a subscriber row. Tokens and
// metadata stay server-side.
type subscriberView struct {
	Email           string     `json:"email"`
	FirstName       string     `json:"firstName,omitempty"`
	Interests       []string   `json:"interests,omitempty"`
	Source          string     `json:"source,omitempty"`
	Status          string     `json:"status"`
	EmailCount      uint32     `json:"emailCount"`
	SubscribedAt    time.Time  `json:"subscribedAt"`
	ConfirmedAt     *time.Time `json:"confirmedAt,omitempty"`
	UnsubscribedAt  *time.Time `json:"unsubscribedAt,omitempty"`
	LastEmailSentAt *time.Time `json:"lastEmailSentAt,omitempty"`
}

func viewOf(s model.Subscriber) subscriberView {
	v := subscriberView{
		Email:           s.Email,
		Status:          s.Status,
		EmailCount:      s.EmailCount,
		SubscribedAt:    s.SubscribedAt,
		ConfirmedAt:     s.ConfirmedAt,
		UnsubscribedAt:  s.UnsubscribedAt,
		LastEmailSentAt: s.LastEmailSentAt,
	}
	if s.FirstName != nil {
		v.FirstName = *s.FirstName
	}
	if s.Source != nil {
		v.Source = *s.Source
	}
	if s.Interests != "" {
		v.Interests = strings.Split(s.Interests, ",")
	}
	return v
}

// ListSubscribers returns subscribers, optionally filtered by ?status=,
// paginated with ?limit= and ?offset=.
func (h *AdminHandler) ListSubscribers(c echo.Context) error {
	status := strings.TrimSpace(c.QueryParam("status"))
	switch status {
	case "", model.StatusPending, model.StatusConfirmed, model.StatusUnsubscribed, model.StatusBounced:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	limit := queryInt(c, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	subs, err := h.Subs.List(ctx, status, limit, offset)
	if err != nil {
		c.Logger().Errorf("admin list: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}
	views := make([]subscriberView, 0, len(subs))
	for _, s := range subs {
		views = append(views, viewOf(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"data": views})
}

// Stats returns subscriber counts per lifecycle status.
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	counts, err := h.Subs.CountByStatus(ctx)
	if err != nil {
		c.Logger().Errorf("admin stats: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": counts})
}

// BatchUnsubscribe force-unsubscribes a list of emails, or everyone
// when all=true. Used for suppression requests arriving out of band.
func (h *AdminHandler) BatchUnsubscribe(c echo.Context) error {
	var body struct {
		Emails []string `json:"emails"`
		All    bool     `json:"all"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Subs.BatchUnsubscribe(ctx, body.Emails, body.All)
	if err != nil {
		c.Logger().Errorf("admin batch unsubscribe: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}
	return c.JSON(http.StatusOK, echo.Map{"unsubscribedCount": n})
}

// CreateCampaign creates a broadcast and fans one delivery job per
// confirmed subscriber out to the queue. The recipient snapshot is taken
// at queue time; later subscribes do not join a running campaign.
func (h *AdminHandler) CreateCampaign(c echo.Context) error {
	var body struct {
		Subject string `json:"subject"`
		HTML    string `json:"html"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	subject := strings.TrimSpace(body.Subject)
	if subject == "" || len(subject) > 255 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "subject is required (max 255 chars)"})
	}
	if strings.TrimSpace(body.HTML) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "html body is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	id, err := h.Campaigns.Create(ctx, subject, body.HTML)
	if err != nil {
		c.Logger().Errorf("campaign create: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}

	recipients, err := h.Subs.ConfirmedRecipients(ctx)
	if err != nil {
		c.Logger().Errorf("campaign recipients: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}

	now := time.Now().UTC().Format(time.RFC3339)
	jobs := make([]queue.CampaignEmailJob, 0, len(recipients))
	for _, r := range recipients {
		firstName := ""
		if r.FirstName != nil {
			firstName = *r.FirstName
		}
		jobs = append(jobs, queue.CampaignEmailJob{
			JobID:      uuid.NewString(),
			CampaignID: id,
			Email:      r.Email,
			FirstName:  firstName,
			Subject:    subject,
			BodyHTML:   body.HTML,
			QueuedAt:   now,
		})
	}

	published, err := h.Publish(ctx, jobs)
	if err != nil {
		// Partial fan-out: the snapshot below reflects what actually made
		// it onto the queue, so counters still converge.
		c.Logger().Errorf("campaign publish: %d/%d jobs queued: %v", published, len(jobs), err)
	}
	if err := h.Campaigns.MarkSending(ctx, id, published); err != nil {
		c.Logger().Errorf("campaign mark sending: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":         id,
		"recipients": published,
	})
}

// GetCampaign reports broadcast progress.
func (h *AdminHandler) GetCampaign(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid campaign id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	camp, err := h.Campaigns.Get(ctx, id)
	if err == repository.ErrNotFound {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "campaign not found"})
	}
	if err != nil {
		c.Logger().Errorf("campaign get: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":             camp.ID,
		"subject":        camp.Subject,
		"status":         camp.Status,
		"recipientCount": camp.RecipientCount,
		"sentCount":      camp.SentCount,
		"failedCount":    camp.FailedCount,
		"createdAt":      camp.CreatedAt,
		"sentAt":         camp.SentAt,
	})
}

func queryInt(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}
