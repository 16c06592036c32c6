package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenworks/newsletter-api/internal/model"
	"github.com/lumenworks/newsletter-api/internal/queue"
	"github.com/lumenworks/newsletter-api/internal/repository"
)

type fakeAdminStore struct {
	listed     []model.Subscriber
	listStatus string
	counts     map[string]int64
	batchN     int64
	batchArgs  []string
	batchAll   bool
	recipients []model.Subscriber
}

func (f *fakeAdminStore) List(_ context.Context, status string, limit, offset int) ([]model.Subscriber, error) {
	f.listStatus = status
	return f.listed, nil
}

func (f *fakeAdminStore) CountByStatus(_ context.Context) (map[string]int64, error) {
	return f.counts, nil
}

func (f *fakeAdminStore) BatchUnsubscribe(_ context.Context, emails []string, all bool) (int64, error) {
	f.batchArgs = emails
	f.batchAll = all
	return f.batchN, nil
}

func (f *fakeAdminStore) ConfirmedRecipients(_ context.Context) ([]model.Subscriber, error) {
	return f.recipients, nil
}

type fakeCampaignStore struct {
	nextID   uint64
	campaign model.Campaign
	getErr   error

	markedID   uint64
	markedRcpt int
}

func (f *fakeCampaignStore) Create(_ context.Context, subject, bodyHTML string) (uint64, error) {
	return f.nextID, nil
}

func (f *fakeCampaignStore) Get(_ context.Context, id uint64) (model.Campaign, error) {
	return f.campaign, f.getErr
}

func (f *fakeCampaignStore) MarkSending(_ context.Context, id uint64, recipients int) error {
	f.markedID = id
	f.markedRcpt = recipients
	return nil
}

func capturePublisher(captured *[]queue.CampaignEmailJob, err error) JobPublisher {
	return func(_ context.Context, jobs []queue.CampaignEmailJob) (int, error) {
		*captured = append(*captured, jobs...)
		if err != nil {
			return len(jobs) / 2, err
		}
		return len(jobs), nil
	}
}

func strPtr(s string) *string { return &s }

func TestCreateCampaignFansOutOneJobPerConfirmedSubscriber(t *testing.T) {
	subs := &fakeAdminStore{recipients: []model.Subscriber{
		{Email: "a@b.com", FirstName: strPtr("Dana")},
		{Email: "c@d.com"},
	}}
	camps := &fakeCampaignStore{nextID: 7}
	var jobs []queue.CampaignEmailJob
	h := NewAdminHandler(subs, camps, capturePublisher(&jobs, nil))

	rec := doJSON(t, h.CreateCampaign, http.MethodPost, "/v1/admin/campaigns",
		`{"subject":"August digest","html":"<p>Hello</p>"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"recipients":2`)

	require.Len(t, jobs, 2)
	seen := map[string]bool{}
	for _, j := range jobs {
		assert.Equal(t, uint64(7), j.CampaignID)
		assert.Equal(t, "August digest", j.Subject)
		assert.NotEmpty(t, j.JobID)
		assert.False(t, seen[j.JobID], "job ids must be unique")
		seen[j.JobID] = true
	}
	assert.Equal(t, "Dana", jobs[0].FirstName)

	assert.Equal(t, uint64(7), camps.markedID)
	assert.Equal(t, 2, camps.markedRcpt, "snapshot matches queued jobs")
}

func TestCreateCampaignPartialPublishRecordsActualCount(t *testing.T) {
	subs := &fakeAdminStore{recipients: []model.Subscriber{
		{Email: "a@b.com"}, {Email: "c@d.com"}, {Email: "e@f.com"}, {Email: "g@h.com"},
	}}
	camps := &fakeCampaignStore{nextID: 3}
	var jobs []queue.CampaignEmailJob
	h := NewAdminHandler(subs, camps, capturePublisher(&jobs, errors.New("broker gone")))

	rec := doJSON(t, h.CreateCampaign, http.MethodPost, "/v1/admin/campaigns",
		`{"subject":"s","html":"<p>x</p>"}`)

	// A broker outage mid-publish is not a request failure; progress
	// tracking converges on what actually made it onto the queue.
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, camps.markedRcpt)
}

func TestCreateCampaignValidation(t *testing.T) {
	h := NewAdminHandler(&fakeAdminStore{}, &fakeCampaignStore{}, nil)

	for name, body := range map[string]string{
		"missing subject": `{"html":"<p>x</p>"}`,
		"blank subject":   `{"subject":"   ","html":"<p>x</p>"}`,
		"missing html":    `{"subject":"s"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(t, h.CreateCampaign, http.MethodPost, "/v1/admin/campaigns", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetCampaignNotFound(t *testing.T) {
	h := NewAdminHandler(&fakeAdminStore{}, &fakeCampaignStore{getErr: repository.ErrNotFound}, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/admin/campaigns/:id")
	c.SetParamNames("id")
	c.SetParamValues("9")

	require.NoError(t, h.GetCampaign(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "campaign not found")
}

func TestListSubscribersRejectsUnknownStatus(t *testing.T) {
	subs := &fakeAdminStore{}
	h := NewAdminHandler(subs, &fakeCampaignStore{}, nil)

	rec := doJSON(t, h.ListSubscribers, http.MethodGet, "/v1/admin/subscribers?status=zombie", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSubscribersOmitsTokensAndMetadata(t *testing.T) {
	meta := `{"unsubscribe_token":"secret"}`
	tok := "abcdef"
	subs := &fakeAdminStore{listed: []model.Subscriber{{
		Email:        "a@b.com",
		Status:       model.StatusPending,
		ConfirmToken: &tok,
		Metadata:     &meta,
		Interests:    "design,marketing",
	}}}
	h := NewAdminHandler(subs, &fakeCampaignStore{}, nil)

	rec := doJSON(t, h.ListSubscribers, http.MethodGet, "/v1/admin/subscribers?status=pending", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusPending, subs.listStatus)
	assert.NotContains(t, rec.Body.String(), "secret")
	assert.NotContains(t, rec.Body.String(), "abcdef")
	assert.Contains(t, rec.Body.String(), `"interests":["design","marketing"]`)
}

func TestBatchUnsubscribeReturnsCount(t *testing.T) {
	subs := &fakeAdminStore{batchN: 3}
	h := NewAdminHandler(subs, &fakeCampaignStore{}, nil)

	rec := doJSON(t, h.BatchUnsubscribe, http.MethodDelete, "/v1/admin/subscribers/batch",
		`{"emails":["a@b.com","c@d.com","e@f.com"]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unsubscribedCount":3`)
	assert.Equal(t, []string{"a@b.com", "c@d.com", "e@f.com"}, subs.batchArgs)
	assert.False(t, subs.batchAll)
}

func TestStatsReportsPerStatusCounts(t *testing.T) {
	subs := &fakeAdminStore{counts: map[string]int64{"confirmed": 12, "pending": 4}}
	h := NewAdminHandler(subs, &fakeCampaignStore{}, nil)

	rec := doJSON(t, h.Stats, http.MethodGet, "/v1/admin/stats", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"confirmed":12`)
	assert.Contains(t, rec.Body.String(), `"pending":4`)
}
