package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenworks/newsletter-api/internal/config"
	"github.com/lumenworks/newsletter-api/internal/listsync"
	"github.com/lumenworks/newsletter-api/internal/mailer"
	"github.com/lumenworks/newsletter-api/internal/model"
	"github.com/lumenworks/newsletter-api/internal/repository"
)

// ----- fakes -----

type fakeStore struct {
	upserts     []repository.NewSubscriber
	confirmCall int
	confirmErr  error
	confirmed   []string // "email token" pairs seen by Confirm

	findSub model.Subscriber
	findErr error

	setTokenEmail string
	setTokenValue string
	setTokenErr   error

	completeErr  error
	completed    []string
	failedEmails []string
}

func (f *fakeStore) UpsertPending(_ context.Context, s repository.NewSubscriber) error {
	f.upserts = append(f.upserts, s)
	return nil
}

func (f *fakeStore) Confirm(_ context.Context, email, token string) error {
	f.confirmCall++
	f.confirmed = append(f.confirmed, email+" "+token)
	return f.confirmErr
}

func (f *fakeStore) FindConfirmed(_ context.Context, email string) (model.Subscriber, error) {
	return f.findSub, f.findErr
}

func (f *fakeStore) SetUnsubscribeToken(_ context.Context, email, token string) error {
	f.setTokenEmail = email
	f.setTokenValue = token
	return f.setTokenErr
}

func (f *fakeStore) CompleteUnsubscribe(_ context.Context, email, token string) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completed = append(f.completed, email+" "+token)
	return nil
}

func (f *fakeStore) MarkEmailFailed(_ context.Context, email string) error {
	f.failedEmails = append(f.failedEmails, email)
	return nil
}

type sentMail struct {
	kind string
	to   string
	wel  mailer.WelcomeData
	not  mailer.SignupNoticeData
	uns  mailer.UnsubscribeData
}

type fakeMailer struct {
	sent    []sentMail
	failOn  string // kind that should error
	failErr error
}

func (f *fakeMailer) SendWelcome(to string, d mailer.WelcomeData) error {
	if f.failOn == "welcome" {
		return f.failErr
	}
	f.sent = append(f.sent, sentMail{kind: "welcome", to: to, wel: d})
	return nil
}

func (f *fakeMailer) SendSignupNotice(to string, d mailer.SignupNoticeData) error {
	if f.failOn == "notice" {
		return f.failErr
	}
	f.sent = append(f.sent, sentMail{kind: "notice", to: to, not: d})
	return nil
}

func (f *fakeMailer) SendUnsubscribeLink(to string, d mailer.UnsubscribeData) error {
	if f.failOn == "unsubscribe" {
		return f.failErr
	}
	f.sent = append(f.sent, sentMail{kind: "unsubscribe", to: to, uns: d})
	return nil
}

type fakeSyncer struct {
	upserts  []listsync.Member
	archived []string
}

func (f *fakeSyncer) UpsertMember(_ context.Context, m listsync.Member) error {
	f.upserts = append(f.upserts, m)
	return nil
}

func (f *fakeSyncer) ArchiveMember(_ context.Context, email string) error {
	f.archived = append(f.archived, email)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		SiteURL:      "https://www.lumenworks.dev",
		PublicAPIURL: "https://api.lumenworks.dev",
		OpsEmail:     "ops@lumenworks.dev",
	}
}

func doJSON(t *testing.T, h echo.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec
}

// ----- intake -----

func TestSubscribeSendsWelcomeAndInternalNotice(t *testing.T) {
	store := &fakeStore{}
	mail := &fakeMailer{}
	h := NewNewsletterHandler(testConfig(), store, mail, nil)

	rec := doJSON(t, h.Subscribe, http.MethodPost, "/v1/newsletter/subscribe",
		`{"email":"a@b.com","firstName":"Dana","interests":["web-development"]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
	assert.NotContains(t, rec.Body.String(), "token", "no token may leak to the caller")

	require.Len(t, store.upserts, 1)
	up := store.upserts[0]
	assert.Equal(t, "a@b.com", up.Email)
	require.NotNil(t, up.FirstName)
	assert.Equal(t, "Dana", *up.FirstName)
	assert.NotEmpty(t, up.ConfirmToken)

	require.Len(t, mail.sent, 2, "exactly two outbound sends: welcome + internal notice")
	welcome := mail.sent[0]
	assert.Equal(t, "welcome", welcome.kind)
	assert.Equal(t, "a@b.com", welcome.to)
	assert.Equal(t, "Dana", welcome.wel.FirstName)
	assert.Contains(t, welcome.wel.ConfirmURL, "token="+up.ConfirmToken)
	assert.Contains(t, welcome.wel.ConfirmURL, "https://api.lumenworks.dev/v1/newsletter/confirm")

	notice := mail.sent[1]
	assert.Equal(t, "notice", notice.kind)
	assert.Equal(t, "ops@lumenworks.dev", notice.to)
	assert.Equal(t, "a@b.com", notice.not.Email)
}

func TestSubscribeRegistersWithListProvider(t *testing.T) {
	store := &fakeStore{}
	list := &fakeSyncer{}
	h := NewNewsletterHandler(testConfig(), store, &fakeMailer{}, list)

	rec := doJSON(t, h.Subscribe, http.MethodPost, "/v1/newsletter/subscribe",
		`{"email":"a@b.com","interests":["design","design"]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, list.upserts, 1)
	assert.Equal(t, "a@b.com", list.upserts[0].Email)
	assert.Equal(t, "pending", list.upserts[0].Status)
	assert.Equal(t, []string{"design"}, list.upserts[0].Tags, "duplicate tags collapse")
}

func TestSubscribeRejectsBeforeAnyExternalCall(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed email", `{"email":"not-an-email"}`},
		{"empty email", `{"email":""}`},
		{"display-name email", `{"email":"Dana <a@b.com>"}`},
		{"unknown interest", `{"email":"a@b.com","interests":["cooking"]}`},
		{"long first name", `{"email":"a@b.com","firstName":"` + strings.Repeat("x", 51) + `"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{}
			mail := &fakeMailer{}
			h := NewNewsletterHandler(testConfig(), store, mail, nil)

			rec := doJSON(t, h.Subscribe, http.MethodPost, "/v1/newsletter/subscribe", tc.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, store.upserts, "no store write before validation passes")
			assert.Empty(t, mail.sent, "no email send before validation passes")
		})
	}
}

func TestSubscribeMailFailureMarksRecordAndReturnsGenericError(t *testing.T) {
	store := &fakeStore{}
	mail := &fakeMailer{failOn: "welcome", failErr: errors.New("smtp down")}
	h := NewNewsletterHandler(testConfig(), store, mail, nil)

	rec := doJSON(t, h.Subscribe, http.MethodPost, "/v1/newsletter/subscribe", `{"email":"a@b.com"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), genericErrMsg)
	assert.NotContains(t, rec.Body.String(), "smtp", "internal detail must not leak")
	assert.Equal(t, []string{"a@b.com"}, store.failedEmails)
}

// ----- confirmation -----

func TestConfirmPostConsumesToken(t *testing.T) {
	store := &fakeStore{}
	h := NewNewsletterHandler(testConfig(), store, &fakeMailer{}, nil)

	rec := doJSON(t, h.Confirm, http.MethodPost, "/v1/newsletter/confirm",
		`{"token":"abc123","email":"a@b.com"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
	assert.Equal(t, []string{"a@b.com abc123"}, store.confirmed)
}

func TestConfirmPostReportsFieldDetails(t *testing.T) {
	store := &fakeStore{}
	h := NewNewsletterHandler(testConfig(), store, &fakeMailer{}, nil)

	rec := doJSON(t, h.Confirm, http.MethodPost, "/v1/newsletter/confirm",
		`{"token":"","email":"nope"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "details")
	assert.Contains(t, rec.Body.String(), "token")
	assert.Contains(t, rec.Body.String(), "email")
	assert.Zero(t, store.confirmCall, "validation failures never reach the store")
}

func TestConfirmPostRejectsReplayedToken(t *testing.T) {
	store := &fakeStore{confirmErr: repository.ErrInvalidToken}
	h := NewNewsletterHandler(testConfig(), store, &fakeMailer{}, nil)

	rec := doJSON(t, h.Confirm, http.MethodPost, "/v1/newsletter/confirm",
		`{"token":"stale","email":"a@b.com"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid or expired")
}

func TestConfirmLinkMissingParamsRedirectsWithoutStoreAccess(t *testing.T) {
	for _, target := range []string{
		"/v1/newsletter/confirm",
		"/v1/newsletter/confirm?token=abc",
		"/v1/newsletter/confirm?email=a@b.com",
	} {
		store := &fakeStore{}
		h := NewNewsletterHandler(testConfig(), store, &fakeMailer{}, nil)

		rec := doJSON(t, h.ConfirmLink, http.MethodGet, target, "")

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Contains(t, rec.Header().Get(echo.HeaderLocation), "error=invalid-link")
		assert.Zero(t, store.confirmCall, "missing params must never reach the store")
	}
}

func TestConfirmLinkRedirectsToConfirmationPage(t *testing.T) {
	store := &fakeStore{}
	list := &fakeSyncer{}
	h := NewNewsletterHandler(testConfig(), store, &fakeMailer{}, list)

	rec := doJSON(t, h.ConfirmLink, http.MethodGet,
		"/v1/newsletter/confirm?token=abc123&email=a@b.com", "")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://www.lumenworks.dev/newsletter/confirmed", rec.Header().Get(echo.HeaderLocation))
	require.Len(t, list.upserts, 1)
	assert.Equal(t, "subscribed", list.upserts[0].Status)
}

// ----- unsubscribe -----

func confirmedSub(email, firstName string) model.Subscriber {
	return model.Subscriber{Email: email, FirstName: &firstName, Status: model.StatusConfirmed}
}

func TestUnsubscribeUnknownEmailIsDistinctNotFound(t *testing.T) {
	store := &fakeStore{findErr: repository.ErrNotFound}
	mail := &fakeMailer{}
	h := NewNewsletterHandler(testConfig(), store, mail, nil)

	rec := doJSON(t, h.Unsubscribe, http.MethodPost, "/v1/newsletter/unsubscribe",
		`{"email":"missing@x.com"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email not found in our newsletter list.")
	assert.Empty(t, store.setTokenValue, "no token generation on not-found")
	assert.Empty(t, mail.sent, "no email send on not-found")
}

func TestUnsubscribeIssuesTokenAndEmailsRemovalLink(t *testing.T) {
	store := &fakeStore{findSub: confirmedSub("a@b.com", "Dana")}
	mail := &fakeMailer{}
	h := NewNewsletterHandler(testConfig(), store, mail, nil)

	rec := doJSON(t, h.Unsubscribe, http.MethodPost, "/v1/newsletter/unsubscribe",
		`{"email":"a@b.com"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@b.com", store.setTokenEmail)
	assert.NotEmpty(t, store.setTokenValue)

	require.Len(t, mail.sent, 1, "exactly one email send")
	sent := mail.sent[0]
	assert.Equal(t, "unsubscribe", sent.kind)
	assert.Equal(t, "a@b.com", sent.to)
	assert.Contains(t, sent.uns.UnsubscribeURL, "token="+store.setTokenValue)
	assert.Contains(t, sent.uns.UnsubscribeURL, "https://api.lumenworks.dev/v1/newsletter/unsubscribe")
}

func TestUnsubscribeLinkCompletesAndArchives(t *testing.T) {
	store := &fakeStore{}
	list := &fakeSyncer{}
	h := NewNewsletterHandler(testConfig(), store, &fakeMailer{}, list)

	rec := doJSON(t, h.UnsubscribeLink, http.MethodGet,
		"/v1/newsletter/unsubscribe?token=tok1&email=a@b.com", "")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://www.lumenworks.dev/newsletter/goodbye", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, []string{"a@b.com tok1"}, store.completed)
	assert.Equal(t, []string{"a@b.com"}, list.archived)
}

func TestUnsubscribeLinkRejectsWrongToken(t *testing.T) {
	store := &fakeStore{completeErr: repository.ErrInvalidToken}
	h := NewNewsletterHandler(testConfig(), store, &fakeMailer{}, nil)

	rec := doJSON(t, h.UnsubscribeLink, http.MethodGet,
		"/v1/newsletter/unsubscribe?token=wrong&email=a@b.com", "")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderLocation), "error=invalid-link")
}

// ----- options -----

func TestOptionsListsFixedInterests(t *testing.T) {
	h := NewNewsletterHandler(testConfig(), &fakeStore{}, &fakeMailer{}, nil)

	rec := doJSON(t, h.Options, http.MethodGet, "/v1/newsletter/options", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	for _, interest := range model.AllowedInterests {
		assert.Contains(t, rec.Body.String(), interest)
	}
}
