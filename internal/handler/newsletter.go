package handler

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lumenworks/newsletter-api/internal/config"
	"github.com/lumenworks/newsletter-api/internal/listsync"
	"github.com/lumenworks/newsletter-api/internal/mailer"
	"github.com/lumenworks/newsletter-api/internal/model"
	"github.com/lumenworks/newsletter-api/internal/repository"
	"github.com/lumenworks/newsletter-api/internal/utils"
)

// genericErrMsg is what callers see for any upstream failure. Internal
// detail stays in the server log.
const genericErrMsg = "Something went wrong. Please try again later."

// notFoundMsg distinguishes an unsubscribe request for an unknown or
// unconfirmed address from a generic failure.
const notFoundMsg = "Email not found in our newsletter list."

// SubscriberStore is the persistence surface the newsletter flows need.
// The concrete implementation is repository.SubscriberRepo; tests plug
// in an in-memory fake.
type SubscriberStore interface {
	UpsertPending(ctx context.Context, s repository.NewSubscriber) error
	Confirm(ctx context.Context, email, token string) error
	FindConfirmed(ctx context.Context, email string) (model.Subscriber, error)
	SetUnsubscribeToken(ctx context.Context, email, token string) error
	CompleteUnsubscribe(ctx context.Context, email, token string) error
	MarkEmailFailed(ctx context.Context, email string) error
}

// Mailer is the transactional delivery surface, implemented by
// mailer.Sender.
type Mailer interface {
	SendWelcome(to string, d mailer.WelcomeData) error
	SendSignupNotice(to string, d mailer.SignupNoticeData) error
	SendUnsubscribeLink(to string, d mailer.UnsubscribeData) error
}

// NewsletterHandler bundles dependencies for the public subscription
// lifecycle endpoints. List is nil when the mailing-list integration is
// not configured.
type NewsletterHandler struct {
	Cfg   config.Config
	Store SubscriberStore
	Mail  Mailer
	List  listsync.Syncer
}

func NewNewsletterHandler(cfg config.Config, store SubscriberStore, mail Mailer, list listsync.Syncer) *NewsletterHandler {
	return &NewsletterHandler{Cfg: cfg, Store: store, Mail: mail, List: list}
}

// ----- DTOs -----

type subscribeReq struct {
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	Interests []string `json:"interests"`
	Source    string   `json:"source"`
}

type confirmReq struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

type unsubscribeReq struct {
	Email string `json:"email"`
}

// Subscribe handles intake: validate, write the pending row, register
// with the mailing-list provider, and send the welcome + internal
// notice emails. Validation runs before any external call so a
// malformed request never reaches the store or the provider.
func (h *NewsletterHandler) Subscribe(c echo.Context) error {
	var req subscribeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	email, ok := normalizeEmail(req.Email)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "a valid email address is required"})
	}
	firstName := strings.TrimSpace(req.FirstName)
	if len(firstName) > 50 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "firstName must be 50 characters or fewer"})
	}
	interests, bad := normalizeInterests(req.Interests)
	if bad != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid interest: " + bad})
	}
	source := strings.TrimSpace(req.Source)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	token, err := utils.NewOpaqueToken()
	if err != nil {
		c.Logger().Errorf("subscribe: token generation failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}

	sub := repository.NewSubscriber{Email: email, Interests: interests, ConfirmToken: token}
	if firstName != "" {
		sub.FirstName = &firstName
	}
	if source != "" {
		sub.Source = &source
	}
	if err := h.Store.UpsertPending(ctx, sub); err != nil {
		c.Logger().Errorf("subscribe: store write failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}

	if h.List != nil {
		err := h.List.UpsertMember(ctx, listsync.Member{
			Email:     email,
			Status:    "pending",
			FirstName: firstName,
			Tags:      interests,
		})
		if err != nil {
			c.Logger().Errorf("subscribe: list sync failed: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
		}
	}

	confirmURL, err := buildLinkURL(h.Cfg.PublicAPIURL, "/v1/newsletter/confirm", token, email)
	if err != nil {
		c.Logger().Errorf("subscribe: confirm link build failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}

	if err := h.Mail.SendWelcome(email, mailer.WelcomeData{
		FirstName:  firstName,
		ConfirmURL: confirmURL,
		Interests:  interests,
	}); err != nil {
		// The row is already written; record the partial state instead of
		// pretending nothing happened.
		c.Logger().Errorf("subscribe: welcome email failed: %v", err)
		_ = h.Store.MarkEmailFailed(ctx, email)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}

	if err := h.Mail.SendSignupNotice(h.Cfg.OpsEmail, mailer.SignupNoticeData{
		Email:     email,
		FirstName: firstName,
		Source:    source,
		Interests: interests,
	}); err != nil {
		c.Logger().Errorf("subscribe: signup notice failed: %v", err)
		_ = h.Store.MarkEmailFailed(ctx, email)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Thanks for subscribing! Please check your inbox to confirm your email address.",
	})
}

// Confirm handles the JSON form of confirmation.
func (h *NewsletterHandler) Confirm(c echo.Context) error {
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	details := echo.Map{}
	email, ok := normalizeEmail(req.Email)
	if !ok {
		details["email"] = "a valid email address is required"
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		details["token"] = "token is required"
	}
	if len(details) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": details})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	switch err := h.confirm(ctx, email, token); err {
	case nil:
		return c.JSON(http.StatusOK, echo.Map{
			"success": true,
			"message": "Your subscription is confirmed. Welcome aboard!",
		})
	case repository.ErrInvalidToken:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid or expired confirmation link."})
	default:
		c.Logger().Errorf("confirm: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}
}

// ConfirmLink handles the emailed confirmation link. Errors become
// redirects back to the site's confirmation page; a request missing
// either query parameter never reaches the store.
func (h *NewsletterHandler) ConfirmLink(c echo.Context) error {
	page := h.Cfg.SiteURL + "/newsletter/confirmed"

	token := strings.TrimSpace(c.QueryParam("token"))
	email, ok := normalizeEmail(c.QueryParam("email"))
	if token == "" || !ok {
		return c.Redirect(http.StatusFound, page+"?error=invalid-link")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	switch err := h.confirm(ctx, email, token); err {
	case nil:
		return c.Redirect(http.StatusFound, page)
	case repository.ErrInvalidToken:
		return c.Redirect(http.StatusFound, page+"?error=invalid-link")
	default:
		c.Logger().Errorf("confirm link: %v", err)
		return c.Redirect(http.StatusFound, page+"?error=server-error")
	}
}

// confirm consumes the token and, when the transition succeeds, promotes
// the provider-side member from pending to subscribed. The provider call
// is advisory; its failure does not undo a confirmed subscription.
func (h *NewsletterHandler) confirm(ctx context.Context, email, token string) error {
	if err := h.Store.Confirm(ctx, email, token); err != nil {
		return err
	}
	if h.List != nil {
		if err := h.List.UpsertMember(ctx, listsync.Member{Email: email, Status: "subscribed"}); err != nil {
			// Log-only: the store already holds the truth.
			log.Printf("confirm: list sync failed: %v", err)
		}
	}
	return nil
}

// Unsubscribe handles phase one of the opt-out: verify the address is a
// confirmed subscriber, issue a fresh single-use token into its
// metadata, and email a removal link.
func (h *NewsletterHandler) Unsubscribe(c echo.Context) error {
	var req unsubscribeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email, ok := normalizeEmail(req.Email)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "a valid email address is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sub, err := h.Store.FindConfirmed(ctx, email)
	if err == repository.ErrNotFound {
		return c.JSON(http.StatusNotFound, echo.Map{"error": notFoundMsg})
	}
	if err != nil {
		c.Logger().Errorf("unsubscribe: lookup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}

	token, err := utils.NewOpaqueToken()
	if err != nil {
		c.Logger().Errorf("unsubscribe: token generation failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}
	if err := h.Store.SetUnsubscribeToken(ctx, email, token); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": notFoundMsg})
		}
		c.Logger().Errorf("unsubscribe: token store failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}

	linkURL, err := buildLinkURL(h.Cfg.PublicAPIURL, "/v1/newsletter/unsubscribe", token, email)
	if err != nil {
		c.Logger().Errorf("unsubscribe: link build failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}

	firstName := ""
	if sub.FirstName != nil {
		firstName = *sub.FirstName
	}
	if err := h.Mail.SendUnsubscribeLink(email, mailer.UnsubscribeData{
		FirstName:      firstName,
		UnsubscribeURL: linkURL,
	}); err != nil {
		c.Logger().Errorf("unsubscribe: email failed: %v", err)
		_ = h.Store.MarkEmailFailed(ctx, email)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericErrMsg})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Check your inbox for a link to confirm your unsubscribe request.",
	})
}

// UnsubscribeLink handles phase two: the emailed removal link. Mirrors
// ConfirmLink — atomic token consumption, then redirect.
func (h *NewsletterHandler) UnsubscribeLink(c echo.Context) error {
	page := h.Cfg.SiteURL + "/newsletter/goodbye"

	token := strings.TrimSpace(c.QueryParam("token"))
	email, ok := normalizeEmail(c.QueryParam("email"))
	if token == "" || !ok {
		return c.Redirect(http.StatusFound, page+"?error=invalid-link")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	switch err := h.Store.CompleteUnsubscribe(ctx, email, token); err {
	case nil:
		if h.List != nil {
			if err := h.List.ArchiveMember(ctx, email); err != nil {
				c.Logger().Warnf("unsubscribe link: list archive failed: %v", err)
			}
		}
		return c.Redirect(http.StatusFound, page)
	case repository.ErrInvalidToken:
		return c.Redirect(http.StatusFound, page+"?error=invalid-link")
	default:
		c.Logger().Errorf("unsubscribe link: %v", err)
		return c.Redirect(http.StatusFound, page+"?error=server-error")
	}
}

// Options reports the fixed interest set the signup form offers. Served
// behind the response cache.
func (h *NewsletterHandler) Options(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"interests": model.AllowedInterests,
	})
}

// buildLinkURL appends token and email query parameters to an API path
// on the public base URL.
func buildLinkURL(baseURL, path, token, email string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := u.Query()
	q.Set("token", token)
	q.Set("email", email)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
