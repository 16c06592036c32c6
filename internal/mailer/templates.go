package mailer

import (
	"bytes"
	"html/template"
	"strings"
)

// WelcomeData fills the double-opt-in welcome email. The confirm URL
// carries the single-use token issued at intake.
type WelcomeData struct {
	FirstName  string
	ConfirmURL string
	Interests  []string
}

// SignupNoticeData fills the internal notification sent to the
// operations mailbox on every new signup.
type SignupNoticeData struct {
	Email     string
	FirstName string
	Source    string
	Interests []string
}

// UnsubscribeData fills the opt-out email with the emailed removal link.
type UnsubscribeData struct {
	FirstName      string
	UnsubscribeURL string
}

// CampaignData wraps an admin-authored campaign body with the standard
// footer. BodyHTML is trusted admin input and rendered unescaped.
type CampaignData struct {
	BodyHTML       template.HTML
	UnsubscribeURL string
}

var tmplFuncs = template.FuncMap{
	"join": func(ss []string) string { return strings.Join(ss, ", ") },
}

var welcomeTmpl = template.Must(template.New("welcome").Funcs(tmplFuncs).Parse(`<!DOCTYPE html>
<html><body style="font-family:sans-serif;max-width:560px;margin:0 auto">
<h2>Welcome{{if .FirstName}}, {{.FirstName}}{{end}}!</h2>
<p>Thanks for signing up for our newsletter. Please confirm your email
address to start receiving updates{{if .Interests}} on {{join .Interests}}{{end}}.</p>
<p><a href="{{.ConfirmURL}}" style="background:#1a73e8;color:#fff;padding:10px 18px;border-radius:4px;text-decoration:none">Confirm subscription</a></p>
<p>If you didn't request this, you can safely ignore this email.</p>
</body></html>`))

var signupNoticeTmpl = template.Must(template.New("signup-notice").Funcs(tmplFuncs).Parse(`<!DOCTYPE html>
<html><body style="font-family:sans-serif">
<h3>New newsletter signup</h3>
<ul>
<li>Email: {{.Email}}</li>
{{if .FirstName}}<li>Name: {{.FirstName}}</li>{{end}}
{{if .Source}}<li>Source: {{.Source}}</li>{{end}}
{{if .Interests}}<li>Interests: {{join .Interests}}</li>{{end}}
</ul>
</body></html>`))

var unsubscribeTmpl = template.Must(template.New("unsubscribe").Parse(`<!DOCTYPE html>
<html><body style="font-family:sans-serif;max-width:560px;margin:0 auto">
<h2>Sorry to see you go{{if .FirstName}}, {{.FirstName}}{{end}}</h2>
<p>We received a request to remove this address from our newsletter.
Click below to confirm. If you didn't ask for this, ignore this email
and nothing changes.</p>
<p><a href="{{.UnsubscribeURL}}" style="background:#d93025;color:#fff;padding:10px 18px;border-radius:4px;text-decoration:none">Unsubscribe</a></p>
</body></html>`))

var campaignTmpl = template.Must(template.New("campaign").Parse(`<!DOCTYPE html>
<html><body style="font-family:sans-serif;max-width:560px;margin:0 auto">
{{.BodyHTML}}
<hr style="margin-top:32px;border:none;border-top:1px solid #ddd">
<p style="font-size:12px;color:#888">You are receiving this because you
subscribed to our newsletter.
<a href="{{.UnsubscribeURL}}">Unsubscribe</a></p>
</body></html>`))

// SendWelcome delivers the double-opt-in welcome email from the
// newsletter address.
func (s *Sender) SendWelcome(to string, d WelcomeData) error {
	html, err := render(welcomeTmpl, d)
	if err != nil {
		return err
	}
	return s.Send(Message{
		From:    FromNewsletter,
		To:      []string{to},
		Subject: "Please confirm your subscription",
		HTML:    html,
	})
}

// SendSignupNotice delivers the internal new-signup notification from
// the info address.
func (s *Sender) SendSignupNotice(to string, d SignupNoticeData) error {
	html, err := render(signupNoticeTmpl, d)
	if err != nil {
		return err
	}
	return s.Send(Message{
		From:    FromInfo,
		To:      []string{to},
		Subject: "New newsletter signup: " + d.Email,
		HTML:    html,
	})
}

// SendUnsubscribeLink delivers the opt-out confirmation link from the
// accounts address.
func (s *Sender) SendUnsubscribeLink(to string, d UnsubscribeData) error {
	html, err := render(unsubscribeTmpl, d)
	if err != nil {
		return err
	}
	return s.Send(Message{
		From:    FromAccounts,
		To:      []string{to},
		Subject: "Confirm your unsubscribe request",
		HTML:    html,
	})
}

// SendCampaign wraps a campaign body with the standard footer and
// delivers it from the newsletter address.
func (s *Sender) SendCampaign(to, subject string, d CampaignData) error {
	html, err := render(campaignTmpl, d)
	if err != nil {
		return err
	}
	return s.Send(Message{
		From:    FromNewsletter,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
