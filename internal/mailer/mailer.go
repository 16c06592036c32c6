// Package mailer renders and delivers transactional email. Delivery goes
// through the Resend HTTP API when an API key is configured, otherwise
// plain SMTP. Messages are sent from one of three role addresses
// (info/accounts/newsletter) picked by message purpose.
package mailer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"
)

// Sender roles. Subscriber-facing newsletter mail comes from the
// newsletter address, opt-out links from accounts, internal notices
// from info.
const (
	FromInfo       = "info"
	FromAccounts   = "accounts"
	FromNewsletter = "newsletter"
)

// Config holds delivery provider settings.
type Config struct {
	Enabled  bool
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string

	ResendKey     string
	ResendBaseURL string // defaults to the public Resend API

	// Role address -> sender email, keyed by the From* constants.
	Senders map[string]string
}

// Message is a single email to send.
type Message struct {
	From    string // one of the From* role constants
	To      []string
	Subject string
	HTML    string
}

// Sender sends emails via SMTP or Resend. There is no retry and no
// delivery tracking; a failed send is the caller's problem to report.
type Sender struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Sender {
	if cfg.ResendBaseURL == "" {
		cfg.ResendBaseURL = "https://api.resend.com"
	}
	return &Sender{cfg: cfg, client: &http.Client{Timeout: 15 * time.Second}}
}

// Send dispatches an email. Uses Resend if configured, otherwise SMTP.
// A disabled mailer silently accepts everything, which keeps local
// development working without a provider account.
func (s *Sender) Send(msg Message) error {
	if !s.cfg.Enabled {
		return nil
	}
	from, ok := s.cfg.Senders[msg.From]
	if !ok || from == "" {
		return fmt.Errorf("mailer: no sender address for role %q", msg.From)
	}
	if s.cfg.ResendKey != "" {
		return s.sendResend(from, msg)
	}
	return s.sendSMTP(from, msg)
}

func (s *Sender) sendSMTP(from string, msg Message) error {
	host := s.cfg.SMTPHost
	port := s.cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	var body bytes.Buffer
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString(fmt.Sprintf("From: %s\r\n", from))
	body.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	body.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	body.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	body.WriteString("\r\n")
	body.WriteString(msg.HTML)

	auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, host)
	return smtp.SendMail(addr, auth, from, msg.To, body.Bytes())
}

func (s *Sender) sendResend(from string, msg Message) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"from":    from,
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	})

	req, err := http.NewRequest("POST", s.cfg.ResendBaseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.ResendKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("resend error %d: %s", resp.StatusCode, errResp.Message)
	}
	return nil
}
