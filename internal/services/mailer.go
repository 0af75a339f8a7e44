package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// Mailer is the outbound email transport. Send failures are non-fatal for
// fire-and-forget flows (registration, forgot-password, admin notifications)
// and surface as ErrMailDispatch only for explicit resend requests.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, toEmail, name, link string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, name, link string) error
	SendProviderApprovalEmail(ctx context.Context, toEmail, name, companyName string) error
	SendProviderRejectionEmail(ctx context.Context, toEmail, name, companyName, reason string) error
}

// BrevoMailer sends transactional email through the Brevo REST API.
// With no API key configured it runs in mock mode: messages are logged
// instead of sent, so local development works without credentials.
type BrevoMailer struct {
	apiKey      string
	senderEmail string
	senderName  string
	client      *http.Client
}

func NewBrevoMailer(apiKey, senderEmail, senderName string) *BrevoMailer {
	return &BrevoMailer{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  senderName,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type brevoAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoMessage struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

func (m *BrevoMailer) send(ctx context.Context, toEmail, toName, subject, html string) error {
	if m.apiKey == "" {
		log.Printf("⚠️  Brevo API not configured. Mock mode: would send %q to %s", subject, toEmail)
		return nil
	}

	body, err := json.Marshal(brevoMessage{
		Sender:      brevoAddress{Email: m.senderEmail, Name: m.senderName},
		To:          []brevoAddress{{Email: toEmail, Name: toName}},
		Subject:     subject,
		HTMLContent: html,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, brevoEndpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("brevo: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (m *BrevoMailer) SendVerificationEmail(ctx context.Context, toEmail, name, link string) error {
	html := fmt.Sprintf(`<p>Hi %s,</p>
<p>Welcome to Tripook! Please confirm your email address by clicking the link below. The link is valid for 24 hours.</p>
<p><a href=%q>Verify my email</a></p>
<p>If you did not create an account, you can ignore this email.</p>`, name, link)
	return m.send(ctx, toEmail, name, "Verify your Tripook email address", html)
}

func (m *BrevoMailer) SendPasswordResetEmail(ctx context.Context, toEmail, name, link string) error {
	html := fmt.Sprintf(`<p>Hi %s,</p>
<p>We received a request to reset your Tripook password. The link below is valid for 1 hour.</p>
<p><a href=%q>Reset my password</a></p>
<p>If you did not request a reset, you can ignore this email.</p>`, name, link)
	return m.send(ctx, toEmail, name, "Reset your Tripook password", html)
}

func (m *BrevoMailer) SendProviderApprovalEmail(ctx context.Context, toEmail, name, companyName string) error {
	html := fmt.Sprintf(`<p>Hi %s,</p>
<p>Congratulations! Your provider application for <b>%s</b> has been approved. You can now list services on Tripook.</p>`, name, companyName)
	return m.send(ctx, toEmail, name, "Your Tripook provider application was approved", html)
}

func (m *BrevoMailer) SendProviderRejectionEmail(ctx context.Context, toEmail, name, companyName, reason string) error {
	html := fmt.Sprintf(`<p>Hi %s,</p>
<p>Unfortunately your provider application for <b>%s</b> was not approved.</p>`, name, companyName)
	if reason != "" {
		html += fmt.Sprintf("<p>Reason: %s</p>", reason)
	}
	return m.send(ctx, toEmail, name, "Your Tripook provider application", html)
}
