package email

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jordanlanch/leadpilot/pkg/domain"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// NewSender picks the delivery backend from configured credentials: SendGrid
// when an API key is present, console logging otherwise.
func NewSender(sendGridAPIKey, baseURL string) domain.EmailSender {
	if sendGridAPIKey != "" {
		log.Printf("✅ Email sender initialized with SendGrid")
		return NewSendGridSender(sendGridAPIKey, baseURL)
	}
	log.Printf("⚠️  Email sender in console-only mode (set SENDGRID_API_KEY for production)")
	return NewConsoleSender(baseURL)
}

// SendGridSender delivers email via the SendGrid API
type SendGridSender struct {
	apiKey  string
	baseURL string
}

// NewSendGridSender creates a SendGrid-backed sender
func NewSendGridSender(apiKey, baseURL string) *SendGridSender {
	return &SendGridSender{apiKey: apiKey, baseURL: baseURL}
}

// Send delivers one campaign email with open and click tracking injected.
func (s *SendGridSender) Send(ctx context.Context, to, toName, subject, htmlContent, fromName, fromEmail string) (*domain.SendResult, error) {
	trackingID := uuid.New().String()
	instrumented := InstrumentHTML(htmlContent, s.baseURL, trackingID)

	from := mail.NewEmail(fromName, fromEmail)
	recipient := mail.NewEmail(toName, to)
	message := mail.NewSingleEmail(from, subject, recipient, stripTags(instrumented), instrumented)

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return nil, domain.NewSendFailureError(err)
	}
	if response.StatusCode >= 400 {
		return nil, domain.NewSendFailureError(
			fmt.Errorf("sendgrid returned error status %d: %s", response.StatusCode, response.Body))
	}

	messageID := response.Headers["X-Message-Id"]
	result := &domain.SendResult{TrackingID: trackingID}
	if len(messageID) > 0 {
		result.MessageID = messageID[0]
	} else {
		result.MessageID = uuid.New().String()
	}
	return result, nil
}

// ConsoleSender logs outgoing email instead of delivering it (development mode)
type ConsoleSender struct {
	baseURL string
}

// NewConsoleSender creates a console-only sender
func NewConsoleSender(baseURL string) *ConsoleSender {
	return &ConsoleSender{baseURL: baseURL}
}

func (s *ConsoleSender) Send(ctx context.Context, to, toName, subject, htmlContent, fromName, fromEmail string) (*domain.SendResult, error) {
	trackingID := uuid.New().String()
	messageID := uuid.New().String()

	log.Printf("📧 [EMAIL] %s", subject)
	log.Printf("   To: %s <%s>", toName, to)
	log.Printf("   From: %s <%s>", fromName, fromEmail)
	log.Printf("   Tracking: %s/email/track-open/%s", s.baseURL, trackingID)
	log.Printf("   ---")
	log.Printf("   ⚠️  Email NOT sent (development mode)")

	return &domain.SendResult{MessageID: messageID, TrackingID: trackingID}, nil
}

var hrefPattern = regexp.MustCompile(`href="(https?://[^"]+)"`)

// InstrumentHTML appends the open-tracking pixel and rewrites outbound links
// through the click-tracking redirect.
func InstrumentHTML(html, baseURL, trackingID string) string {
	instrumented := hrefPattern.ReplaceAllStringFunc(html, func(match string) string {
		dest := hrefPattern.FindStringSubmatch(match)[1]
		return fmt.Sprintf(`href="%s/email/track-click/%s?url=%s"`,
			baseURL, trackingID, url.QueryEscape(dest))
	})

	pixel := fmt.Sprintf(`<img src="%s/email/track-open/%s" width="1" height="1" alt="" style="display:none">`,
		baseURL, trackingID)

	if idx := strings.LastIndex(instrumented, "</body>"); idx >= 0 {
		return instrumented[:idx] + pixel + instrumented[idx:]
	}
	return instrumented + pixel
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// stripTags produces the plain-text fallback body
func stripTags(html string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(html, ""))
}
