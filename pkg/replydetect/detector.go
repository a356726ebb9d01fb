package replydetect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/jordanlanch/leadpilot/pkg/domain"
	"github.com/jordanlanch/leadpilot/pkg/logger"
)

// Config holds the IMAP inbox credentials for reply polling
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
}

// Detector polls an IMAP mailbox for recent inbound messages. Each poll
// opens a fresh connection; polls are short and infrequent enough that
// keeping a long-lived IMAP session alive is not worth the reconnect logic.
type Detector struct {
	cfg Config
	log logger.Logger
}

// NewDetector creates an IMAP reply detector
func NewDetector(cfg Config, log logger.Logger) *Detector {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	return &Detector{cfg: cfg, log: log}
}

// FetchRecentInboundReplies returns envelope data for messages received at or
// after since. IMAP SEARCH SINCE has day granularity, so the caller must
// filter on the returned Date for tighter windows.
func (d *Detector) FetchRecentInboundReplies(ctx context.Context, since time.Time) ([]domain.ReplyEvent, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to imap server: %w", err)
	}
	defer c.Logout()

	if err := c.Login(d.cfg.Username, d.cfg.Password); err != nil {
		return nil, fmt.Errorf("imap login failed: %w", err)
	}

	if _, err := c.Select(d.cfg.Mailbox, true); err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", d.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	messages := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope}, messages)
	}()

	var events []domain.ReplyEvent
	for msg := range messages {
		if msg.Envelope == nil {
			continue
		}
		ev := envelopeToEvent(msg.Envelope)
		if ev.Date.Before(since) {
			continue
		}
		events = append(events, ev)
	}

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("imap fetch failed: %w", err)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	d.log.Debug("Fetched inbound messages", "count", len(events), "since", since)
	return events, nil
}

func envelopeToEvent(env *imap.Envelope) domain.ReplyEvent {
	ev := domain.ReplyEvent{
		MessageID: strings.Trim(env.MessageId, "<>"),
		Subject:   env.Subject,
		Date:      env.Date,
	}
	if env.InReplyTo != "" {
		// In-Reply-To may carry several angle-bracketed ids
		for _, ref := range strings.Fields(env.InReplyTo) {
			ev.InReplyTo = append(ev.InReplyTo, strings.Trim(ref, "<>"))
		}
	}
	if len(env.From) > 0 {
		ev.FromEmail = strings.ToLower(env.From[0].Address())
	}
	return ev
}
