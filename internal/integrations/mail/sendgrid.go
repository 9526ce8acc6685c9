package mail

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/config"
)

const defaultFrom = `"Ticket.io" <no-reply@example.com>`

// ErrNoRecipients is returned when the recipient list is empty.
var ErrNoRecipients = errors.New("no recipients specified")

// Mailer sends plain-text mail through SendGrid. Without an API key it only
// logs what it would have sent.
type Mailer struct {
	client  *sendgrid.Client
	from    *sgmail.Email
	replyTo *sgmail.Email
	logger  *zap.Logger
}

// NewMailer builds the mailer from configuration.
func NewMailer(cfg config.MailConfig, logger *zap.Logger) (*Mailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rawFrom := cfg.From
	if strings.TrimSpace(rawFrom) == "" {
		rawFrom = defaultFrom
	}
	from, err := parseAddress(rawFrom)
	if err != nil {
		return nil, fmt.Errorf("invalid MAIL_FROM: %w", err)
	}

	m := &Mailer{from: from, logger: logger}
	if strings.TrimSpace(cfg.ReplyTo) != "" {
		if m.replyTo, err = parseAddress(cfg.ReplyTo); err != nil {
			return nil, fmt.Errorf("invalid MAIL_REPLY_TO: %w", err)
		}
	}
	if cfg.Configured() {
		m.client = sendgrid.NewSendClient(cfg.SendGridAPIKey)
	} else {
		logger.Warn("MAIL_API_KEY not provided; mail is logged only")
	}
	return m, nil
}

// Enabled reports whether mail leaves the process.
func (m *Mailer) Enabled() bool {
	return m != nil && m.client != nil
}

// Send delivers a plain-text message. to may hold several addresses
// separated by commas or semicolons.
func (m *Mailer) Send(ctx context.Context, to, subject, text string) error {
	message, err := m.buildMessage(to, subject, text)
	if err != nil {
		return err
	}
	if !m.Enabled() {
		m.logger.Debug("mail disabled; dropping message", zap.String("to", to), zap.String("subject", subject))
		return nil
	}

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid api error %d: %s", resp.StatusCode, resp.Body)
	}
	m.logger.Info("mail sent", zap.String("to", to), zap.String("subject", subject), zap.Int("status", resp.StatusCode))
	return nil
}

func (m *Mailer) buildMessage(to, subject, text string) (*sgmail.SGMailV3, error) {
	recipients := splitRecipients(to)
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	message := sgmail.NewV3Mail()
	message.SetFrom(m.from)
	message.Subject = subject
	p := sgmail.NewPersonalization()
	p.AddTos(recipients...)
	message.AddPersonalizations(p)
	if text == "" {
		text = subject
	}
	message.AddContent(sgmail.NewContent("text/plain", text))
	if m.replyTo != nil {
		message.SetReplyTo(m.replyTo)
	}
	return message, nil
}

func splitRecipients(to string) []*sgmail.Email {
	fields := strings.FieldsFunc(to, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]*sgmail.Email, 0, len(fields))
	for _, field := range fields {
		if addr := strings.TrimSpace(field); addr != "" {
			out = append(out, sgmail.NewEmail("", addr))
		}
	}
	return out
}

func parseAddress(raw string) (*sgmail.Email, error) {
	addr, err := netmail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	return sgmail.NewEmail(addr.Name, addr.Address), nil
}
