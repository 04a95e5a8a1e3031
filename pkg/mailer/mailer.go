package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// ErrNoRecipient is returned for messages without a destination address.
var ErrNoRecipient = errors.New("message has no recipient")

// Message is one outbound email.
type Message struct {
	To          mail.Address
	Subject     string
	TextContent string
	HTMLContent string
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendGrid delivers mail through the SendGrid v3 API.
type SendGrid struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
}

// NewSendGrid builds a SendGrid mailer.
func NewSendGrid(key, appName, fromEmail string) *SendGrid {
	return &SendGrid{
		key:        key,
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: "[" + appName + "] ",
	}
}

func (s *SendGrid) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Address))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)

	if msg.TextContent != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

// Send posts the message; 4xx/5xx responses are returned as errors so the queue can retry.
// The SendGrid client does not take a context.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if msg.To.Address == "" {
		return ErrNoRecipient
	}
	req := sendgrid.GetRequest(s.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid responded %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// Log writes messages to the logger instead of sending them. Used when no
// mail provider is configured.
type Log struct {
	logger *zap.Logger
}

// NewLog builds a logging mailer.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Send logs the message envelope.
func (l *Log) Send(ctx context.Context, msg Message) error {
	if msg.To.Address == "" {
		return ErrNoRecipient
	}
	l.logger.Info("email sent",
		zap.String("to", msg.To.String()),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTMLContent)),
	)
	return nil
}
