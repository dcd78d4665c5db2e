package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPMailer sends through a relay at addr. Credentials are optional.
func NewSMTPMailer(addr, user, password, from string) *SMTPMailer {
	m := &SMTPMailer{addr: addr, from: from}
	if user != "" {
		host := addr
		if i := strings.LastIndex(addr, ":"); i > 0 {
			host = addr[:i]
		}
		m.auth = smtp.PlainAuth("", user, password, host)
	}
	return m
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// LogMailer writes emails to the log instead of sending them. Used when no SMTP relay
// is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "email", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
