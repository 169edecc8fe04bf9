// Package notification delivers e-mail through SMTP.
package notification

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/internal/domain/port"
)

// SMTPConfig holds the relay settings. Credentials come from the environment.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender is satisfied by *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier implements port.Notifier. Each Send opens its own SMTP session.
type SMTPNotifier struct {
	sender Sender
	from   string
	logger *slog.Logger
}

func NewSMTPNotifier(cfg SMTPConfig, logger *slog.Logger) *SMTPNotifier {
	return NewSMTPNotifierWithSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, logger)
}

// NewSMTPNotifierWithSender uses a custom transport.
func NewSMTPNotifierWithSender(sender Sender, from string, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{sender: sender, from: from, logger: logger}
}

func (n *SMTPNotifier) Send(ctx context.Context, note port.Notification) error {
	if strings.TrimSpace(note.To) == "" {
		return fmt.Errorf("%w: empty recipient", model.ErrDelivery)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrDelivery, err)
	}

	if err := n.sender.DialAndSend(buildMessage(n.from, note)); err != nil {
		return fmt.Errorf("%w: smtp send to %s: %w", model.ErrDelivery, note.To, err)
	}

	n.logger.InfoContext(ctx, "email sent",
		"to", note.To,
		"subject", note.Subject,
		"attachments", len(note.Attachments),
	)
	return nil
}

func buildMessage(from string, note port.Notification) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", note.To)
	m.SetHeader("Subject", note.Subject)
	m.SetBody("text/html", note.HTMLBody)

	for _, a := range note.Attachments {
		data := a.Data
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		m.Attach(a.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {contentType}}),
		)
	}
	return m
}

// LogNotifier writes notifications to the log instead of sending them. It is used when no
// SMTP relay is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, note port.Notification) error {
	if strings.TrimSpace(note.To) == "" {
		return fmt.Errorf("%w: empty recipient", model.ErrDelivery)
	}
	n.logger.WarnContext(ctx, "smtp not configured, notification logged only",
		"to", note.To,
		"subject", note.Subject,
		"attachments", len(note.Attachments),
	)
	return nil
}
