package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

// EmailConfig configures the SMTP channel.
type EmailConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// EmailNotifier delivers HTML mail over SMTP.
type EmailNotifier struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

// NewEmailNotifier constructs the channel.
func NewEmailNotifier(cfg EmailConfig) (*EmailNotifier, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("email: smtp host is required")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, errors.New("email: from address is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 465
	}
	dialer := gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password)
	dialer.SSL = port == 465
	return &EmailNotifier{
		dialer:    dialer,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}, nil
}

// Send delivers one HTML message. The SMTP dial has no context plumbing, so
// cancellation is only checked up front; the dispatcher bounds the rest with
// its own timeout.
func (n *EmailNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetAddressHeader("From", n.fromEmail, n.fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("email: send to %s: %w", to, err)
	}
	return nil
}
