// Package notification delivers reminder letters over email. It consumes
// the same reminder events the automation rules react to, but lives
// outside the rule set so mail delivery problems never affect rule
// execution.
package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/planovo/planovo-api/internal/config"
)

// ReminderMailer delivers one payment reminder email.
type ReminderMailer interface {
	SendReminder(recipientEmail, subject, body string) error
}

// SMTPMailer sends reminder emails using an SMTP server.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPMailer constructs a new SMTPMailer from config.
func NewSMTPMailer(cfg config.EmailConfig) (*SMTPMailer, error) {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return nil, fmt.Errorf("smtp_host is required")
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("email from address is required")
	}

	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
	}, nil
}

func (m *SMTPMailer) SendReminder(recipientEmail, subject, body string) error {
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n",
		m.from, recipientEmail, subject)

	message := []byte(headers + body)
	addr := fmt.Sprintf("%s:%d", m.host, m.port)

	var auth smtp.Auth
	if strings.TrimSpace(m.username) != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return smtp.SendMail(addr, auth, m.from, []string{recipientEmail}, message)
}
