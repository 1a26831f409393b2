package smtp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"

	"github.com/go-todo-auth/internal/config"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer returns the Mailer selected by cfg.MailDriver.
func NewMailer(cfg *config.Config) Mailer {
	if cfg.MailDriver == config.MailDriverLog {
		return NewLogMailer(slog.Default())
	}
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		send:     smtp.SendMail,
	}
}

func (m *mailer) SendEmail(to, subject, body string) error {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return errors.New("invalid header value")
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	return m.send(net.JoinHostPort(m.host, m.port), auth, m.from, []string{to}, []byte(msg))
}

type logMailer struct {
	log *slog.Logger
}

// NewLogMailer returns a Mailer that writes messages to log instead of sending them.
// Development only: it logs the message body, OTP codes included.
func NewLogMailer(log *slog.Logger) Mailer {
	return &logMailer{log: log}
}

func (m *logMailer) SendEmail(to, subject, body string) error {
	m.log.Info("mail (log driver)", "to", to, "subject", subject, "body", body)
	return nil
}
