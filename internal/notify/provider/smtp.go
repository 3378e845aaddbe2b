package provider

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/duesflow/duesflow/internal/config"
	notifydomain "github.com/duesflow/duesflow/internal/notify/domain"
)

// SMTPProvider delivers plain-text mail over smtp. Auth is optional; a host
// without credentials is sent to unauthenticated (local relay setups).
type SMTPProvider struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPProvider(cfg config.Config) *SMTPProvider {
	from := cfg.Notify.From
	if from == "" {
		from = "no-reply@localhost"
	}
	return &SMTPProvider{
		host:     cfg.Notify.SMTPHost,
		port:     cfg.Notify.SMTPPort,
		username: cfg.Notify.SMTPUsername,
		password: cfg.Notify.SMTPPassword,
		from:     from,
	}
}

func (p *SMTPProvider) Name() string { return "smtp" }

func (p *SMTPProvider) Send(_ context.Context, address string, msg notifydomain.Message) error {
	if p.host == "" {
		return fmt.Errorf("missing_smtp_host")
	}

	var auth smtp.Auth
	if p.username != "" && p.password != "" {
		auth = smtp.PlainAuth("", p.username, p.password, p.host)
	}

	body := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", p.from, address, msg.Subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
			msg.Body,
	)

	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	return smtp.SendMail(addr, auth, p.from, []string{address}, body)
}
