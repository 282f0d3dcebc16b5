package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

// SMTPConfig addresses an SMTP relay.
type SMTPConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Email sends messages as plain-text mail.
type Email struct {
	cfg  SMTPConfig
	send func(m *email.Email, addr string, auth smtp.Auth) error
}

// NewEmail creates an SMTP notifier.
func NewEmail(cfg SMTPConfig) *Email {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Email{cfg: cfg, send: func(m *email.Email, addr string, auth smtp.Auth) error {
		return m.Send(addr, auth)
	}}
}

func (e *Email) Notify(ctx context.Context, m Message) error {
	if len(e.cfg.To) == 0 {
		return fmt.Errorf("notify: email: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Rewards Farm <%s>", e.cfg.From)
	mail.To = e.cfg.To
	mail.Subject = m.Title
	mail.Text = []byte(m.Body)

	addr := fmt.Sprintf("%s:%d", e.cfg.Server, e.cfg.Port)
	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Server)
	}
	err := e.send(mail, addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = e.send(mail, addr, nil)
	}
	if err != nil {
		return fmt.Errorf("notify: email: %w", err)
	}
	return nil
}
