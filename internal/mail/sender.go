// Package mail provides the outbound mail-sending collaborator for TalentPipe.
//
// The Sender contract is fire-and-forget: one send, one boolean-ish outcome
// (nil error or not). No delivery receipts are modeled. Implementations must
// be safe for sequential use from a single campaign run.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"os"
	"regexp"
	"strings"
)

// Sender delivers one message to one recipient.
type Sender interface {
	// Send delivers a message. A nil error means the collaborator accepted it.
	Send(ctx context.Context, to, subject, body string) error
}

var addressRegex = regexp.MustCompile(`<([^>]+)>`)

// ExtractAddress extracts a bare email address from a sender string such as
// "MJ D <abcde@example.com>". Returns "" when no address can be found.
func ExtractAddress(sender string) string {
	if sender == "" {
		return ""
	}
	if m := addressRegex.FindStringSubmatch(sender); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	if strings.Contains(sender, "@") {
		return strings.ToLower(strings.TrimSpace(sender))
	}
	return ""
}

// Opts holds configuration for the SMTP sender.
type Opts struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// Option configures the SMTP sender.
type Option func(*Opts)

// WithHost sets the SMTP server hostname.
func WithHost(host string) Option {
	return func(o *Opts) { o.Host = host }
}

// WithPort sets the SMTP server port.
func WithPort(port string) Option {
	return func(o *Opts) { o.Port = port }
}

// WithCredentials sets the SMTP authentication credentials.
func WithCredentials(user, pass string) Option {
	return func(o *Opts) {
		o.User = user
		o.Pass = pass
	}
}

// WithFrom sets the From address for outbound mail.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// SMTPSender implements Sender over plain SMTP with AUTH.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPSender creates an SMTP-backed sender. Options fall back to the
// EMAIL_HOST, EMAIL_PORT, EMAIL_USER, EMAIL_PASS, and EMAIL_FROM environment
// variables.
func NewSMTPSender(opts ...Option) (*SMTPSender, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Host == "" {
		cfg.Host = os.Getenv("EMAIL_HOST")
	}
	if cfg.Port == "" {
		cfg.Port = os.Getenv("EMAIL_PORT")
	}
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	if cfg.User == "" {
		cfg.User = os.Getenv("EMAIL_USER")
	}
	if cfg.Pass == "" {
		cfg.Pass = os.Getenv("EMAIL_PASS")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("EMAIL_FROM")
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}

	slog.Debug("SMTPSender config loaded",
		"host_set", cfg.Host != "",
		"user_set", cfg.User != "",
		"from_set", cfg.From != "")

	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host must be provided")
	}
	if cfg.User == "" || cfg.Pass == "" {
		return nil, fmt.Errorf("SMTP credentials must be provided")
	}

	return &SMTPSender{
		addr: cfg.Host + ":" + cfg.Port,
		auth: smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host),
		from: cfg.From,
	}, nil
}

// Send delivers one message over SMTP.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := ExtractAddress(to)
	if addr == "" {
		return fmt.Errorf("invalid recipient address %q", to)
	}

	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + addr,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{addr}, []byte(msg)); err != nil {
		slog.Error("SMTPSender Send failed", "error", err, "to", addr)
		return fmt.Errorf("failed to send mail to %s: %w", addr, err)
	}
	slog.Debug("SMTPSender Send succeeded", "to", addr, "subjectLength", len(subject))
	return nil
}
