// Package mail provides outbound delivery collaborators for TalentPipe.
//
// This file implements the optional Twilio SMS notifier used to push campaign
// outcomes to an operator phone number.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

var phoneNumberRegex = regexp.MustCompile(`[^0-9+]`)

// Notifier pushes a short out-of-band notification to an operator.
type Notifier interface {
	Notify(ctx context.Context, body string) error
}

// TwilioOpts holds configuration for the Twilio notifier.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
}

// TwilioOption configures the Twilio notifier.
type TwilioOption func(*TwilioOpts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithFromNumber sets the Twilio sending number.
func WithFromNumber(from string) TwilioOption {
	return func(o *TwilioOpts) { o.From = from }
}

// WithOperatorNumber sets the operator number that receives notifications.
func WithOperatorNumber(to string) TwilioOption {
	return func(o *TwilioOpts) { o.To = to }
}

// TwilioNotifier sends operator notifications as SMS via the Twilio REST API.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
	to     string
}

// NewTwilioNotifier creates a Twilio-backed notifier. Options fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER, and
// TWILIO_OPERATOR_NUMBER environment variables.
func NewTwilioNotifier(opts ...TwilioOption) (*TwilioNotifier, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.To == "" {
		cfg.To = os.Getenv("TWILIO_OPERATOR_NUMBER")
	}

	slog.Debug("TwilioNotifier config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.From != "",
		"To_set", cfg.To != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" || cfg.To == "" {
		return nil, fmt.Errorf("from and operator numbers must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioNotifier{client: client, from: cfg.From, to: cfg.To}, nil
}

// Notify sends the body as an SMS to the configured operator number.
func (n *TwilioNotifier) Notify(ctx context.Context, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to := canonicalizeNumber(n.to)
	if to == "" {
		return fmt.Errorf("invalid operator number %q", n.to)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(n.from)
	params.SetBody(body)

	if _, err := n.client.Api.CreateMessage(params); err != nil {
		slog.Error("TwilioNotifier Notify failed", "error", err, "to", to)
		return fmt.Errorf("failed to send notification: %w", err)
	}
	slog.Debug("TwilioNotifier Notify succeeded", "to", to, "bodyLength", len(body))
	return nil
}

// canonicalizeNumber strips everything but digits and a leading plus.
func canonicalizeNumber(number string) string {
	canonical := phoneNumberRegex.ReplaceAllString(number, "")
	if len(canonical) < 6 {
		return ""
	}
	return canonical
}
