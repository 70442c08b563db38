package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
)

type SMSConfig struct {
	APIBaseURL string
	AccountSID string
	AuthToken  string
	FromNumber string
	Timeout    time.Duration
}

// SMSTransport delivers through a Twilio-style HTTP messaging API.
type SMSTransport struct {
	cfg    SMSConfig
	client *http.Client
}

func NewSMSTransport(cfg SMSConfig) *SMSTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMSTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// NormalizePhone canonicalizes a phone number to +digits form. Separators and
// parentheses are tolerated; anything else makes the number structurally
// invalid.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for i, r := range raw {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", fmt.Errorf("invalid character %q in phone number", r)
		}
	}
	digits := b.String()
	if len(digits) < 7 || len(digits) > 15 {
		return "", fmt.Errorf("phone number must have 7-15 digits, got %d", len(digits))
	}
	return "+" + digits, nil
}

type smsResponse struct {
	SID     string `json:"sid"`
	Message string `json:"message"`
}

func (t *SMSTransport) Send(ctx context.Context, msg *Message) (*Receipt, error) {
	to, err := NormalizePhone(msg.Address)
	if err != nil {
		return nil, Permanent(fmt.Sprintf("invalid phone number %q", msg.Address), err)
	}

	body := msg.Body
	if msg.Subject != "" {
		body = msg.Subject + "\n" + body
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.cfg.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", t.cfg.APIBaseURL, t.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, Transient("failed to build sms request", err)
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, Transient("sms provider unreachable", err)
	}
	defer resp.Body.Close()

	var parsed smsResponse
	_ = json.NewDecoder(resp.Body).Decode(&parsed)

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		return &Receipt{ProviderMessageID: parsed.SID}, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, Transient(fmt.Sprintf("sms provider returned %d", resp.StatusCode), nil)
	default:
		// Remaining 4xx: the provider rejected this recipient or payload.
		reason := fmt.Sprintf("sms provider rejected message (%d)", resp.StatusCode)
		if parsed.Message != "" {
			reason = fmt.Sprintf("%s: %s", reason, parsed.Message)
		}
		return nil, Permanent(reason, nil)
	}
}
