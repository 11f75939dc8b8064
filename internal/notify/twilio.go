package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TwilioOption customises the Twilio notifier.
type TwilioOption func(*Twilio)

// WithTwilioHTTPClient overrides the HTTP client used to talk to Twilio.
func WithTwilioHTTPClient(client HTTPClient) TwilioOption {
	return func(t *Twilio) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// WithTwilioBaseURL sets the base Twilio API URL. Useful for tests.
func WithTwilioBaseURL(baseURL string) TwilioOption {
	return func(t *Twilio) {
		if baseURL != "" {
			t.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// Twilio sends WhatsApp messages through the Twilio Messages API.
type Twilio struct {
	accountSID string
	authToken  string
	from       string
	httpClient HTTPClient
	baseURL    string
	logger     *slog.Logger
}

func NewTwilio(accountSID, authToken, from string, logger *slog.Logger, opts ...TwilioOption) (*Twilio, error) {
	if strings.TrimSpace(accountSID) == "" {
		return nil, errors.New("twilio notifier: account SID is required")
	}
	if strings.TrimSpace(authToken) == "" {
		return nil, errors.New("twilio notifier: auth token is required")
	}
	if NormalizeNumber(from) == "" {
		return nil, errors.New("twilio notifier: from number is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &Twilio{
		accountSID: strings.TrimSpace(accountSID),
		authToken:  strings.TrimSpace(authToken),
		from:       formatWhatsAppAddress(from),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.twilio.com/2010-04-01",
		logger:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

func (t *Twilio) SendText(ctx context.Context, to, body string) error {
	params := url.Values{}
	params.Set("Body", body)
	return t.send(ctx, to, params)
}

func (t *Twilio) SendMedia(ctx context.Context, to, mediaURL, caption string) error {
	if strings.TrimSpace(mediaURL) == "" {
		return errors.New("twilio notifier: media url is required")
	}
	params := url.Values{}
	params.Set("MediaUrl", mediaURL)
	if caption != "" {
		params.Set("Body", caption)
	}
	return t.send(ctx, to, params)
}

type twilioBody struct {
	SID       string `json:"sid"`
	Status    string `json:"status"`
	ErrorCode int    `json:"code"`
	Message   string `json:"message"`
}

func (t *Twilio) send(ctx context.Context, to string, params url.Values) error {
	toAddr := formatWhatsAppAddress(to)
	if toAddr == "" {
		return errors.New("twilio notifier: recipient is required")
	}
	params.Set("To", toAddr)
	params.Set("From", t.from)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", t.baseURL, url.PathEscape(t.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("twilio notifier: new request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio notifier: http do: %w", err)
	}
	defer resp.Body.Close()
	body := readBody(resp.Body, defaultBodyLimit)

	var parsed twilioBody
	_ = json.Unmarshal([]byte(body), &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := parsed.Message
		if msg == "" {
			msg = strings.TrimSpace(body)
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		if parsed.ErrorCode > 0 {
			return fmt.Errorf("twilio notifier: error %d: %s", parsed.ErrorCode, msg)
		}
		return fmt.Errorf("twilio notifier: http %d: %s", resp.StatusCode, msg)
	}

	t.logger.Info("notify.twilio.sent",
		"sid", parsed.SID,
		"status", parsed.Status,
		"media", params.Get("MediaUrl") != "",
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
