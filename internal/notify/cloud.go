package notify

import (
	"bytes"
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

// CloudOption customises the Cloud API notifier.
type CloudOption func(*Cloud)

func WithCloudHTTPClient(client HTTPClient) CloudOption {
	return func(c *Cloud) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Cloud sends messages through the WhatsApp Business Cloud API.
type Cloud struct {
	graphURL      string
	token         string
	phoneNumberID string
	httpClient    HTTPClient
	logger        *slog.Logger
}

func NewCloud(graphURL, token, phoneNumberID string, logger *slog.Logger, opts ...CloudOption) (*Cloud, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("cloud notifier: access token is required")
	}
	if strings.TrimSpace(phoneNumberID) == "" {
		return nil, errors.New("cloud notifier: phone number id is required")
	}
	if graphURL == "" {
		graphURL = "https://graph.facebook.com/v20.0"
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cloud{
		graphURL:      strings.TrimRight(graphURL, "/"),
		token:         strings.TrimSpace(token),
		phoneNumberID: strings.TrimSpace(phoneNumberID),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type cloudMessage struct {
	MessagingProduct string      `json:"messaging_product"`
	RecipientType    string      `json:"recipient_type"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             *cloudText  `json:"text,omitempty"`
	Image            *cloudImage `json:"image,omitempty"`
}

type cloudText struct {
	Body string `json:"body"`
}

type cloudImage struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type cloudResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *Cloud) SendText(ctx context.Context, to, body string) error {
	return c.send(ctx, cloudMessage{Type: "text", To: NormalizeNumber(to), Text: &cloudText{Body: body}})
}

func (c *Cloud) SendMedia(ctx context.Context, to, mediaURL, caption string) error {
	if strings.TrimSpace(mediaURL) == "" {
		return errors.New("cloud notifier: media url is required")
	}
	return c.send(ctx, cloudMessage{Type: "image", To: NormalizeNumber(to), Image: &cloudImage{Link: mediaURL, Caption: caption}})
}

func (c *Cloud) send(ctx context.Context, msg cloudMessage) error {
	if msg.To == "" {
		return errors.New("cloud notifier: recipient is required")
	}
	msg.MessagingProduct = "whatsapp"
	msg.RecipientType = "individual"

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("cloud notifier: encode: %w", err)
	}
	endpoint := fmt.Sprintf("%s/%s/messages", c.graphURL, url.PathEscape(c.phoneNumberID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("cloud notifier: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cloud notifier: http do: %w", err)
	}
	defer resp.Body.Close()
	body := readBody(resp.Body, defaultBodyLimit)

	var parsed cloudResponse
	_ = json.Unmarshal([]byte(body), &parsed)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return fmt.Errorf("cloud notifier: error %d: %s", parsed.Error.Code, parsed.Error.Message)
		}
		return fmt.Errorf("cloud notifier: http %d: %s", resp.StatusCode, strings.TrimSpace(body))
	}

	var id string
	if len(parsed.Messages) > 0 {
		id = parsed.Messages[0].ID
	}
	c.logger.Info("notify.cloud.sent",
		"message_id", id,
		"type", msg.Type,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
