package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultMaxBytes caps downloaded attachments.
const DefaultMaxBytes = 16 << 20

// DefaultTwilioMediaOrigin is the only origin account credentials are sent to.
const DefaultTwilioMediaOrigin = "https://api.twilio.com"

// TwilioFetcher downloads media URLs from Twilio webhooks using basic auth.
type TwilioFetcher struct {
	accountSID string
	authToken  string
	httpClient HTTPClient
	origin     *url.URL
	maxBytes   int64
	logger     *slog.Logger
}

type TwilioFetcherOption func(*TwilioFetcher)

func WithTwilioFetchClient(c HTTPClient) TwilioFetcherOption {
	return func(f *TwilioFetcher) {
		if c != nil {
			f.httpClient = c
		}
	}
}

// WithTwilioMediaOrigin replaces the scheme://host media URLs must point at.
func WithTwilioMediaOrigin(origin string) TwilioFetcherOption {
	return func(f *TwilioFetcher) {
		if u, err := url.Parse(origin); err == nil && u.Scheme != "" && u.Host != "" {
			f.origin = u
		}
	}
}

func NewTwilioFetcher(accountSID, authToken string, logger *slog.Logger, opts ...TwilioFetcherOption) *TwilioFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &TwilioFetcher{
		accountSID: strings.TrimSpace(accountSID),
		authToken:  strings.TrimSpace(authToken),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxBytes:   DefaultMaxBytes,
		logger:     logger,
	}
	f.origin, _ = url.Parse(DefaultTwilioMediaOrigin)
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *TwilioFetcher) Fetch(ctx context.Context, loc Locator) (Blob, error) {
	if strings.TrimSpace(loc.Ref) == "" {
		return Blob{}, errors.New("twilio fetch: media url is required")
	}
	if err := f.checkOrigin(loc.Ref); err != nil {
		f.logger.Warn("media.twilio.foreign_url", "error", err)
		return Blob{}, fmt.Errorf("twilio fetch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.Ref, nil)
	if err != nil {
		return Blob{}, fmt.Errorf("twilio fetch: new request: %w", err)
	}
	req.SetBasicAuth(f.accountSID, f.authToken)

	start := time.Now()
	data, ct, err := download(f.httpClient, req, f.maxBytes)
	if err != nil {
		f.logger.Error("media.twilio.fetch_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Blob{}, fmt.Errorf("twilio fetch: %w", err)
	}
	if ct == "" {
		ct = loc.ContentType
	}
	f.logger.Debug("media.twilio.fetched", "bytes", len(data), "content_type", ct, "elapsed_ms", time.Since(start).Milliseconds())
	return Blob{Data: data, ContentType: ct}, nil
}

// checkOrigin rejects media URLs outside the Twilio API origin so the account
// credentials never leave it.
func (f *TwilioFetcher) checkOrigin(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse media url: %w", err)
	}
	if u.User != nil || !strings.EqualFold(u.Scheme, f.origin.Scheme) || !strings.EqualFold(u.Host, f.origin.Host) {
		return fmt.Errorf("media url %s://%s is not %s://%s", u.Scheme, u.Host, f.origin.Scheme, f.origin.Host)
	}
	return nil
}

// download performs req and reads at most max bytes of a 2xx body.
func download(c HTTPClient, req *http.Request, max int64) ([]byte, string, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > max {
		return nil, "", fmt.Errorf("media exceeds %d bytes", max)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
