package media

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

// GraphFetcher resolves WhatsApp Cloud API media ids and downloads them.
// Resolution is GET {base}/{media-id}, which returns a short-lived URL that
// also needs the bearer token.
type GraphFetcher struct {
	baseURL    string
	token      string
	httpClient HTTPClient
	maxBytes   int64
	logger     *slog.Logger
}

type GraphFetcherOption func(*GraphFetcher)

func WithGraphFetchClient(c HTTPClient) GraphFetcherOption {
	return func(f *GraphFetcher) {
		if c != nil {
			f.httpClient = c
		}
	}
}

func NewGraphFetcher(baseURL, token string, logger *slog.Logger, opts ...GraphFetcherOption) *GraphFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &GraphFetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxBytes:   DefaultMaxBytes,
		logger:     logger,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

type graphMedia struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
	ID       string `json:"id"`
}

func (f *GraphFetcher) Fetch(ctx context.Context, loc Locator) (Blob, error) {
	id := strings.TrimSpace(loc.Ref)
	if id == "" {
		return Blob{}, errors.New("graph fetch: media id is required")
	}

	meta, err := f.resolve(ctx, id)
	if err != nil {
		f.logger.Error("media.graph.resolve_failed", "media_id", id, "error", err)
		return Blob{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return Blob{}, fmt.Errorf("graph fetch: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	data, ct, err := download(f.httpClient, req, f.maxBytes)
	if err != nil {
		f.logger.Error("media.graph.download_failed", "media_id", id, "error", err)
		return Blob{}, fmt.Errorf("graph download: %w", err)
	}
	if meta.MimeType != "" {
		ct = meta.MimeType
	} else if ct == "" {
		ct = loc.ContentType
	}
	return Blob{Data: data, ContentType: ct}, nil
}

func (f *GraphFetcher) resolve(ctx context.Context, id string) (graphMedia, error) {
	endpoint := f.baseURL + "/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return graphMedia{}, fmt.Errorf("graph resolve: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	body, _, err := download(f.httpClient, req, 64<<10)
	if err != nil {
		return graphMedia{}, fmt.Errorf("graph resolve: %w", err)
	}
	var m graphMedia
	if err := json.Unmarshal(body, &m); err != nil {
		return graphMedia{}, fmt.Errorf("graph resolve: decode: %w", err)
	}
	if m.URL == "" {
		return graphMedia{}, fmt.Errorf("graph resolve: no url for media %s", id)
	}
	return m, nil
}
