package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FSStore writes objects into a local directory that the HTTP server exposes
// under RoutePrefix, and returns public URLs rooted at baseURL.
type FSStore struct {
	dir         string
	baseURL     string
	routePrefix string
	logger      *slog.Logger
}

func NewFSStore(dir, baseURL, routePrefix string, logger *slog.Logger) (*FSStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("fs store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fs store: mkdir %s: %w", dir, err)
	}
	return &FSStore{
		dir:         dir,
		baseURL:     strings.TrimRight(baseURL, "/"),
		routePrefix: "/" + strings.Trim(routePrefix, "/"),
		logger:      logger,
	}, nil
}

// Dir is the directory backing the store.
func (s *FSStore) Dir() string { return s.dir }

// RoutePrefix is the URL path the directory must be served under.
func (s *FSStore) RoutePrefix() string { return s.routePrefix }

func (s *FSStore) Put(_ context.Context, key string, data []byte, _ string) (Object, error) {
	name, err := cleanKey(key)
	if err != nil {
		return Object{}, err
	}
	final := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".put-*")
	if err != nil {
		return Object{}, fmt.Errorf("fs store: temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return Object{}, fmt.Errorf("fs store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Object{}, fmt.Errorf("fs store: close: %w", err)
	}
	// rename keeps readers from seeing a half-written file
	if err := os.Rename(tmp.Name(), final); err != nil {
		return Object{}, fmt.Errorf("fs store: rename: %w", err)
	}

	u := s.baseURL + s.routePrefix + "/" + url.PathEscape(name)
	s.logger.Debug("media.fs.stored", "path", final, "bytes", len(data))
	return Object{Ref: u, URL: u}, nil
}

func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return key, nil
}
