package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

func TestTwilioFetcherUsesBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	f := NewTwilioFetcher("AC123", "secret", nil, WithTwilioMediaOrigin(srv.URL))
	blob, err := f.Fetch(context.Background(), Locator{Ref: srv.URL + "/media/ME1"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(blob.Data) != "jpeg-bytes" || blob.ContentType != "image/jpeg" {
		t.Fatalf("unexpected blob: %q %q", blob.Data, blob.ContentType)
	}
}

func TestTwilioFetcherNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewTwilioFetcher("AC123", "bad", nil, WithTwilioMediaOrigin(srv.URL))
	if _, err := f.Fetch(context.Background(), Locator{Ref: srv.URL}); err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestTwilioFetcherKeepsCredentialsOnTwilio(t *testing.T) {
	var leaked atomic.Bool
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); ok {
			leaked.Store(true)
		}
		_, _ = w.Write([]byte("x"))
	}))
	defer other.Close()

	tests := []struct {
		name string
		f    *TwilioFetcher
		ref  string
	}{
		{"default origin, foreign host", NewTwilioFetcher("AC123", "secret", nil), other.URL + "/media/ME1"},
		{"plain http to twilio", NewTwilioFetcher("AC123", "secret", nil), "http://api.twilio.com/2010-04-01/Accounts/AC123/Messages/MM1/Media/ME1"},
		{"lookalike host", NewTwilioFetcher("AC123", "secret", nil), "https://api.twilio.com.evil.test/media"},
		{"userinfo", NewTwilioFetcher("AC123", "secret", nil), "https://x@api.twilio.com/media"},
		{"configured origin, other port", NewTwilioFetcher("AC123", "secret", nil, WithTwilioMediaOrigin("http://127.0.0.1:1")), other.URL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.f.Fetch(context.Background(), Locator{Ref: tt.ref}); err == nil {
				t.Fatal("expected foreign media url to be rejected")
			}
		})
	}
	if leaked.Load() {
		t.Fatal("credentials were sent to a non-Twilio host")
	}
}

func TestGraphFetcherResolvesThenDownloads(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/v20.0/MEDIA1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"url":"` + srv.URL + `/blob/1","mime_type":"image/png","id":"MEDIA1"}`))
		case "/blob/1":
			_, _ = w.Write([]byte("png-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewGraphFetcher(srv.URL+"/v20.0", "tok", nil)
	blob, err := f.Fetch(context.Background(), Locator{Ref: "MEDIA1"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(blob.Data) != "png-bytes" || blob.ContentType != "image/png" {
		t.Fatalf("unexpected blob: %q %q", blob.Data, blob.ContentType)
	}
}

func TestFSStorePutOverwritesAndBuildsURL(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(dir, "https://example.test/", "uploads", nil)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	ctx := context.Background()
	if _, err := s.Put(ctx, "584141234567.jpg", []byte("first"), "image/jpeg"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	obj, err := s.Put(ctx, "584141234567.jpg", []byte("second"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if obj.URL != "https://example.test/uploads/584141234567.jpg" || obj.Ref != obj.URL {
		t.Fatalf("object = %+v", obj)
	}
	got, err := os.ReadFile(filepath.Join(dir, "584141234567.jpg"))
	if err != nil || string(got) != "second" {
		t.Fatalf("file content = %q, %v", got, err)
	}
}

func TestFSStoreRejectsTraversal(t *testing.T) {
	s, err := NewFSStore(t.TempDir(), "http://x", "uploads", nil)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	for _, key := range []string{"../etc/passwd", "a/b.jpg", "", ".hidden"} {
		if _, err := s.Put(context.Background(), key, []byte("x"), ""); err == nil {
			t.Fatalf("key %q accepted", key)
		}
	}
}

func TestMinIOStoreRefIsStable(t *testing.T) {
	var putPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			putPath.Store(r.URL.Path)
		}
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	mc, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4("minio", "minio123", ""),
		Region: "us-east-1",
	})
	if err != nil {
		t.Fatalf("minio.New: %v", err)
	}
	s := NewMinIOStore(mc, "proofs", "uploads", time.Hour, nil)

	obj, err := s.Put(context.Background(), "584141234567.jpg", []byte("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got, _ := putPath.Load().(string); got != "/proofs/uploads/584141234567.jpg" {
		t.Fatalf("put path = %q", got)
	}
	if obj.Ref != srv.URL+"/proofs/uploads/584141234567.jpg" {
		t.Fatalf("ref = %q", obj.Ref)
	}
	if !strings.Contains(obj.URL, "X-Amz-Signature=") || !strings.Contains(obj.URL, "X-Amz-Expires=3600") {
		t.Fatalf("url = %q, want presigned", obj.URL)
	}
}
