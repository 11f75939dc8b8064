// Package media fetches submitted proofs from the messaging provider and keeps
// proofs and rendered receipts where the provider can reach them again.
package media

import (
	"context"
	"net/http"
)

// Locator identifies an inbound attachment at the provider.
// For Twilio Ref is the media URL; for the Cloud API it is the media id.
type Locator struct {
	Ref         string
	ContentType string
}

// Blob is a fetched attachment.
type Blob struct {
	Data        []byte
	ContentType string
}

// Fetcher retrieves attachment bytes with the provider's credentials.
type Fetcher interface {
	Fetch(ctx context.Context, loc Locator) (Blob, error)
}

// Object is a stored attachment. URL is what the provider downloads now and
// may expire; Ref is the durable reference kept in operation records.
type Object struct {
	Ref string
	URL string
}

// Store keeps an object under key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Object, error)
}

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
