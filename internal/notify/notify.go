// Package notify sends WhatsApp messages back to subscribers.
package notify

import (
	"context"
	"io"
	"net/http"
	"strings"
)

// Notifier delivers outbound WhatsApp messages. Recipients are bare
// international numbers without "+" or provider prefixes.
type Notifier interface {
	SendText(ctx context.Context, to, body string) error
	SendMedia(ctx context.Context, to, mediaURL, caption string) error
}

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const defaultBodyLimit = 16 * 1024

// NormalizeNumber strips "whatsapp:" prefixes, "+" and spaces from a number.
func NormalizeNumber(number string) string {
	n := strings.TrimSpace(number)
	if strings.HasPrefix(strings.ToLower(n), "whatsapp:") {
		n = n[len("whatsapp:"):]
	}
	n = strings.TrimSpace(n)
	n = strings.TrimPrefix(n, "+")
	return strings.ReplaceAll(n, " ", "")
}

func formatWhatsAppAddress(number string) string {
	n := NormalizeNumber(number)
	if n == "" {
		return ""
	}
	return "whatsapp:+" + n
}

func readBody(rc io.Reader, limit int64) string {
	if rc == nil {
		return ""
	}
	data, _ := io.ReadAll(io.LimitReader(rc, limit))
	return string(data)
}
