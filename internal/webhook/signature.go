package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const (
	headerTwilioSignature = "X-Twilio-Signature"
	headerHubSignature    = "X-Hub-Signature-256"
)

// twilioSignature is base64(HMAC-SHA1(token, url + sorted key/value pairs)).
func twilioSignature(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func validTwilioSignature(authToken, fullURL string, params url.Values, got string) bool {
	if got == "" {
		return false
	}
	want := twilioSignature(authToken, fullURL, params)
	return hmac.Equal([]byte(want), []byte(got))
}

// hubSignature is "sha256=" + hex(HMAC-SHA256(appSecret, body)).
func hubSignature(appSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func validHubSignature(appSecret string, body []byte, got string) bool {
	if !strings.HasPrefix(got, "sha256=") {
		return false
	}
	return hmac.Equal([]byte(hubSignature(appSecret, body)), []byte(strings.ToLower(got)))
}
