package webhook

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/proof-receipts/internal/async"
	"github.com/joseph-ayodele/proof-receipts/internal/media"
	"github.com/joseph-ayodele/proof-receipts/internal/notify"
	"github.com/joseph-ayodele/proof-receipts/internal/pipeline"
)

const emptyTwiML = "<Response></Response>"

type twilioForm struct {
	From              string `form:"From"`
	NumMedia          string `form:"NumMedia"`
	MediaURL0         string `form:"MediaUrl0"`
	MediaContentType0 string `form:"MediaContentType0"`
}

// handleTwilio accepts Twilio's form-encoded inbound message. The reply is an
// empty TwiML document whatever happens; results go out as separate messages.
// Requests failing the signature check are refused.
func (s *Server) handleTwilio(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		s.logger.Warn("webhook.twilio.bad_form", "error", err)
		c.Data(http.StatusOK, "text/xml", []byte(emptyTwiML))
		return
	}
	if s.opts.TwilioAuthToken != "" {
		sig := c.GetHeader(headerTwilioSignature)
		if !validTwilioSignature(s.opts.TwilioAuthToken, s.twilioURL(c), c.Request.PostForm, sig) {
			s.logger.Warn("webhook.twilio.bad_signature", "remote", c.ClientIP())
			c.Status(http.StatusForbidden)
			return
		}
	}
	defer c.Data(http.StatusOK, "text/xml", []byte(emptyTwiML))

	var form twilioForm
	if err := c.ShouldBind(&form); err != nil {
		s.logger.Warn("webhook.twilio.bad_form", "error", err)
		return
	}
	sender := notify.NormalizeNumber(form.From)
	if sender == "" {
		s.logger.Warn("webhook.twilio.no_sender")
		return
	}

	n, _ := strconv.Atoi(strings.TrimSpace(form.NumMedia))
	if n <= 0 || form.MediaURL0 == "" {
		s.enqueue(c, async.Job{Prompt: true, Submission: pipeline.Submission{Sender: sender}})
		return
	}
	s.enqueue(c, async.Job{Submission: pipeline.Submission{
		Sender: sender,
		Media:  media.Locator{Ref: form.MediaURL0, ContentType: form.MediaContentType0},
	}})
}

// twilioURL is the URL Twilio signed: the configured one, or the request URL
// as seen by the client when behind a TLS-terminating proxy.
func (s *Server) twilioURL(c *gin.Context) string {
	if s.opts.TwilioURL != "" {
		return s.opts.TwilioURL
	}
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}
