package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/proof-receipts/internal/async"
	"github.com/joseph-ayodele/proof-receipts/internal/media"
	"github.com/joseph-ayodele/proof-receipts/internal/notify"
	"github.com/joseph-ayodele/proof-receipts/internal/pipeline"
)

const (
	eventReceived = "EVENT_RECEIVED"
	maxCloudBody  = 1 << 20
)

type cloudEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Messages []cloudMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type cloudMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
}

type cloudMessage struct {
	From      string      `json:"from"`
	ID        string      `json:"id"`
	Timestamp string      `json:"timestamp"`
	Type      string      `json:"type"`
	Image     *cloudMedia `json:"image,omitempty"`
	Document  *cloudMedia `json:"document,omitempty"`
}

func (m cloudMessage) attachment() *cloudMedia {
	switch m.Type {
	case "image":
		return m.Image
	case "document":
		return m.Document
	}
	return nil
}

func (m cloudMessage) receivedAt() time.Time {
	sec, err := strconv.ParseInt(m.Timestamp, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// handleVerify answers the Cloud API subscription handshake.
func (s *Server) handleVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && s.opts.VerifyToken != "" && token == s.opts.VerifyToken {
		s.logger.Info("webhook.verify.ok")
		c.String(http.StatusOK, challenge)
		return
	}
	s.logger.Warn("webhook.verify.rejected", "mode", mode)
	c.Status(http.StatusForbidden)
}

// handleCloud accepts Cloud API notifications. Every message in the envelope
// is dispatched on its own; status callbacks carry no messages and are ignored.
// Bodies not signed with the app secret are refused.
func (s *Server) handleCloud(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCloudBody))
	if err != nil {
		s.logger.Warn("webhook.cloud.read_failed", "error", err)
		c.String(http.StatusOK, eventReceived)
		return
	}
	if s.opts.AppSecret != "" && !validHubSignature(s.opts.AppSecret, body, c.GetHeader(headerHubSignature)) {
		s.logger.Warn("webhook.cloud.bad_signature", "remote", c.ClientIP())
		c.Status(http.StatusForbidden)
		return
	}
	defer c.String(http.StatusOK, eventReceived)

	var env cloudEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		s.logger.Warn("webhook.cloud.bad_json", "error", err)
		return
	}

	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				sender := notify.NormalizeNumber(msg.From)
				if sender == "" {
					continue
				}
				sub := pipeline.Submission{Sender: sender, ReceivedAt: msg.receivedAt()}
				att := msg.attachment()
				if att == nil || att.ID == "" {
					s.enqueue(c, async.Job{Prompt: true, Submission: sub})
					continue
				}
				sub.Media = media.Locator{Ref: att.ID, ContentType: att.MimeType}
				s.enqueue(c, async.Job{Submission: sub})
			}
		}
	}
}
