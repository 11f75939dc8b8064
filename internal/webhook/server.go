// Package webhook exposes the inbound WhatsApp endpoints. Handlers only parse
// and enqueue; the provider always gets a success acknowledgement.
package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/proof-receipts/internal/async"
	"github.com/joseph-ayodele/proof-receipts/internal/common"
)

const headerRequestID = "X-Request-ID"

// Dispatcher accepts parsed inbound messages.
type Dispatcher interface {
	Enqueue(ctx context.Context, job async.Job) error
}

// Mount serves files from Dir under Route.
type Mount struct {
	Route string
	Dir   string
}

type Options struct {
	// VerifyToken is compared against hub.verify_token on GET /webhook.
	VerifyToken string
	// AppSecret checks X-Hub-Signature-256 on POST /webhook when set.
	AppSecret string
	// TwilioAuthToken checks X-Twilio-Signature on POST /whatsapp when set.
	TwilioAuthToken string
	// TwilioURL is the public URL Twilio posts to. Derived from the request
	// when empty.
	TwilioURL string

	Mounts []Mount
	Now    func() time.Time
}

type Server struct {
	dispatch Dispatcher
	opts     Options
	logger   *slog.Logger
	router   *gin.Engine
}

func NewServer(d Dispatcher, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	router := gin.New()
	s := &Server{dispatch: d, opts: opts, logger: logger, router: router}
	if opts.TwilioAuthToken == "" {
		logger.Warn("webhook.twilio.unsigned", "hint", "set the auth token to verify X-Twilio-Signature")
	}
	if opts.AppSecret == "" {
		logger.Warn("webhook.cloud.unsigned", "hint", "set the app secret to verify X-Hub-Signature-256")
	}

	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", s.handleHealth)
	router.POST("/whatsapp", s.handleTwilio)
	router.GET("/webhook", s.handleVerify)
	router.POST("/webhook", s.handleCloud)

	for _, m := range opts.Mounts {
		if m.Route == "" || m.Dir == "" {
			continue
		}
		router.Static(m.Route, m.Dir)
	}
	return s
}

// Handler returns the HTTP handler for use with an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = common.NewRequestID()
		}
		c.Set(headerRequestID, rid)
		c.Writer.Header().Set(headerRequestID, rid)

		c.Next()

		s.logger.Debug("http.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"request_id", rid,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) enqueue(c *gin.Context, job async.Job) {
	job.RequestID = c.GetString(headerRequestID)
	job.SubmittedAt = s.opts.Now()
	if job.Submission.ReceivedAt.IsZero() {
		job.Submission.ReceivedAt = job.SubmittedAt
	}
	if err := s.dispatch.Enqueue(c.Request.Context(), job); err != nil {
		s.logger.Error("webhook.enqueue.failed",
			"request_id", job.RequestID,
			"sender", job.Submission.Sender,
			"prompt", job.Prompt,
			"error", err,
		)
		return
	}
	s.logger.Info("webhook.enqueued",
		"request_id", job.RequestID,
		"sender", job.Submission.Sender,
		"prompt", job.Prompt,
	)
}
