package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/proof-receipts/internal/async"
	"github.com/joseph-ayodele/proof-receipts/internal/common"
	"github.com/joseph-ayodele/proof-receipts/internal/webhook"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfg := common.LoadConfig()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build service", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	queue := async.NewSubmissionQueue(app.pipeline, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
		async.WithEnqueueWait(cfg.Queue.EnqueueWait),
	)

	gin.SetMode(gin.ReleaseMode)
	opts := webhook.Options{
		VerifyToken: cfg.WhatsApp.CloudVerifyToken,
		Mounts:      app.mounts,
	}
	if cfg.WhatsApp.Provider == "cloud" {
		opts.AppSecret = cfg.WhatsApp.CloudAppSecret
	} else {
		opts.TwilioAuthToken = cfg.WhatsApp.TwilioAuth
		opts.TwilioURL = cfg.WhatsApp.TwilioWebhookURL
		if opts.TwilioURL == "" && cfg.Server.PublicBaseURL != "" {
			opts.TwilioURL = cfg.Server.PublicBaseURL + "/whatsapp"
		}
	}
	hooks := webhook.NewServer(queue, opts, logger)
	httpServer := &http.Server{
		Addr:              normalizeAddr(cfg.Server.HTTPAddr),
		Handler:           hooks.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	grpcAddr := normalizeAddr(cfg.Server.GRPCAddr)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", grpcAddr, "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("webhook listening", "addr", httpServer.Addr, "provider", cfg.WhatsApp.Provider)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc health listening", "addr", grpcAddr)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(sctx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		queue.Shutdown(sctx)
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func normalizeAddr(addr string) string {
	if addr != "" && !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}
