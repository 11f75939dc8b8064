package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/joseph-ayodele/proof-receipts/internal/common"
	"github.com/joseph-ayodele/proof-receipts/internal/extract"
	"github.com/joseph-ayodele/proof-receipts/internal/ledger"
	"github.com/joseph-ayodele/proof-receipts/internal/llm/openai"
	"github.com/joseph-ayodele/proof-receipts/internal/media"
	"github.com/joseph-ayodele/proof-receipts/internal/notify"
	"github.com/joseph-ayodele/proof-receipts/internal/ocr"
	"github.com/joseph-ayodele/proof-receipts/internal/pipeline"
	"github.com/joseph-ayodele/proof-receipts/internal/render"
	"github.com/joseph-ayodele/proof-receipts/internal/repository"
	"github.com/joseph-ayodele/proof-receipts/internal/sink"
	"github.com/joseph-ayodele/proof-receipts/internal/webhook"
)

const (
	uploadsRoute  = "/uploads"
	receiptsRoute = "/recibos"
)

type app struct {
	pipeline *pipeline.Pipeline
	mounts   []webhook.Mount
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build wires the pipeline's collaborators from configuration. On error the
// resources opened so far are released.
func build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (a *app, err error) {
	a = &app{}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	loc, lerr := time.LoadLocation(cfg.Receipt.Timezone)
	if lerr != nil {
		logger.Warn("unknown receipt timezone, using UTC", "timezone", cfg.Receipt.Timezone, "error", lerr)
		loc = time.UTC
	}

	var db *repository.DB
	if cfg.Ledger.Backend == "sql" || cfg.Sink.Backend == "sql" {
		db, err = repository.Open(ctx, repository.Config{
			Driver:           cfg.Database.Driver,
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			return a, fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, func() { db.Close(logger) })
		if err = db.HealthCheck(ctx, 5*time.Second, logger); err != nil {
			return a, fmt.Errorf("database health: %w", err)
		}
	}

	led, err := buildLedger(ctx, cfg, db, a, logger)
	if err != nil {
		return a, err
	}
	uploads, receipts, err := buildStores(ctx, cfg, a, logger)
	if err != nil {
		return a, err
	}
	snk, err := buildSink(ctx, cfg, db, loc, a, logger)
	if err != nil {
		return a, err
	}
	fetcher, notifier, err := buildProvider(cfg, logger)
	if err != nil {
		return a, err
	}

	renderer, err := render.NewPNGRenderer(render.Options{
		BusinessName: cfg.Receipt.BusinessName,
		ContactLine:  cfg.Receipt.ContactLine,
		Location:     loc,
	}, logger)
	if err != nil {
		return a, fmt.Errorf("renderer: %w", err)
	}

	a.pipeline, err = pipeline.New(pipeline.Deps{
		Fetcher:   fetcher,
		Uploads:   uploads,
		Receipts:  receipts,
		Ledger:    led,
		Extractor: buildExtractor(cfg, logger),
		Renderer:  renderer,
		Notifier:  notifier,
		Sink:      snk,
	}, pipeline.Options{
		FetchTimeout:   cfg.Pipeline.FetchTimeout,
		StoreTimeout:   cfg.Pipeline.StoreTimeout,
		ExtractTimeout: cfg.Pipeline.ExtractTimeout,
		RenderTimeout:  cfg.Pipeline.RenderTimeout,
		NotifyTimeout:  cfg.Pipeline.NotifyTimeout,
		SinkTimeout:    cfg.Pipeline.SinkTimeout,
		FailureNotice:  cfg.Pipeline.FailureNotice,
		IDPrefix:       cfg.Receipt.IDPrefix,
	}, logger)
	return a, err
}

func buildLedger(ctx context.Context, cfg *common.Config, db *repository.DB, a *app, logger *slog.Logger) (ledger.Ledger, error) {
	switch cfg.Ledger.Backend {
	case "redis":
		led, rdb := ledger.NewRedis(ledger.RedisOpts{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Timeout:   cfg.Redis.Timeout,
			Namespace: cfg.Ledger.Namespace,
			Retention: cfg.Ledger.Retention,
		}, logger)
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return led, nil
	case "sql":
		return ledger.NewSQL(ctx, db.Driver, logger, ledger.WithSQLRetention(cfg.Ledger.Retention))
	default:
		logger.Warn("using in-memory ledger, duplicates are forgotten on restart")
		return ledger.NewMemory(logger, ledger.WithRetention(cfg.Ledger.Retention)), nil
	}
}

func buildStores(ctx context.Context, cfg *common.Config, a *app, logger *slog.Logger) (media.Store, media.Store, error) {
	if cfg.Store.Backend == "minio" {
		mc, err := media.NewMinIOClient(ctx, media.MinIOOpts{
			Endpoint:  cfg.Store.MinioEndpoint,
			AccessKey: cfg.Store.MinioAccessKey,
			SecretKey: cfg.Store.MinioSecretKey,
			Bucket:    cfg.Store.MinioBucket,
			UseTLS:    cfg.Store.MinioUseTLS,
			URLExpiry: cfg.Store.MinioURLExpiry,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("minio: %w", err)
		}
		uploads := media.NewMinIOStore(mc, cfg.Store.MinioBucket, "uploads", cfg.Store.MinioURLExpiry, logger)
		receipts := media.NewMinIOStore(mc, cfg.Store.MinioBucket, "recibos", cfg.Store.MinioURLExpiry, logger)
		return uploads, receipts, nil
	}

	uploads, err := media.NewFSStore(cfg.Store.UploadsDir, cfg.Server.PublicBaseURL, uploadsRoute, logger)
	if err != nil {
		return nil, nil, err
	}
	receipts, err := media.NewFSStore(cfg.Store.ReceiptsDir, cfg.Server.PublicBaseURL, receiptsRoute, logger)
	if err != nil {
		return nil, nil, err
	}
	a.mounts = append(a.mounts,
		webhook.Mount{Route: uploads.RoutePrefix(), Dir: uploads.Dir()},
		webhook.Mount{Route: receipts.RoutePrefix(), Dir: receipts.Dir()},
	)
	return uploads, receipts, nil
}

func buildSink(ctx context.Context, cfg *common.Config, db *repository.DB, loc *time.Location, a *app, logger *slog.Logger) (sink.Sink, error) {
	switch cfg.Sink.Backend {
	case "sql":
		return sink.NewSQL(ctx, db.Driver, "", logger)
	case "kafka":
		k := sink.NewKafka(sink.NewKafkaWriter(cfg.Sink.KafkaBrokers, cfg.Sink.KafkaTopic), cfg.Sink.KafkaTopic, logger)
		a.closers = append(a.closers, func() {
			if err := k.Close(); err != nil {
				logger.Warn("kafka writer close", "error", err)
			}
		})
		return k, nil
	default:
		return sink.NewXLSX(cfg.Sink.XLSXPath, cfg.Sink.XLSXSheet, loc, logger)
	}
}

func buildProvider(cfg *common.Config, logger *slog.Logger) (media.Fetcher, notify.Notifier, error) {
	hc := &http.Client{Timeout: cfg.WhatsApp.HTTPTimeout}
	wa := cfg.WhatsApp

	if wa.Provider == "cloud" {
		n, err := notify.NewCloud(wa.CloudGraphURL, wa.CloudToken, wa.CloudPhoneNumberID, logger, notify.WithCloudHTTPClient(hc))
		if err != nil {
			return nil, nil, err
		}
		f := media.NewGraphFetcher(wa.CloudGraphURL, wa.CloudToken, logger, media.WithGraphFetchClient(hc))
		return f, n, nil
	}

	n, err := notify.NewTwilio(wa.TwilioSID, wa.TwilioAuth, wa.TwilioFrom, logger,
		notify.WithTwilioHTTPClient(hc), notify.WithTwilioBaseURL(wa.TwilioURL))
	if err != nil {
		return nil, nil, err
	}
	f := media.NewTwilioFetcher(wa.TwilioSID, wa.TwilioAuth, logger, media.WithTwilioFetchClient(hc))
	return f, n, nil
}

func buildExtractor(cfg *common.Config, logger *slog.Logger) extract.Extractor {
	if cfg.Extract.Mode == "none" {
		return extract.Nop{}
	}
	engine := ocr.NewEngine(ocr.Config{
		Tesseract:     cfg.Extract.Tesseract,
		TesseractLang: cfg.Extract.TesseractLang,
		TessdataDir:   cfg.Extract.TessdataDir,
		WorkDir:       cfg.Extract.WorkDir,
	}, logger)
	if cfg.Extract.Mode == "llm" {
		client := openai.NewClient(openai.Config{
			APIKey:          cfg.LLM.APIKey,
			BaseURL:         cfg.LLM.BaseURL,
			Model:           cfg.LLM.Model,
			Temperature:     cfg.LLM.Temperature,
			Timeout:         cfg.LLM.Timeout,
			LenientOptional: true,
		}, logger)
		return extract.NewLLMExtractor(engine, client, cfg.Receipt.Timezone, logger)
	}
	return extract.NewOCRExtractor(engine, logger)
}
