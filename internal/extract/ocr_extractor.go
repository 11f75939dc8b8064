package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/proof-receipts/internal/media"
)

// OCRExtractor recognizes the proof's text and parses fields with rules.
type OCRExtractor struct {
	r      TextRecognizer
	logger *slog.Logger
}

func NewOCRExtractor(r TextRecognizer, logger *slog.Logger) *OCRExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRExtractor{r: r, logger: logger}
}

func (e *OCRExtractor) Extract(ctx context.Context, blob media.Blob) (Fields, error) {
	res, err := e.r.Recognize(ctx, blob.Data, blob.ContentType)
	if err != nil {
		return Fields{}, fmt.Errorf("recognize: %w", err)
	}
	fields := ParseFields(res.Text)
	e.logger.Info("extract.ocr.ok",
		"method", res.Method,
		"confidence", res.Confidence,
		"fields", len(fields),
	)
	return fields, nil
}
