package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/proof-receipts/internal/llm"
	"github.com/joseph-ayodele/proof-receipts/internal/media"
	"github.com/joseph-ayodele/proof-receipts/internal/ocr"
)

// LLMExtractor runs OCR first, then asks a model for structured fields.
// Rule-based fields fill whatever the model leaves out.
type LLMExtractor struct {
	r        TextRecognizer
	fe       llm.FieldExtractor
	timezone string
	logger   *slog.Logger
}

func NewLLMExtractor(r TextRecognizer, fe llm.FieldExtractor, timezone string, logger *slog.Logger) *LLMExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExtractor{r: r, fe: fe, timezone: timezone, logger: logger}
}

func (e *LLMExtractor) Extract(ctx context.Context, blob media.Blob) (Fields, error) {
	var res ocr.Result
	if e.r != nil {
		var err error
		res, err = e.r.Recognize(ctx, blob.Data, blob.ContentType)
		if err != nil {
			// the model can still read the attached image
			e.logger.Warn("extract.llm.ocr_failed", "error", err)
		}
	}
	ruleFields := ParseFields(res.Text)

	pf, _, err := e.fe.ExtractFields(ctx, llm.ExtractRequest{
		OCRText:          res.Text,
		Timezone:         e.timezone,
		PrepConfidence:   res.Confidence,
		Image:            blob.Data,
		ImageContentType: blob.ContentType,
	})
	if err != nil {
		if len(ruleFields) > 0 {
			e.logger.Warn("extract.llm.fallback_rules", "error", err, "fields", len(ruleFields))
			return ruleFields, nil
		}
		return Fields{}, fmt.Errorf("llm extract: %w", err)
	}

	fields := FromLLM(pf).Merge(ruleFields)
	e.logger.Info("extract.llm.ok", "fields", len(fields), "ocr_confidence", res.Confidence)
	return fields, nil
}
