package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/proof-receipts/internal/llm"
)

// ExtractFields implements llm.FieldExtractor with chat/completions in JSON
// mode. The proof image is attached when OCR confidence is low.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.PaymentFields, []byte, error) {
	rid := uuid.NewString()
	start := time.Now()

	attach, dataURL := llm.ShouldAttachImage(req)
	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.OCRText),
		"prep_confidence", req.PrepConfidence,
		"attach_image", attach,
	)

	schema := llm.BuildPaymentJSONSchema()
	userText := llm.BuildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."
	var userContent any = userText
	if attach {
		userContent = []map[string]any{
			{"type": "text", "text": userText},
			{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
		}
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req)},
			{"role": "user", "content": userContent},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.PaymentFields{}, nil, fmt.Errorf("openai: %w", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return llm.PaymentFields{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices", "req_id", rid, "raw", string(raw))
		return llm.PaymentFields{}, raw, fmt.Errorf("no choices in openai response")
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	validator, err := llm.PaymentSchema()
	if err != nil {
		return llm.PaymentFields{}, content, err
	}
	if err := validator.Validate(content); err != nil {
		if !c.cfg.LenientOptional {
			c.log.Error("llm.extract.schema_validation_failed", "req_id", rid, "error", err, "content", string(content))
			return llm.PaymentFields{}, content, fmt.Errorf("schema validation failed: %w", err)
		}
		cleaned, dropped, sErr := llm.NormalizeAndSanitizeJSON(content, c.log)
		if sErr != nil {
			c.log.Error("llm.extract.sanitize_failed", "req_id", rid, "error", sErr)
			return llm.PaymentFields{}, content, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := validator.Validate(cleaned); vErr != nil {
			c.log.Error("llm.extract.schema_validation_failed", "req_id", rid, "error", vErr, "content", string(cleaned))
			return llm.PaymentFields{}, cleaned, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.log.Warn("llm.extract.lenient_sanitize_applied", "req_id", rid, "dropped", dropped)
		content = cleaned
	}

	var out llm.PaymentFields
	if err := json.Unmarshal(content, &out); err != nil {
		return llm.PaymentFields{}, content, fmt.Errorf("unmarshal fields: %w", err)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"amount", out.Amount,
		"currency", out.Currency,
		"bank", out.Bank,
		"date", out.Date,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
