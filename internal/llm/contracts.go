package llm

import "context"

// PaymentFields is the normalized shape we want from the LLM.
type PaymentFields struct {
	Amount          string  `json:"amount,omitempty"`    // decimal, dot separator
	Currency        string  `json:"currency,omitempty"`  // ISO 4217, VES or USD in practice
	Reference       string  `json:"reference,omitempty"` // bank reference digits
	Bank            string  `json:"bank,omitempty"`
	Date            string  `json:"date,omitempty"` // YYYY-MM-DD
	Payer           string  `json:"payer,omitempty"`
	ModelConfidence float32 `json:"confidence,omitempty"` // optional (0..1)
}

type ExtractRequest struct {
	OCRText        string
	Timezone       string
	PrepConfidence float32

	// Image is attached for vision models when OCR confidence is low.
	Image            []byte
	ImageContentType string
}

// FieldExtractor is the interface the extraction layer depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (PaymentFields, []byte /*rawJSON*/, error)
}
