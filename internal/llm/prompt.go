package llm

import (
	"strings"
)

// maxPromptText caps the OCR text sent to the model.
const maxPromptText = 3000

// BuildSystemPrompt tells the model what a Venezuelan transfer confirmation
// looks like and how to format each field.
func BuildSystemPrompt(req ExtractRequest) string {
	parts := []string{
		"You read payment confirmations (bank transfers, pago movil, Zelle) sent as proof of payment to a funeral home.",
		"Return ONLY JSON that matches the provided JSON Schema.",
		"'amount' is the transferred amount as a plain decimal with a dot separator, no thousands separators, no currency symbol.",
		"'currency' is a 3-letter ISO 4217 code; Bs. and Bs.S mean VES, $ means USD.",
		"'reference' is the bank operation or reference number, digits only.",
		"'bank' is the issuing bank name as printed (Banesco, Mercantil, Banco de Venezuela, ...).",
		"'date' is the payment date in ISO-8601 (YYYY-MM-DD); receipts print dates as dd/mm/yyyy.",
		"'payer' is the account holder who sent the money, if printed.",
		"Never output null. If a field is not present, omit it.",
	}
	if tz := strings.TrimSpace(req.Timezone); tz != "" {
		parts = append(parts, "If dates are ambiguous, prefer timezone: "+tz+".")
	}
	return strings.Join(parts, " ")
}

func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	b.WriteString("OCR text (first ~3k chars):\n")
	ocr := req.OCRText
	if len(ocr) > maxPromptText {
		ocr = ocr[:maxPromptText]
	}
	if strings.TrimSpace(ocr) == "" {
		ocr = "(no text recognized; use the attached image)"
	}
	b.WriteString(ocr)
	return b.String()
}
