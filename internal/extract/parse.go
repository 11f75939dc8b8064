package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/proof-receipts/constants"
	"github.com/joseph-ayodele/proof-receipts/internal/llm"
)

var (
	reLabeledAmount  = regexp.MustCompile(`(?i)(?:monto|importe|total|cantidad)[^\d\n]{0,20}?(bs\.?\s?s?|ves|\$|usd)?\s*(\d[\d.,]*\d|\d)`)
	reCurrencyAmount = regexp.MustCompile(`(?i)(bs\.?\s?s?\.?|\$|usd|ves)\s*(\d[\d.,]*\d)`)
	reReference      = regexp.MustCompile(`(?i)(?:referencia|ref\.?|operaci[oó]n|comprobante|n[°ºo]\.?\s*de\s*operaci[oó]n)[^\d\n]{0,15}(\d[\d-]{3,})`)
	reDate           = regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})[/.-](\d{4}|\d{2})\b`)
	reISODate        = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	rePayer          = regexp.MustCompile(`(?im)^\s*(?:titular|ordenante|remitente|nombre|pagador)\s*:?\s*([^\n\d]{3,60})$`)
)

// banks is ordered so longer names match first.
var banks = []string{
	"Banco de Venezuela",
	"BBVA Provincial",
	"Banco Nacional de Crédito",
	"Venezolano de Crédito",
	"Banco del Tesoro",
	"Banco Plaza",
	"Banco Activo",
	"Banco Exterior",
	"Bicentenario",
	"Bancamiga",
	"Bancaribe",
	"Banesco",
	"Mercantil",
	"Provincial",
	"Banplus",
	"Sofitasa",
	"BNC",
	"Zelle",
}

// ParseFields pulls payment fields out of OCR text with regular expressions.
func ParseFields(text string) Fields {
	out := Fields{}
	if strings.TrimSpace(text) == "" {
		return out
	}

	if m := reLabeledAmount.FindStringSubmatch(text); m != nil {
		if a := formatAmount(m[1], m[2]); a != "" {
			out[constants.FieldAmount] = a
		}
	}
	if _, ok := out[constants.FieldAmount]; !ok {
		if m := reCurrencyAmount.FindStringSubmatch(text); m != nil {
			if a := formatAmount(m[1], m[2]); a != "" {
				out[constants.FieldAmount] = a
			}
		}
	}

	if m := reReference.FindStringSubmatch(text); m != nil {
		out[constants.FieldReference] = strings.Trim(m[1], "-")
	}

	lower := strings.ToLower(text)
	for _, b := range banks {
		if strings.Contains(lower, strings.ToLower(b)) {
			out[constants.FieldBank] = b
			break
		}
	}

	if m := reDate.FindStringSubmatch(text); m != nil {
		if d := formatDate(m[1], m[2], m[3]); d != "" {
			out[constants.FieldDate] = d
		}
	}

	if m := rePayer.FindStringSubmatch(text); m != nil {
		out[constants.FieldPayer] = strings.TrimSpace(m[1])
	}
	return out
}

// FromLLM converts a model answer into Fields in the same display format as ParseFields.
func FromLLM(p llm.PaymentFields) Fields {
	out := Fields{}
	if p.Amount != "" {
		if a := formatAmount(p.Currency, p.Amount); a != "" {
			out[constants.FieldAmount] = a
		}
	}
	if p.Reference != "" {
		out[constants.FieldReference] = p.Reference
	}
	if p.Bank != "" {
		out[constants.FieldBank] = p.Bank
	}
	if m := reISODate.FindStringSubmatch(p.Date); m != nil {
		if d := formatDate(m[3], m[2], m[1]); d != "" {
			out[constants.FieldDate] = d
		}
	}
	if p.Payer != "" {
		out[constants.FieldPayer] = p.Payer
	}
	return out
}

func formatAmount(currency, raw string) string {
	amount, ok := llm.NormalizeAmount(raw)
	if !ok {
		return ""
	}
	c := strings.ToLower(strings.TrimSpace(currency))
	switch {
	case strings.HasPrefix(c, "bs"), c == "ves":
		return "Bs. " + amount
	case c == "$", c == "usd":
		return "$ " + amount
	default:
		return amount
	}
}

// formatDate renders day/month/year as dd/mm/yyyy, rejecting impossible dates.
func formatDate(day, month, year string) string {
	d, err1 := strconv.Atoi(day)
	m, err2 := strconv.Atoi(month)
	y, err3 := strconv.Atoi(year)
	if err1 != nil || err2 != nil || err3 != nil {
		return ""
	}
	if y < 100 {
		y += 2000
	}
	if d < 1 || d > 31 || m < 1 || m > 12 {
		return ""
	}
	return fmt.Sprintf("%02d/%02d/%04d", d, m, y)
}
