package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strconv"
	"strings"
)

var (
	reRefDigits = regexp.MustCompile(`\d[\d-]{3,}`)
	reDMY        = regexp.MustCompile(`^(\d{1,2})[/.-](\d{1,2})[/.-](\d{4})$`)
)

var allowedKeys = map[string]struct{}{
	"amount": {}, "currency": {}, "reference": {}, "bank": {},
	"date": {}, "payer": {}, "confidence": {},
}

// NormalizeAndSanitizeJSON makes a model answer fit the payment schema:
//   - renames known synonyms (monto -> amount, referencia -> reference, ...)
//   - drops null/empty values and unknown keys
//   - coerces amounts to dot-decimal strings and dd/mm/yyyy dates to ISO
//
// It returns the rewritten document and a list of the keys it touched.
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	rename := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}
	rename("monto", "amount")
	rename("total", "amount")
	rename("referencia", "reference")
	rename("reference_number", "reference")
	rename("banco", "bank")
	rename("fecha", "date")
	rename("titular", "payer")
	rename("currency_code", "currency")

	if v, ok := m["amount"]; ok {
		switch t := v.(type) {
		case float64:
			m["amount"] = strconv.FormatFloat(t, 'f', 2, 64)
		case string:
			if a, ok := NormalizeAmount(t); ok {
				m["amount"] = a
			} else {
				delete(m, "amount")
				dropped = append(dropped, "amount(format)")
			}
		default:
			delete(m, "amount")
			dropped = append(dropped, "amount(type)")
		}
	}

	if v, ok := m["reference"]; ok {
		switch t := v.(type) {
		case float64:
			m["reference"] = strconv.FormatFloat(t, 'f', 0, 64)
		case string:
			if ref := reRefDigits.FindString(t); ref != "" {
				m["reference"] = strings.Trim(ref, "-")
			}
		}
	}
	if v, ok := m["currency"].(string); ok {
		m["currency"] = strings.ToUpper(strings.TrimSpace(v))
	}
	if v, ok := m["date"].(string); ok {
		s := strings.TrimSpace(v)
		if mm := reDMY.FindStringSubmatch(s); mm != nil {
			d, _ := strconv.Atoi(mm[1])
			mo, _ := strconv.Atoi(mm[2])
			s = fmt.Sprintf("%s-%02d-%02d", mm[3], mo, d)
		}
		m["date"] = s
	}

	for k := range maps.Clone(m) {
		if _, ok := allowedKeys[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
			continue
		}
		switch t := m[k].(type) {
		case nil:
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

// NormalizeAmount turns "Bs. 1.250,50", "1,250.50" or "300" into "1250.50".
func NormalizeAmount(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimFunc(s, func(r rune) bool { return !(r >= '0' && r <= '9') })
	if s == "" {
		return "", false
	}
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma > lastDot:
		// comma is the decimal mark unless it groups exactly three digits with no dots
		if lastDot < 0 && len(s)-lastComma-1 == 3 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			i := strings.LastIndex(s, ",")
			s = strings.ReplaceAll(s[:i], ",", "") + "." + s[i+1:]
		}
	case lastDot > lastComma:
		if lastComma < 0 && (strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3) {
			s = strings.ReplaceAll(s, ".", "")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', 2, 64), true
}
