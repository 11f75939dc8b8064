package constants

import (
	"strings"
)

// Field is a canonical name for a value extracted from a payment proof.
type Field string

const (
	FieldAmount    Field = "amount"
	FieldReference Field = "reference"
	FieldBank      Field = "bank"
	FieldDate      Field = "date"
	FieldPayer     Field = "payer"
)

var allFields = []Field{
	FieldAmount,
	FieldReference,
	FieldBank,
	FieldDate,
	FieldPayer,
}

// AllFields returns the canonical fields in display order.
func AllFields() []Field {
	out := make([]Field, len(allFields))
	copy(out, allFields)
	return out
}

// FieldLabels are the receipt labels for each field.
var FieldLabels = map[Field]string{
	FieldAmount:    "Monto",
	FieldReference: "Referencia bancaria",
	FieldBank:      "Banco",
	FieldDate:      "Fecha del pago",
	FieldPayer:     "Titular",
}

// CanonicalField maps a free-form label (English or Spanish) to a Field.
func CanonicalField(input string) (Field, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]Field{
		"monto":       FieldAmount,
		"importe":     FieldAmount,
		"total":       FieldAmount,
		"referencia":  FieldReference,
		"ref":         FieldReference,
		"operacion":   FieldReference,
		"operación":   FieldReference,
		"banco":       FieldBank,
		"fecha":       FieldDate,
		"titular":     FieldPayer,
		"ordenante":   FieldPayer,
		"beneficiary": FieldPayer,
	}
	if f, ok := synonyms[normalized]; ok {
		return f, true
	}
	for _, f := range allFields {
		if normalized == string(f) {
			return f, true
		}
	}
	return "", false
}
