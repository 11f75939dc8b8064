package llm

// BuildPaymentJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// It is sent to the model as an output constraint and used locally to validate.
func BuildPaymentJSONSchema() map[string]any {
	props := map[string]any{
		"amount":     map[string]any{"type": "string", "pattern": `^\d+(\.\d{1,2})?$`},
		"currency":   map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
		"reference":  map[string]any{"type": "string", "pattern": `^[0-9A-Za-z-]{4,30}$`},
		"bank":       map[string]any{"type": "string", "minLength": 2},
		"date":       map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"payer":      map[string]any{"type": "string", "minLength": 2},
		"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"amount"},
	}
}
