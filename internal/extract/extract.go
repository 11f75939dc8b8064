package extract

import (
	"context"

	"github.com/joseph-ayodele/proof-receipts/constants"
	"github.com/joseph-ayodele/proof-receipts/internal/media"
	"github.com/joseph-ayodele/proof-receipts/internal/ocr"
)

// Fields holds the values read off a payment proof, keyed by canonical field.
type Fields map[constants.Field]string

// Strings returns a copy keyed by the field names, for sinks.
func (f Fields) Strings() map[string]string {
	if len(f) == 0 {
		return nil
	}
	out := make(map[string]string, len(f))
	for k, v := range f {
		out[string(k)] = v
	}
	return out
}

// Merge fills the keys missing from f with values from other.
func (f Fields) Merge(other Fields) Fields {
	out := make(Fields, len(f)+len(other))
	for k, v := range other {
		if v != "" {
			out[k] = v
		}
	}
	for k, v := range f {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Extractor reads payment fields from a proof. Callers treat an error as
// "no fields" and carry on.
type Extractor interface {
	Extract(ctx context.Context, blob media.Blob) (Fields, error)
}

// TextRecognizer is Stage 1: bytes -> text.
type TextRecognizer interface {
	Recognize(ctx context.Context, data []byte, contentType string) (ocr.Result, error)
}

// Nop never extracts anything.
type Nop struct{}

func (Nop) Extract(context.Context, media.Blob) (Fields, error) { return Fields{}, nil }
