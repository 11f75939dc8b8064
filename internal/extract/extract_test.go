package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/joseph-ayodele/proof-receipts/constants"
	"github.com/joseph-ayodele/proof-receipts/internal/llm"
	"github.com/joseph-ayodele/proof-receipts/internal/media"
	"github.com/joseph-ayodele/proof-receipts/internal/ocr"
)

const sampleProof = `Banesco Banco Universal
Transferencia exitosa
Monto: Bs. 1.250,00
Fecha: 05/03/2024
Referencia: 000123456789
Titular: Maria Perez`

func TestParseFields(t *testing.T) {
	got := ParseFields(sampleProof)
	want := Fields{
		constants.FieldAmount:    "Bs. 1250.00",
		constants.FieldBank:      "Banesco",
		constants.FieldDate:      "05/03/2024",
		constants.FieldReference: "000123456789",
		constants.FieldPayer:     "Maria Perez",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestParseFieldsPartial(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		field constants.Field
		want  string
	}{
		{"dollar amount", "Zelle payment $ 45.00 sent", constants.FieldAmount, "$ 45.00"},
		{"operation number", "Nro. de operación: 9988776655", constants.FieldReference, "9988776655"},
		{"longest bank name wins", "BBVA Provincial pago movil", constants.FieldBank, "BBVA Provincial"},
		{"two digit year", "fecha 1-2-24", constants.FieldDate, "01/02/2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseFields(tt.text)[tt.field]; got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
	if n := len(ParseFields("   ")); n != 0 {
		t.Fatalf("blank text gave %d fields", n)
	}
}

type fakeRecognizer struct {
	RecognizeFn func(data []byte, ct string) (ocr.Result, error)
}

func (f fakeRecognizer) Recognize(_ context.Context, data []byte, ct string) (ocr.Result, error) {
	return f.RecognizeFn(data, ct)
}

type fakeFieldExtractor struct {
	ExtractFieldsFn func(req llm.ExtractRequest) (llm.PaymentFields, error)
}

func (f fakeFieldExtractor) ExtractFields(_ context.Context, req llm.ExtractRequest) (llm.PaymentFields, []byte, error) {
	p, err := f.ExtractFieldsFn(req)
	return p, nil, err
}

func TestOCRExtractor(t *testing.T) {
	r := fakeRecognizer{RecognizeFn: func(data []byte, ct string) (ocr.Result, error) {
		if ct != "image/jpeg" {
			t.Fatalf("content type %q", ct)
		}
		return ocr.Result{Text: sampleProof}, nil
	}}
	got, err := NewOCRExtractor(r, nil).Extract(context.Background(), media.Blob{Data: []byte("x"), ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got[constants.FieldReference] != "000123456789" {
		t.Fatalf("fields = %v", got)
	}

	failing := fakeRecognizer{RecognizeFn: func([]byte, string) (ocr.Result, error) { return ocr.Result{}, errors.New("no tesseract") }}
	if _, err := NewOCRExtractor(failing, nil).Extract(context.Background(), media.Blob{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestLLMExtractorMergesRules(t *testing.T) {
	r := fakeRecognizer{RecognizeFn: func([]byte, string) (ocr.Result, error) {
		return ocr.Result{Text: sampleProof, Confidence: 0.8}, nil
	}}
	fe := fakeFieldExtractor{ExtractFieldsFn: func(req llm.ExtractRequest) (llm.PaymentFields, error) {
		if req.OCRText != sampleProof || req.PrepConfidence != 0.8 {
			t.Fatalf("unexpected request %+v", req)
		}
		return llm.PaymentFields{Amount: "1250.00", Currency: "VES", Date: "2024-03-05", Bank: "Banesco Banco Universal"}, nil
	}}
	got, err := NewLLMExtractor(r, fe, "America/Caracas", nil).Extract(context.Background(), media.Blob{Data: []byte("x")})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got[constants.FieldBank] != "Banesco Banco Universal" {
		t.Errorf("model value should win, got %q", got[constants.FieldBank])
	}
	if got[constants.FieldDate] != "05/03/2024" || got[constants.FieldAmount] != "Bs. 1250.00" {
		t.Errorf("unexpected fields %v", got)
	}
	if got[constants.FieldPayer] != "Maria Perez" {
		t.Errorf("rule value should fill gaps, got %q", got[constants.FieldPayer])
	}
}

func TestLLMExtractorFallsBackToRules(t *testing.T) {
	r := fakeRecognizer{RecognizeFn: func([]byte, string) (ocr.Result, error) { return ocr.Result{Text: sampleProof}, nil }}
	fe := fakeFieldExtractor{ExtractFieldsFn: func(llm.ExtractRequest) (llm.PaymentFields, error) {
		return llm.PaymentFields{}, errors.New("rate limited")
	}}
	got, err := NewLLMExtractor(r, fe, "", nil).Extract(context.Background(), media.Blob{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got[constants.FieldAmount] != "Bs. 1250.00" {
		t.Fatalf("fields = %v", got)
	}

	blank := fakeRecognizer{RecognizeFn: func([]byte, string) (ocr.Result, error) { return ocr.Result{}, nil }}
	if _, err := NewLLMExtractor(blank, fe, "", nil).Extract(context.Background(), media.Blob{}); err == nil {
		t.Fatal("expected error when neither path yields fields")
	}
}
