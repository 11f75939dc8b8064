package render

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/proof-receipts/constants"
)

func newTestRenderer(t *testing.T) *PNGRenderer {
	t.Helper()
	loc, err := time.LoadLocation("America/Caracas")
	if err != nil {
		loc = time.FixedZone("VET", -4*3600)
	}
	r, err := NewPNGRenderer(Options{BusinessName: "Arcángel Funeraria", ContactLine: "0414-0000000", Location: loc}, nil)
	if err != nil {
		t.Fatalf("NewPNGRenderer: %v", err)
	}
	return r
}

func TestRenderProducesReceiptPNG(t *testing.T) {
	r := newTestRenderer(t)
	rc := Receipt{
		OperationID: "ARC-1A2B3C4D",
		Sender:      "584141234567",
		IssuedAt:    time.Date(2024, 3, 5, 18, 30, 0, 0, time.UTC),
		Fields: map[constants.Field]string{
			constants.FieldAmount: "Bs. 1250.00",
			constants.FieldBank:   strings.Repeat("Banco con nombre muy largo ", 5),
		},
	}
	out, err := r.Render(context.Background(), rc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != Width || b.Dy() != Height {
		t.Fatalf("bounds = %v", b)
	}

	again, err := r.Render(context.Background(), rc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Equal(out, again) {
		t.Fatal("rendering the same receipt twice should give identical bytes")
	}
}

func TestRenderHonorsCancellation(t *testing.T) {
	r := newTestRenderer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Render(ctx, Receipt{OperationID: "ARC-X"}); err == nil {
		t.Fatal("expected context error")
	}
}
