package main

import (
	"bytes"
	"context"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/proof-receipts/internal/fingerprint"
	"github.com/joseph-ayodele/proof-receipts/internal/sink"
)

func TestFingerprintCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proof.jpg")
	data := []byte("payment proof bytes")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := fingerprintCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := fingerprint.Of(data).String()
	if !strings.HasPrefix(out.String(), want) {
		t.Fatalf("output %q does not start with %s", out.String(), want)
	}
}

func TestRenderCmdWritesPNG(t *testing.T) {
	out := filepath.Join(t.TempDir(), "r.png")

	var stdout bytes.Buffer
	cmd := renderCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--out", out, "--id", "ARC-0000TEST", "--field", "amount=Bs. 1250.00", "--field", "banco=Banesco"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Fatalf("not a png: %v", err)
	}
	if !strings.Contains(stdout.String(), "ARC-0000TEST") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRenderCmdRejectsUnknownField(t *testing.T) {
	cmd := renderCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--out", filepath.Join(t.TempDir(), "r.png"), "--field", "color=red"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestRecordsExport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SINK_BACKEND", "sql")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_URL", "file:"+filepath.Join(dir, "ops.db"))
	t.Setenv("RECEIPT_TIMEZONE", "UTC")

	ctx := context.Background()
	db, err := openDB(ctx, loadConfig())
	if err != nil {
		t.Fatalf("openDB: %v", err)
	}
	s, err := sink.NewSQL(ctx, db.Driver, "", nil)
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}
	base := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	for i, id := range []string{"ARC-00000001", "ARC-00000002"} {
		rec := sink.OperationRecord{OperationID: id, Sender: "584141234567", Timestamp: base.Add(time.Duration(i) * time.Minute), ProofURL: "https://x/uploads/584141234567.jpg"}
		if err := s.Append(ctx, rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	db.Close(slog.Default())

	out := filepath.Join(dir, "ops.xlsx")
	cmd := recordsCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--export", out})
	if err := cmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sink.DefaultSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[1][0] != "ARC-00000001" || rows[2][0] != "ARC-00000002" {
		t.Fatalf("rows = %v", rows)
	}
}
