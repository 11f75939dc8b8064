package sink

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/segmentio/kafka-go"
	"github.com/xuri/excelize/v2"
	_ "modernc.org/sqlite"
)

func sampleRecord(id string) OperationRecord {
	return OperationRecord{
		OperationID: id,
		Sender:      "584141234567",
		Timestamp:   time.Date(2024, 3, 5, 18, 30, 0, 0, time.UTC),
		ProofURL:    "https://x.test/uploads/584141234567.jpg",
		Fields:      map[string]string{"amount": "Bs. 1250.00"},
	}
}

func TestXLSXAppendsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "operaciones.xlsx")
	loc := time.FixedZone("VET", -4*3600)
	x, err := NewXLSX(path, "", loc, nil)
	if err != nil {
		t.Fatalf("NewXLSX: %v", err)
	}
	ctx := context.Background()
	for _, id := range []string{"ARC-00000001", "ARC-00000002"} {
		if err := x.Append(ctx, sampleRecord(id)); err != nil {
			t.Fatalf("Append %s: %v", id, err)
		}
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(DefaultSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "Operación" || len(rows[0]) != 4 {
		t.Fatalf("header = %v", rows[0])
	}
	want := []string{"ARC-00000002", "584141234567", "05/03/2024, 02:30:00 p. m.", "https://x.test/uploads/584141234567.jpg"}
	for i, v := range want {
		if rows[2][i] != v {
			t.Errorf("row 3 col %d = %q, want %q", i, rows[2][i], v)
		}
	}
}

func TestXLSXHonorsCancelledContext(t *testing.T) {
	x, err := NewXLSX(filepath.Join(t.TempDir(), "a.xlsx"), "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := x.Append(ctx, sampleRecord("ARC-1")); err == nil {
		t.Fatal("expected error")
	}
}

func openSQLite(t *testing.T) *entsql.Driver {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", t.Name())
	db, err := stdsql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	drv := entsql.OpenDB(dialect.SQLite, db)
	t.Cleanup(func() { _ = drv.Close() })
	return drv
}

func TestSQLAppendAndList(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQL(ctx, openSQLite(t), "", nil)
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}
	rec := sampleRecord("ARC-AAAAAAAA")
	if err := s.Append(ctx, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	bare := sampleRecord("ARC-BBBBBBBB")
	bare.Fields = nil
	bare.Timestamp = bare.Timestamp.Add(time.Minute)
	if err := s.Append(ctx, bare); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, rec); err == nil {
		t.Fatal("duplicate operation id should fail")
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records", len(got))
	}
	if got[0].OperationID != "ARC-AAAAAAAA" || !got[0].Timestamp.Equal(rec.Timestamp) || got[0].Fields["amount"] != "Bs. 1250.00" {
		t.Errorf("first record = %+v", got[0])
	}
	if got[1].Fields != nil {
		t.Errorf("second record fields = %v", got[1].Fields)
	}
}

func TestSQLReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	drv := openSQLite(t)
	s, err := NewSQL(ctx, drv, "ops", nil)
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}
	if err := s.Append(ctx, sampleRecord("ARC-CCCCCCCC")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	again, err := NewSQL(ctx, drv, "ops", nil)
	if err != nil {
		t.Fatalf("second NewSQL: %v", err)
	}
	got, err := again.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].OperationID != "ARC-CCCCCCCC" {
		t.Fatalf("records after reopen = %+v", got)
	}
}

type fakeWriter struct {
	msgs    []kafka.Message
	WriteFn func(msgs ...kafka.Message) error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.WriteFn != nil {
		if err := f.WriteFn(msgs...); err != nil {
			return err
		}
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaAppend(t *testing.T) {
	w := &fakeWriter{}
	k := NewKafka(w, "receipts.operations", nil)
	if err := k.Append(context.Background(), sampleRecord("ARC-CCCCCCCC")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "ARC-CCCCCCCC" {
		t.Fatalf("messages = %+v", w.msgs)
	}
	var got OperationRecord
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Sender != "584141234567" || got.ProofURL == "" {
		t.Fatalf("record = %+v", got)
	}

	w.WriteFn = func(...kafka.Message) error { return errors.New("broker down") }
	if err := k.Append(context.Background(), sampleRecord("ARC-D")); err == nil {
		t.Fatal("expected error")
	}
}
