package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/proof-receipts/internal/common"
)

// DefaultSheet is the worksheet rows are appended to.
const DefaultSheet = "Operaciones"

var xlsxHeaders = []any{"Operación", "Teléfono", "Fecha", "Comprobante"}

// XLSX appends records to a local workbook, one row per record in columns A:D.
type XLSX struct {
	mu     sync.Mutex
	path   string
	sheet  string
	loc    *time.Location
	logger *slog.Logger
}

func NewXLSX(path, sheet string, loc *time.Location, logger *slog.Logger) (*XLSX, error) {
	if path == "" {
		return nil, errors.New("xlsx sink: path is required")
	}
	if sheet == "" {
		sheet = DefaultSheet
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("xlsx sink: mkdir: %w", err)
		}
	}
	return &XLSX{path: path, sheet: sheet, loc: loc, logger: logger}, nil
}

func (x *XLSX) Append(ctx context.Context, rec OperationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	f, err := x.open()
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			x.logger.Warn("sink.xlsx.close_failed", "error", err)
		}
	}()

	rows, err := f.GetRows(x.sheet)
	if err != nil {
		return fmt.Errorf("xlsx sink: read rows: %w", err)
	}
	next := len(rows) + 1
	if next == 1 {
		if err := f.SetSheetRow(x.sheet, "A1", &xlsxHeaders); err != nil {
			return fmt.Errorf("xlsx sink: header: %w", err)
		}
		next = 2
	}

	row := []any{
		rec.OperationID,
		rec.Sender,
		common.FormatTimestamp(rec.Timestamp.In(x.loc)),
		rec.ProofURL,
	}
	cell, _ := excelize.CoordinatesToCellName(1, next)
	if err := f.SetSheetRow(x.sheet, cell, &row); err != nil {
		return fmt.Errorf("xlsx sink: write row: %w", err)
	}
	if err := f.SaveAs(x.path); err != nil {
		return fmt.Errorf("xlsx sink: save: %w", err)
	}
	x.logger.Info("sink.xlsx.appended", "operation_id", rec.OperationID, "row", next)
	return nil
}

func (x *XLSX) open() (*excelize.File, error) {
	var f *excelize.File
	if _, err := os.Stat(x.path); err == nil {
		f, err = excelize.OpenFile(x.path)
		if err != nil {
			return nil, fmt.Errorf("xlsx sink: open: %w", err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
	} else {
		return nil, fmt.Errorf("xlsx sink: stat: %w", err)
	}

	if index, _ := f.GetSheetIndex(x.sheet); index == -1 {
		index, err := f.NewSheet(x.sheet)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("xlsx sink: new sheet: %w", err)
		}
		f.SetActiveSheet(index)
		// a fresh workbook carries an empty "Sheet1"
		if x.sheet != "Sheet1" {
			if i, _ := f.GetSheetIndex("Sheet1"); i != -1 {
				_ = f.DeleteSheet("Sheet1")
			}
		}
	}
	return f, nil
}
