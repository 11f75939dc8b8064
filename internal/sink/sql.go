package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// DefaultTable is the operation records table name.
const DefaultTable = "operation_records"

// SQL inserts records into a relational table.
type SQL struct {
	drv    dialect.Driver
	table  string
	logger *slog.Logger
}

const recordsDDL = `CREATE TABLE IF NOT EXISTS %s (
	operation_id VARCHAR(32) NOT NULL PRIMARY KEY,
	sender VARCHAR(32) NOT NULL,
	recorded_at BIGINT NOT NULL,
	proof_url TEXT NOT NULL,
	fields TEXT
)`

// NewSQL creates the records table if needed.
func NewSQL(ctx context.Context, drv dialect.Driver, table string, logger *slog.Logger) (*SQL, error) {
	if table == "" {
		table = DefaultTable
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &SQL{drv: drv, table: table, logger: logger}
	if err := drv.Exec(ctx, fmt.Sprintf(recordsDDL, table), []any{}, nil); err != nil {
		return nil, fmt.Errorf("create %s: %w", table, err)
	}
	return s, nil
}

func (s *SQL) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.drv.Dialect())
}

func (s *SQL) Append(ctx context.Context, rec OperationRecord) error {
	var fields any
	if len(rec.Fields) > 0 {
		b, err := json.Marshal(rec.Fields)
		if err != nil {
			return fmt.Errorf("encode fields: %w", err)
		}
		fields = string(b)
	}
	q, args := s.builder().Insert(s.table).
		Columns("operation_id", "sender", "recorded_at", "proof_url", "fields").
		Values(rec.OperationID, rec.Sender, rec.Timestamp.UnixNano(), rec.ProofURL, fields).
		Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		s.logger.Error("sink.sql.insert_failed", "operation_id", rec.OperationID, "error", err)
		return fmt.Errorf("insert %s: %w", s.table, err)
	}
	return nil
}

// List returns every record in insertion order, for the CLI and tests.
func (s *SQL) List(ctx context.Context) ([]OperationRecord, error) {
	q, args := s.builder().
		Select("operation_id", "sender", "recorded_at", "proof_url", "fields").
		From(entsql.Table(s.table)).
		OrderBy("recorded_at").
		Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	var out []OperationRecord
	for rows.Next() {
		var (
			rec    OperationRecord
			nanos  int64
			fields *string
		)
		if err := rows.Scan(&rec.OperationID, &rec.Sender, &nanos, &rec.ProofURL, &fields); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		rec.Timestamp = time.Unix(0, nanos).UTC()
		if fields != nil && *fields != "" {
			if err := json.Unmarshal([]byte(*fields), &rec.Fields); err != nil {
				return nil, fmt.Errorf("decode fields: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
