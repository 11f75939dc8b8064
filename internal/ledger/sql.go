package ledger

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/proof-receipts/internal/fingerprint"
)

// DefaultTable is the ledger table name.
const DefaultTable = "submission_ledger"

// SQL persists the ledger in a relational table keyed by fingerprint.
// Claim is a single INSERT ... ON CONFLICT DO NOTHING.
type SQL struct {
	drv       dialect.Driver
	table     string
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

type SQLOption func(*SQL)

func WithTable(name string) SQLOption {
	return func(s *SQL) {
		if name != "" {
			s.table = name
		}
	}
}

func WithSQLRetention(d time.Duration) SQLOption {
	return func(s *SQL) {
		if d > 0 {
			s.retention = d
		}
	}
}

func WithSQLClock(now func() time.Time) SQLOption {
	return func(s *SQL) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSQL creates the ledger table if needed and returns the store.
func NewSQL(ctx context.Context, drv dialect.Driver, logger *slog.Logger, opts ...SQLOption) (*SQL, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SQL{drv: drv, table: DefaultTable, now: time.Now, logger: logger}
	for _, o := range opts {
		o(s)
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQL) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.drv.Dialect())
}

const ledgerDDL = `CREATE TABLE IF NOT EXISTS %s (
	fingerprint VARCHAR(64) NOT NULL PRIMARY KEY,
	claimed_at BIGINT NOT NULL
)`

func (s *SQL) migrate(ctx context.Context) error {
	q := fmt.Sprintf(ledgerDDL, s.table)
	if err := s.drv.Exec(ctx, q, []any{}, nil); err != nil {
		s.logger.Error("ledger.sql.migrate_failed", "table", s.table, "error", err)
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

func (s *SQL) Contains(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	where := entsql.EQ("fingerprint", fp.String())
	if s.retention > 0 {
		where = entsql.And(where, entsql.GTE("claimed_at", s.cutoff()))
	}
	q, args := s.builder().Select(entsql.Count("*")).From(entsql.Table(s.table)).Where(where).Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return false, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return false, fmt.Errorf("scan ledger count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQL) Insert(ctx context.Context, fp fingerprint.Fingerprint) error {
	_, err := s.Claim(ctx, fp)
	return err
}

func (s *SQL) Claim(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	if s.retention > 0 {
		q, args := s.builder().Delete(s.table).
			Where(entsql.And(entsql.EQ("fingerprint", fp.String()), entsql.LT("claimed_at", s.cutoff()))).
			Query()
		if err := s.drv.Exec(ctx, q, args, nil); err != nil {
			return false, fmt.Errorf("expire ledger entry: %w", err)
		}
	}

	q, args := s.builder().Insert(s.table).
		Columns("fingerprint", "claimed_at").
		Values(fp.String(), s.now().UnixNano()).
		OnConflict(entsql.ConflictColumns("fingerprint"), entsql.DoNothing()).
		Query()

	var res stdsql.Result
	if err := s.drv.Exec(ctx, q, args, &res); err != nil {
		s.logger.Error("ledger.sql.claim_failed", "fingerprint", fp.Short(), "error", err)
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *SQL) cutoff() int64 {
	return s.now().Add(-s.retention).UnixNano()
}
