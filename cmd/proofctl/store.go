package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/proof-receipts/internal/common"
	"github.com/joseph-ayodele/proof-receipts/internal/fingerprint"
	"github.com/joseph-ayodele/proof-receipts/internal/ledger"
	"github.com/joseph-ayodele/proof-receipts/internal/repository"
	"github.com/joseph-ayodele/proof-receipts/internal/sink"
)

func openDB(ctx context.Context, cfg *common.Config) (*repository.DB, error) {
	return repository.Open(ctx, repository.Config{
		Driver:      cfg.Database.Driver,
		DSN:         cfg.Database.DSN,
		MaxConns:    2,
		DialTimeout: cfg.Database.DialTimeout,
	}, slog.Default())
}

// openLedger opens the configured durable ledger. The memory backend lives
// inside the daemon and cannot be inspected from here.
func openLedger(ctx context.Context, cfg *common.Config) (ledger.Ledger, func(), error) {
	switch cfg.Ledger.Backend {
	case "redis":
		led, rdb := ledger.NewRedis(ledger.RedisOpts{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Timeout:   cfg.Redis.Timeout,
			Namespace: cfg.Ledger.Namespace,
			Retention: cfg.Ledger.Retention,
		}, nil)
		return led, func() { _ = rdb.Close() }, nil
	case "sql":
		db, err := openDB(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		led, err := ledger.NewSQL(ctx, db.Driver, nil, ledger.WithSQLRetention(cfg.Ledger.Retention))
		if err != nil {
			db.Close(slog.Default())
			return nil, nil, err
		}
		return led, func() { db.Close(slog.Default()) }, nil
	default:
		return nil, nil, fmt.Errorf("ledger backend %q is process-local; set LEDGER_BACKEND to redis or sql", cfg.Ledger.Backend)
	}
}

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the submission ledger",
	}

	check := &cobra.Command{
		Use:   "check [file|fingerprint...]",
		Short: "Report whether proofs were already processed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			led, closeFn, err := openLedger(cmd.Context(), loadConfig())
			if err != nil {
				return err
			}
			defer closeFn()

			for _, arg := range args {
				fp, err := resolveFingerprint(arg)
				if err != nil {
					return err
				}
				seen, err := led.Contains(cmd.Context(), fp)
				if err != nil {
					return err
				}
				state := "new"
				if seen {
					state = "processed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s  %s\n", fp.Short(), state, arg)
			}
			return nil
		},
	}

	var markYes bool
	mark := &cobra.Command{
		Use:   "mark [file|fingerprint...]",
		Short: "Record proofs as processed without issuing receipts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !markYes {
				return fmt.Errorf("refusing to mark without --yes")
			}
			led, closeFn, err := openLedger(cmd.Context(), loadConfig())
			if err != nil {
				return err
			}
			defer closeFn()
			for _, arg := range args {
				fp, err := resolveFingerprint(arg)
				if err != nil {
					return err
				}
				if err := led.Insert(cmd.Context(), fp); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  marked  %s\n", fp.Short(), arg)
			}
			return nil
		},
	}
	mark.Flags().BoolVar(&markYes, "yes", false, "Confirm the write")

	cmd.AddCommand(check, mark)
	return cmd
}

// resolveFingerprint accepts either a hex fingerprint or a path to a proof.
func resolveFingerprint(arg string) (fingerprint.Fingerprint, error) {
	if fp, err := fingerprint.Parse(arg); err == nil {
		return fp, nil
	}
	f, err := os.Open(arg)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return fingerprint.OfReader(f)
}

func recordsCmd() *cobra.Command {
	var export string
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List operation records kept by the SQL sink",
		Long: `List operation records kept by the SQL sink.
With --export the records are copied into a workbook in the same layout
the spreadsheet sink writes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if cfg.Sink.Backend != "sql" {
				return fmt.Errorf("records are only queryable with SINK_BACKEND=sql (got %q)", cfg.Sink.Backend)
			}
			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close(slog.Default())

			s, err := sink.NewSQL(cmd.Context(), db.Driver, "", nil)
			if err != nil {
				return err
			}
			recs, err := s.List(cmd.Context())
			if err != nil {
				return err
			}
			if export != "" {
				return exportRecords(cmd.Context(), cfg, export, recs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "OPERATION\tSENDER\tTIMESTAMP\tPROOF")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.OperationID, r.Sender, r.Timestamp.Format(time.RFC3339), r.ProofURL)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&export, "export", "", "Write the records to this .xlsx file")
	return cmd
}

func exportRecords(ctx context.Context, cfg *common.Config, path string, recs []sink.OperationRecord) error {
	loc, err := time.LoadLocation(cfg.Receipt.Timezone)
	if err != nil {
		loc = time.UTC
	}
	x, err := sink.NewXLSX(path, cfg.Sink.XLSXSheet, loc, nil)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if err := x.Append(ctx, r); err != nil {
			return fmt.Errorf("export %s: %w", r.OperationID, err)
		}
	}
	slog.Info("records exported", "path", path, "count", len(recs))
	return nil
}

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Ping the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close(slog.Default())
			if err := db.HealthCheck(cmd.Context(), 3*time.Second, slog.Default()); err != nil {
				return fmt.Errorf("db health: FAIL (%w)", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "db health: OK (%s)\n", cfg.Database.Driver)
			return nil
		},
	})
	return cmd
}
