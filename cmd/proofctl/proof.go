package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/proof-receipts/constants"
	"github.com/joseph-ayodele/proof-receipts/internal/extract"
	"github.com/joseph-ayodele/proof-receipts/internal/fingerprint"
	"github.com/joseph-ayodele/proof-receipts/internal/llm/openai"
	"github.com/joseph-ayodele/proof-receipts/internal/media"
	"github.com/joseph-ayodele/proof-receipts/internal/ocr"
	"github.com/joseph-ayodele/proof-receipts/internal/pipeline"
	"github.com/joseph-ayodele/proof-receipts/internal/render"
)

func readProof(path string) (media.Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return media.Blob{}, err
	}
	ct := http.DetectContentType(data)
	if ext := filepath.Ext(path); ext != "" {
		ct = constants.ContentTypeForExt(ext)
	}
	return media.Blob{Data: data, ContentType: ct}, nil
}

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint [file...]",
		Short: "Print the content fingerprint of proof files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				fp, err := fingerprint.OfReader(f)
				f.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", fp, path)
			}
			return nil
		},
	}
}

func renderCmd() *cobra.Command {
	var (
		out    string
		sender string
		id     string
		fields []string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a receipt PNG with the configured branding",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			loc, err := time.LoadLocation(cfg.Receipt.Timezone)
			if err != nil {
				loc = time.UTC
			}
			r, err := render.NewPNGRenderer(render.Options{
				BusinessName: cfg.Receipt.BusinessName,
				ContactLine:  cfg.Receipt.ContactLine,
				Location:     loc,
			}, nil)
			if err != nil {
				return err
			}

			rec := render.Receipt{
				OperationID: id,
				Sender:      sender,
				IssuedAt:    time.Now(),
				Fields:      map[constants.Field]string{},
			}
			if rec.OperationID == "" {
				rec.OperationID = pipeline.NewOperationID(cfg.Receipt.IDPrefix)
			}
			for _, kv := range fields {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("field %q: want name=value", kv)
				}
				f, ok := constants.CanonicalField(k)
				if !ok {
					return fmt.Errorf("unknown field %q", k)
				}
				rec.Fields[f] = v
			}

			png, err := r.Render(cmd.Context(), rec)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", rec.OperationID, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "receipt.png", "Output file")
	cmd.Flags().StringVar(&sender, "sender", "584141234567", "Sender number printed on the receipt")
	cmd.Flags().StringVar(&id, "id", "", "Operation id (generated when empty)")
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Extracted field as name=value (repeatable)")
	return cmd
}

func extractCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Run field extraction on a proof and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			blob, err := readProof(args[0])
			if err != nil {
				return err
			}
			engine := ocr.NewEngine(ocr.Config{
				Tesseract:     cfg.Extract.Tesseract,
				TesseractLang: cfg.Extract.TesseractLang,
				TessdataDir:   cfg.Extract.TessdataDir,
				WorkDir:       cfg.Extract.WorkDir,
			}, nil)

			var ex extract.Extractor = extract.NewOCRExtractor(engine, nil)
			if mode == "llm" {
				ex = extract.NewLLMExtractor(engine, openai.NewClient(openai.Config{
					APIKey:          cfg.LLM.APIKey,
					BaseURL:         cfg.LLM.BaseURL,
					Model:           cfg.LLM.Model,
					Temperature:     cfg.LLM.Temperature,
					Timeout:         cfg.LLM.Timeout,
					LenientOptional: true,
				}, nil), cfg.Receipt.Timezone, nil)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Pipeline.ExtractTimeout)
			defer cancel()
			fields, err := ex.Extract(ctx, blob)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(fields.Strings())
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "ocr", "Extractor: ocr or llm")
	return cmd
}
