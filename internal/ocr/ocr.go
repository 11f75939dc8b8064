package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/proof-receipts/constants"
)

// minPDFTextLen is the shortest embedded text layer trusted before falling
// back to rasterizing the PDF.
const minPDFTextLen = 20

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "spa"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 300
	MaxPages      int // 0 = no limit

	EnableTSVConfidence bool
	PSM                 int
	OEM                 int

	WorkDir string // scratch space for temp files; empty uses the OS temp dir
}

type Result struct {
	Text       string
	Pages      int
	Method     string // "image-ocr" | "pdf-text" | "pdf-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

// Engine turns proof bytes into text with tesseract and poppler.
type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Engine)

// WithRunner swaps the command runner, mostly for tests.
func WithRunner(r Runner) Option {
	return func(e *Engine) { e.runner = r }
}

func NewEngine(cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "spa"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	e := &Engine{cfg: cfg, runner: ExecRunner{Logger: logger}, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recognize writes data to a scratch file and extracts its text. PDFs use the
// embedded text layer when there is one.
func (e *Engine) Recognize(ctx context.Context, data []byte, contentType string) (Result, error) {
	start := time.Now()
	ext := constants.ExtForContentType(contentType)

	dir, err := os.MkdirTemp(e.cfg.WorkDir, "proof-ocr-*")
	if err != nil {
		return Result{}, fmt.Errorf("ocr scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("ocr.cleanup_failed", "dir", dir, "error", err)
		}
	}()
	path := filepath.Join(dir, "proof."+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Result{}, fmt.Errorf("ocr scratch file: %w", err)
	}

	e.logger.Debug("ocr.start", "ext", ext, "bytes", len(data))
	var res Result
	if ext == "pdf" {
		res, err = e.recognizePDF(ctx, path, dir)
	} else {
		res, err = e.recognizeImage(ctx, path)
	}
	res.Duration = time.Since(start)
	res.Language = e.cfg.TesseractLang
	if err != nil {
		return res, err
	}
	e.logger.Info("ocr.ok",
		"method", res.Method,
		"pages", res.Pages,
		"text_len", len(res.Text),
		"confidence", res.Confidence,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Engine) recognizeImage(ctx context.Context, path string) (Result, error) {
	txt, warn, err := e.tesseract(ctx, path)
	if err != nil {
		return Result{Method: "image-ocr", Warnings: warn}, err
	}
	txt = Normalize(txt)

	var ocrConf float32
	if e.cfg.EnableTSVConfidence {
		if tsv, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.tesseractArgs(path, "tsv")...); err == nil {
			ocrConf = meanTSVConfidence(tsv)
		} else {
			warn = append(warn, "tsv: "+string(errb))
		}
	}
	conf := heuristicConfidence(txt)
	if ocrConf > 0 {
		conf = 0.7*ocrConf + 0.3*conf
	}
	if conf > 1 {
		conf = 1
	}
	return Result{Text: txt, Pages: 1, Method: "image-ocr", Warnings: warn, Confidence: conf}, nil
}

func (e *Engine) recognizePDF(ctx context.Context, path, dir string) (Result, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err == nil {
		txt := Normalize(string(out))
		if len(txt) >= minPDFTextLen {
			return Result{
				Text:       txt,
				Pages:      1 + strings.Count(string(out), "\f"),
				Method:     "pdf-text",
				Confidence: heuristicConfidence(txt),
			}, nil
		}
	}
	var warns []string
	if err != nil {
		warns = append(warns, "pdftotext: "+string(errb))
	}

	prefix := filepath.Join(dir, "page")
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix); err != nil {
		return Result{Method: "pdf-ocr", Warnings: append(warns, string(errb))}, fmt.Errorf("pdftoppm: %w", err)
	}
	pages, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(pages)
	if e.cfg.MaxPages > 0 && len(pages) > e.cfg.MaxPages {
		pages = pages[:e.cfg.MaxPages]
	}
	if len(pages) == 0 {
		return Result{Method: "pdf-ocr", Warnings: warns}, fmt.Errorf("pdftoppm produced no pages")
	}

	var b strings.Builder
	for _, img := range pages {
		txt, w, err := e.tesseract(ctx, img)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(txt)
	}
	txt := Normalize(b.String())
	return Result{
		Text:       txt,
		Pages:      len(pages),
		Method:     "pdf-ocr",
		Warnings:   warns,
		Confidence: heuristicConfidence(txt),
	}, nil
}

// tesseract runs `tesseract <file> stdout -l <lang>`.
func (e *Engine) tesseract(ctx context.Context, path string) (string, []string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.tesseractArgs(path)...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil, nil
}

func (e *Engine) tesseractArgs(path string, extra ...string) []string {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return append(args, extra...)
}
