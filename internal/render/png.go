package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/joseph-ayodele/proof-receipts/constants"
	"github.com/joseph-ayodele/proof-receipts/internal/common"
)

const (
	Width  = 600
	Height = 900

	margin  = 50
	rowStep = 40
)

var (
	colHeader = color.RGBA{0x1f, 0x2a, 0x44, 0xff}
	colAccent = color.RGBA{0xc9, 0xa2, 0x27, 0xff}
	colGreen  = color.RGBA{0x1e, 0x8e, 0x3e, 0xff}
	colText   = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colMuted  = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colRule   = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
	colFooter = color.RGBA{0xf4, 0xf4, 0xf4, 0xff}
)

type Options struct {
	BusinessName string
	ContactLine  string
	Location     *time.Location
}

// PNGRenderer draws a fixed 600x900 receipt with the Go fonts.
type PNGRenderer struct {
	opts    Options
	regular *opentype.Font
	bold    *opentype.Font
	logger  *slog.Logger
}

func NewPNGRenderer(opts Options, logger *slog.Logger) (*PNGRenderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &PNGRenderer{opts: opts, regular: regular, bold: bold, logger: logger}, nil
}

// faces are not safe for concurrent use, so each render gets its own set.
type faces struct {
	title, subtitle, stamp, label, value, note, small font.Face
}

func (r *PNGRenderer) newFaces() (*faces, error) {
	mk := func(f *opentype.Font, size float64) (font.Face, error) {
		return opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	}
	var fs faces
	var err error
	specs := []struct {
		dst  *font.Face
		f    *opentype.Font
		size float64
	}{
		{&fs.title, r.bold, 32},
		{&fs.subtitle, r.regular, 18},
		{&fs.stamp, r.bold, 24},
		{&fs.label, r.regular, 16},
		{&fs.value, r.bold, 17},
		{&fs.note, r.bold, 18},
		{&fs.small, r.regular, 13},
	}
	for _, s := range specs {
		if *s.dst, err = mk(s.f, s.size); err != nil {
			return nil, err
		}
	}
	return &fs, nil
}

func (fs *faces) Close() {
	for _, f := range []font.Face{fs.title, fs.subtitle, fs.stamp, fs.label, fs.value, fs.note, fs.small} {
		if f != nil {
			_ = f.Close()
		}
	}
}

func (r *PNGRenderer) Render(ctx context.Context, rc Receipt) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	fs, err := r.newFaces()
	if err != nil {
		return nil, fmt.Errorf("font faces: %w", err)
	}
	defer fs.Close()

	c := &canvas{img: image.NewRGBA(image.Rect(0, 0, Width, Height))}
	c.fill(c.img.Bounds(), color.White)

	// header
	c.fill(image.Rect(0, 0, Width, 150), colHeader)
	c.fill(image.Rect(0, 150, Width, 156), colAccent)
	c.centered(fs.title, r.opts.BusinessName, 72, color.White)
	c.centered(fs.subtitle, "Comprobante de Recepción de Pago", 115, color.White)

	// stamp
	c.frame(image.Rect(margin+40, 185, Width-margin-40, 245), 3, colGreen)
	c.centered(fs.stamp, "● PAGO RECIBIDO ●", 224, colGreen)

	rows := [][2]string{
		{"Nº de Referencia:", rc.OperationID},
		{"Teléfono Cliente:", "+" + strings.TrimPrefix(rc.Sender, "+")},
		{"Fecha y Hora:", common.FormatTimestamp(rc.IssuedAt.In(r.opts.Location))},
	}
	for _, f := range constants.AllFields() {
		if v := strings.TrimSpace(rc.Fields[f]); v != "" {
			rows = append(rows, [2]string{constants.FieldLabels[f] + ":", v})
		}
	}

	y := 300
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.text(fs.label, row[0], margin, y, colMuted)
		labelW := measure(fs.label, row[0])
		maxW := Width - 2*margin - labelW - 20
		v := ellipsize(fs.value, row[1], maxW)
		c.text(fs.value, v, Width-margin-measure(fs.value, v), y, colText)
		c.fill(image.Rect(margin, y+14, Width-margin, y+15), colRule)
		y += rowStep
	}

	msgY := y + 50
	if msgY < 680 {
		msgY = 680
	}
	c.centered(fs.note, "¡Tu pago ha sido recibido correctamente!", msgY, colGreen)
	c.centered(fs.label, "Estamos validando tu comprobante.", msgY+30, colText)

	// footer
	c.fill(image.Rect(0, 800, Width, Height), colFooter)
	c.fill(image.Rect(0, 800, Width, 803), colAccent)
	c.centered(fs.label, "Gracias por confiar en "+r.opts.BusinessName, 836, colText)
	c.centered(fs.small, "Este es un comprobante automático de recepción.", 862, colMuted)
	if r.opts.ContactLine != "" {
		c.centered(fs.small, r.opts.ContactLine, 884, colMuted)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, c.img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	r.logger.Debug("render.png.ok",
		"operation_id", rc.OperationID,
		"rows", len(rows),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

type canvas struct {
	img *image.RGBA
}

func (c *canvas) fill(r image.Rectangle, col color.Color) {
	draw.Draw(c.img, r, image.NewUniform(col), image.Point{}, draw.Src)
}

func (c *canvas) frame(r image.Rectangle, w int, col color.Color) {
	c.fill(image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w), col)
	c.fill(image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y), col)
	c.fill(image.Rect(r.Min.X, r.Min.Y, r.Min.X+w, r.Max.Y), col)
	c.fill(image.Rect(r.Max.X-w, r.Min.Y, r.Max.X, r.Max.Y), col)
}

// text draws s with its baseline at y.
func (c *canvas) text(face font.Face, s string, x, y int, col color.Color) {
	d := font.Drawer{Dst: c.img, Src: image.NewUniform(col), Face: face, Dot: fixed.P(x, y)}
	d.DrawString(s)
}

func (c *canvas) centered(face font.Face, s string, y int, col color.Color) {
	s = ellipsize(face, s, Width-2*margin)
	c.text(face, s, (Width-measure(face, s))/2, y, col)
}

func measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// ellipsize trims s until it fits in maxW pixels.
func ellipsize(face font.Face, s string, maxW int) string {
	if measure(face, s) <= maxW {
		return s
	}
	rs := []rune(s)
	for len(rs) > 0 {
		rs = rs[:len(rs)-1]
		if t := string(rs) + "…"; measure(face, t) <= maxW {
			return t
		}
	}
	return ""
}
