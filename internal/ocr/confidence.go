package ocr

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b\d{1,2}[/.-]\d{1,2}[/.-](20)?\d{2}\b`)
	reCurr   = regexp.MustCompile(`\b(bs\.?|ves|usd)\b|[$€]|bs\.`)
	reAmount = regexp.MustCompile(`\b\d{1,3}([.,]\d{3})*[.,]\d{2}\b`)
	reRefNum = regexp.MustCompile(`\b\d{6,}\b`)
)

// heuristicConfidence scores decoded text by how much it looks like a
// transfer confirmation.
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2)
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reCurr.MatchString(txtL) {
		score += 0.15
	}
	if reAmount.MatchString(txtL) {
		score += 0.15
	}
	if reRefNum.MatchString(txtL) {
		score += 0.1
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// meanTSVConfidence returns tesseract's mean word confidence in 0..1.
// TSV rows are: level page block par line word left top width height conf text.
func meanTSVConfidence(tsv []byte) float32 {
	var sum, n float64
	for i, ln := range strings.Split(string(tsv), "\n") {
		if i == 0 || ln == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 || strings.TrimSpace(cols[11]) == "" {
			continue
		}
		if v, err := strconv.ParseFloat(cols[10], 64); err == nil && v >= 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float32(sum / n / 100.0)
}
