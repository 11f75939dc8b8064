package llm

import (
	"encoding/base64"
	"strings"
)

const (
	// ImageConfidenceThreshold is the OCR confidence below which the proof
	// image is attached to the request.
	ImageConfidenceThreshold = 0.6

	maxVisionBytes = 8 << 20
)

var visionTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ShouldAttachImage reports whether the proof image should go to the model
// and returns it as a data URL.
func ShouldAttachImage(req ExtractRequest) (attach bool, dataURL string) {
	ct := strings.ToLower(strings.TrimSpace(req.ImageContentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if len(req.Image) == 0 || len(req.Image) > maxVisionBytes || !visionTypes[ct] {
		return false, ""
	}
	if req.PrepConfidence >= ImageConfidenceThreshold && strings.TrimSpace(req.OCRText) != "" {
		return false, ""
	}
	return true, "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(req.Image)
}
