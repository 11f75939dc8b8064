package constants

import "strings"

// MediaTypes maps accepted proof content types to the extension used when storing them.
var MediaTypes = map[string]string{
	"image/jpeg":      "jpg",
	"image/jpg":       "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"application/pdf": "pdf",
}

// DefaultMediaExt is used when the provider does not report a content type.
const DefaultMediaExt = "jpg"

// ReceiptContentType is the content type of rendered receipts.
const ReceiptContentType = "image/png"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ExtForContentType returns the storage extension for a content type, ignoring parameters.
func ExtForContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ext, ok := MediaTypes[ct]; ok {
		return ext
	}
	return DefaultMediaExt
}

// ContentTypeForExt is the inverse of ExtForContentType for the accepted types.
func ContentTypeForExt(ext string) string {
	switch NormalizeExt(ext) {
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "pdf":
		return "application/pdf"
	default:
		return "image/jpeg"
	}
}
