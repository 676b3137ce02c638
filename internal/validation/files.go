package validation

import "strings"

// Upload limits.
const (
	MaxImageBytes    = 20 << 20
	MaxDocumentBytes = 50 << 20
)

// allowedImageTypes is the content-type allowlist for model and fabric images.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// FileInfo describes an uploaded file as reported by the client.
type FileInfo struct {
	Name     string
	MIMEType string
	Size     int64
}

func normalizeMIME(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// CheckImageFile accepts JPEG, PNG and WEBP images up to 20 MiB.
func CheckImageFile(f FileInfo) error {
	if !allowedImageTypes[normalizeMIME(f.MIMEType)] {
		return invalid(FieldImage, "Only JPG, PNG, and WEBP images are accepted.")
	}
	if f.Size > MaxImageBytes {
		return invalid(FieldImage, "Image must be under 20MB.")
	}
	return nil
}

// CheckDocumentFile accepts PDF documents up to 50 MiB.
func CheckDocumentFile(f FileInfo) error {
	if normalizeMIME(f.MIMEType) != "application/pdf" {
		return invalid(FieldDocument, "Only PDF files are accepted.")
	}
	if f.Size > MaxDocumentBytes {
		return invalid(FieldDocument, "PDF must be under 50MB.")
	}
	return nil
}
