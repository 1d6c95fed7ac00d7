package validation

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// MaxUploadBytes is the per-file size ceiling (15 MiB).
	MaxUploadBytes int64 = 15 * 1024 * 1024
	// MaxFilesPerUpload caps a single upload call.
	MaxFilesPerUpload = 10
)

// ImageFormat is an accepted upload format.
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
	FormatHEIC ImageFormat = "heic"
	FormatHEIF ImageFormat = "heif"
)

// Extension is the file extension used in storage keys, without the dot.
func (f ImageFormat) Extension() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatHEIC:
		return "heic"
	case FormatHEIF:
		return "heif"
	default:
		return "jpg"
	}
}

// ContentType is the canonical MIME type of the format.
func (f ImageFormat) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatHEIC:
		return "image/heic"
	case FormatHEIF:
		return "image/heif"
	default:
		return "image/jpeg"
	}
}

// ClassifyImage decides whether a file is an accepted image from its declared
// MIME type and filename alone. An allow-listed declared type decides the
// format; otherwise a HEIC/HEIF extension is accepted whatever the declared
// type says.
func ClassifyImage(declaredType, filename string) (ImageFormat, bool) {
	switch baseMIME(declaredType) {
	case "image/jpeg":
		return FormatJPEG, true
	case "image/png":
		return FormatPNG, true
	case "image/heic":
		return FormatHEIC, true
	case "image/heif":
		return FormatHEIF, true
	}

	// Browsers routinely report HEIC/HEIF photos with an empty or wrong MIME type.
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".heic":
		return FormatHEIC, true
	case ".heif":
		return FormatHEIF, true
	default:
		return "", false
	}
}

// SniffImage classifies by content. Only meaningful when the declared type is
// generic; callers must not use it to override an explicit declared type.
func SniffImage(data []byte, filename string) (ImageFormat, bool) {
	if len(data) == 0 {
		return "", false
	}
	return ClassifyImage(mimetype.Detect(data).String(), filename)
}

// IsGenericContentType reports a missing or catch-all declared type.
func IsGenericContentType(declaredType string) bool {
	mt := baseMIME(declaredType)
	return mt == "" || mt == "application/octet-stream"
}

// NormalizeContentType returns the content type to store: the declared type,
// or the format's canonical type when the declared one is missing or generic.
func NormalizeContentType(declaredType string, format ImageFormat) string {
	if IsGenericContentType(declaredType) {
		return format.ContentType()
	}
	return baseMIME(declaredType)
}

// SanitizeString removes potentially harmful characters
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return input
}

func baseMIME(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}
