package constants

import "strings"

// MaxUploadBytes is the default ceiling for a single uploaded image.
const MaxUploadBytes int64 = 10 * 1024 * 1024

// AllowedExtensions holds the file extensions accepted by the upload endpoint.
// PDF is recognised so it can be rejected with a specific message.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"pdf":  {},
}

// ImageExtensions are the extensions the pipeline can actually decode.
var ImageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without dot) is accepted for upload.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// IsImageExt reports whether ext (with or without dot) is a decodable image type.
func IsImageExt(ext string) bool {
	_, ok := ImageExtensions[NormalizeExt(ext)]
	return ok
}

// AllowedExtensionList returns the accepted extensions, dotted, in a stable order.
func AllowedExtensionList() []string {
	return []string{".jpg", ".jpeg", ".png", ".pdf"}
}
