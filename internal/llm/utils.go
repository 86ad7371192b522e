package llm

import (
	"encoding/base64"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// DataURL renders img as a base64 data URL for OpenAI-style image_url parts.
func DataURL(img Image) string {
	mt := img.MIMEType
	if mt == "" {
		mt = SniffImageMIME(img.Data, "")
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// SniffImageMIME prefers magic bytes and falls back to the file extension.
func SniffImageMIME(b []byte, filename string) string {
	if len(b) > 0 {
		if mt := http.DetectContentType(b); strings.HasPrefix(mt, "image/") {
			return mt
		}
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if mt := mime.TypeByExtension(ext); strings.HasPrefix(mt, "image/") {
		return mt
	}
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	return "image/jpeg"
}
