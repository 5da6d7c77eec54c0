// Package mimeclass classifies files into MIME types and text-family
// previews, used when deciding preview vs download content types.
package mimeclass

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// textExtensions lists extensions treated as the "text family" for preview
// purposes: markdown, source code, configuration, structured data, logs.
var textExtensions = map[string]bool{
	".md": true, ".markdown": true, ".txt": true, ".log": true,
	".go": true, ".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".java": true, ".c": true, ".h": true, ".cpp": true, ".rs": true, ".rb": true,
	".sh": true, ".bash": true, ".zsh": true, ".php": true, ".cs": true, ".kt": true,
	".json": true, ".xml": true, ".yaml": true, ".yml": true, ".toml": true, ".ini": true,
	".csv": true, ".tsv": true, ".conf": true, ".cfg": true, ".env": true,
	".css": true, ".scss": true, ".sql": true,
}

// IsTextFamily reports whether a file should be force-previewed as
// text/plain rather than rendered/executed by the browser.
func IsTextFamily(filename, contentType string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if textExtensions[ext] {
		return true
	}
	return strings.HasPrefix(contentType, "text/") && contentType != "text/html"
}

// IsTextual reports whether a content type is in the broad text/* family,
// text/html included (used to decide whether to append a charset).
func IsTextual(contentType string) bool {
	return strings.HasPrefix(contentType, "text/")
}

var extContentType = map[string]string{
	".json": "application/json",
	".xml":  "application/xml",
	".yaml": "application/x-yaml",
	".yml":  "application/x-yaml",
	".csv":  "text/csv",
	".html": "text/html",
	".htm":  "text/html",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".zip":  "application/zip",
}

// InferFromFilename infers a content type from a filename's extension,
// falling back to application/octet-stream. Never trusts a caller-supplied
// content type (used to pin the Content-Type on presigned uploads).
func InferFromFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return "application/octet-stream"
	}
	if ct, ok := extContentType[ext]; ok {
		return ct
	}
	if textExtensions[ext] {
		return "text/plain"
	}
	return "application/octet-stream"
}

// SniffFromContent uses gabriel-vasile/mimetype to detect a content type
// from the first bytes of a buffer, for content with no filename extension
// to go by. Nothing in the gateway calls it; update-inline always stores
// text/plain; charset=UTF-8.
func SniffFromContent(buf []byte) string {
	return mimetype.Detect(buf).String()
}
