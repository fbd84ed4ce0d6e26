// Package ingest walks a local source tree and feeds file contents, chunked
// and tagged by content kind, to the vector store. It is the filesystem
// counterpart of the scraper: same sink, no link following.
package ingest

import (
	"path/filepath"
	"strings"

	"github.com/fabfab/docs-agent/store"
)

// Format enumerates the payload formats recognized during core-directory
// ingestion.
type Format string

const (
	// FormatUnknown represents an unsupported or undetected format.
	FormatUnknown Format = ""
	// FormatText represents plain documentation formats.
	FormatText Format = "text"
	// FormatPDF represents PDF documents.
	FormatPDF Format = "pdf"
	// FormatSource represents source and configuration files.
	FormatSource Format = "source"
)

var sourceLanguages = map[string]string{
	".go":    "go",
	".sql":   "sql",
	".java":  "java",
	".js":    "javascript",
	".ts":    "typescript",
	".py":    "python",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".sh":    "shell",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".xml":   "xml",
	".toml":  "toml",
	".proto": "protobuf",
}

// DetectFormat infers a file's format from its extension.
func DetectFormat(path string) Format {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".markdown", ".txt", ".rst":
		return FormatText
	case ".pdf":
		return FormatPDF
	}
	if _, ok := sourceLanguages[ext]; ok {
		return FormatSource
	}
	return FormatUnknown
}

// KindFor maps a format to the content kind its chunks carry.
func KindFor(format Format) store.Kind {
	if format == FormatSource {
		return store.KindCode
	}
	return store.KindDocumentation
}

// LanguageFor returns the language tag for a source file, or "" when the
// extension carries no language information.
func LanguageFor(path string) string {
	return sourceLanguages[strings.ToLower(filepath.Ext(path))]
}
