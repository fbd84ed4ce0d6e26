package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	pdf "github.com/ledongthuc/pdf"

	"github.com/fabfab/docs-agent/chunker"
	"github.com/fabfab/docs-agent/store"
)

// ChunkSink receives chunks incrementally, one file at a time.
type ChunkSink interface {
	AddChunks(ctx context.Context, chunks []store.Chunk) error
}

type Service struct {
	sink    ChunkSink
	chunker *chunker.Chunker
	logger  *log.Logger
}

func NewService(sink ChunkSink, ch *chunker.Chunker, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{sink: sink, chunker: ch, logger: logger}
}

// IngestDirectory recursively walks root and indexes every file with a
// recognized extension. Unreadable, binary, or empty files are logged and
// skipped; a sink failure aborts the walk. Returns the number of files
// indexed.
func (s *Service) IngestDirectory(ctx context.Context, root string) (int, error) {
	if _, err := os.Stat(root); err != nil {
		return 0, fmt.Errorf("core directory: %w", err)
	}

	entries := make([]string, 0)
	if err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if DetectFormat(path) != FormatUnknown {
			entries = append(entries, path)
		}
		return nil
	}); err != nil {
		return 0, fmt.Errorf("walk core directory: %w", err)
	}

	if len(entries) == 0 {
		s.logger.Printf("no ingestable files found in %s", root)
		return 0, nil
	}

	ingested := 0
	for _, path := range entries {
		if err := ctx.Err(); err != nil {
			return ingested, err
		}
		n, err := s.ingestFile(ctx, root, path)
		if err != nil {
			if ctx.Err() != nil {
				return ingested, err
			}
			s.logger.Printf("ingest failed for %s: %v", path, err)
			continue
		}
		if n > 0 {
			ingested++
		}
	}

	s.logger.Printf("ingest complete: %d/%d files indexed from %s", ingested, len(entries), root)
	return ingested, nil
}

func (s *Service) ingestFile(ctx context.Context, root, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}

	relPath, relErr := filepath.Rel(root, path)
	if relErr != nil {
		relPath = path
	}
	relPath = filepath.ToSlash(relPath)

	format := DetectFormat(path)

	var content string
	switch format {
	case FormatPDF:
		content, err = extractPDFText(data)
		if err != nil {
			return 0, fmt.Errorf("extract pdf text: %w", err)
		}
	default:
		if !utf8.Valid(data) {
			s.logger.Printf("skip binary file %s", relPath)
			return 0, nil
		}
		content = string(data)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		s.logger.Printf("skip empty file %s", relPath)
		return 0, nil
	}

	title := filepath.Base(path)
	if format == FormatText {
		title = extractTitle(content, title)
	}

	kind := KindFor(format)
	language := LanguageFor(path)

	var chunks []store.Chunk
	for i, text := range s.chunker.Chunk(content) {
		var metadata map[string]string
		if language != "" {
			metadata = map[string]string{"language": language}
		}
		chunks = append(chunks, store.Chunk{
			Text:     text,
			Source:   relPath,
			Title:    title,
			Index:    i,
			Kind:     kind,
			Metadata: metadata,
		})
	}

	if len(chunks) == 0 {
		return 0, nil
	}
	if err := s.sink.AddChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	s.logger.Printf("ingested %s (%d chunks, kind %s)", relPath, len(chunks), kind)
	return len(chunks), nil
}

func extractPDFText(data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf pages: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", fmt.Errorf("copy pdf text: %w", err)
	}

	return normalizePlainText(buf.String()), nil
}

func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// extractTitle returns the first markdown heading, or the first non-empty
// line for plain text, falling back to the provided default.
func extractTitle(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if heading, ok := strings.CutPrefix(trimmed, "#"); ok {
			return strings.TrimSpace(strings.TrimLeft(heading, "#"))
		}
		return trimmed
	}
	return fallback
}
