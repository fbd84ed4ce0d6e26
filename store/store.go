// Package store adapts an external vector engine for chunk persistence and
// similarity search. Two backends are available: an embedded chromem-go
// database persisted under a local directory (the default) and a
// Postgres/pgvector database. Both embed text through the same provider
// chain at index and query time.
package store

import (
	"context"
	"errors"
)

// ErrUnavailable reports that the underlying vector engine could not be
// opened or reached.
var ErrUnavailable = errors.New("vector store unavailable")

type Kind string

const (
	KindDocumentation Kind = "documentation"
	KindCode          Kind = "code"
)

// Chunk is one retrievable unit of indexed text. Chunks are immutable once
// stored; re-adding identical content creates duplicate entries.
type Chunk struct {
	// ID is assigned on insert when empty.
	ID string
	// Text is the chunk body, at most the configured chunk size except for
	// the final chunk of a source.
	Text string
	// Source identifies where the chunk came from: a page URL or file path.
	Source string
	Title  string
	// Index is the chunk's sequence position within its source.
	Index int
	Kind  Kind
	// Metadata carries additional string-keyed attributes, e.g. a code
	// block's language hint.
	Metadata map[string]string
}

type Result struct {
	Chunk
	Similarity float32
}

type Stats struct {
	TotalChunks int
	Collection  string
}

type Store interface {
	// AddChunks embeds and persists chunks in order. Not idempotent.
	AddChunks(ctx context.Context, chunks []Chunk) error
	// Search returns up to k chunks nearest to query, optionally restricted
	// to one content kind (empty kind means no filter). An empty store
	// yields zero results and no error.
	Search(ctx context.Context, query string, k int, kind Kind) ([]Result, error)
	// Stats reports the stored chunk count and collection name.
	Stats(ctx context.Context) (Stats, error)
}
