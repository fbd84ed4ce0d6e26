package store

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/fabfab/docs-agent/embeddings"
)

// Reserved metadata keys used to round-trip chunk attributes through the
// engine's string-keyed metadata.
const (
	metaSource = "source"
	metaTitle  = "title"
	metaKind   = "kind"
	metaIndex  = "chunk_index"
)

// ChromemStore persists chunks in an embedded chromem-go database under a
// local directory. The directory layout is owned by chromem and treated as
// opaque; this adapter only knows the collection name.
type ChromemStore struct {
	collection *chromem.Collection
	name       string
	embedder   embeddings.Embedder
	logger     *log.Logger
}

func NewChromemStore(path, collection string, embedder embeddings.Embedder, logger *log.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = log.Default()
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: open persistent db at %s: %v", ErrUnavailable, path, err)
	}

	coll, err := db.GetOrCreateCollection(collection, map[string]string{
		"description": "documentation and code examples",
	}, queryEmbeddingFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("%w: open collection %s: %v", ErrUnavailable, collection, err)
	}

	logger.Printf("vector store ready at %s (collection %s, %d chunks)", path, collection, coll.Count())

	return &ChromemStore{
		collection: coll,
		name:       collection,
		embedder:   embedder,
		logger:     logger,
	}, nil
}

// queryEmbeddingFunc adapts the batch Embedder to chromem's per-text
// signature. Index-time embeddings are computed explicitly in AddChunks, so
// chromem only calls this for texts added without a vector.
func queryEmbeddingFunc(embedder embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vectors, err := embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vectors) == 0 {
			return nil, fmt.Errorf("embedder returned no vectors")
		}
		return vectors[0], nil
	}
}

func (s *ChromemStore) AddChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: have %d chunks, %d vectors", len(chunks), len(vectors))
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		id := chunk.ID
		if id == "" {
			id = uuid.New().String()
		}

		metadata := map[string]string{
			metaSource: chunk.Source,
			metaTitle:  chunk.Title,
			metaKind:   string(chunk.Kind),
			metaIndex:  strconv.Itoa(chunk.Index),
		}
		for key, value := range chunk.Metadata {
			if _, reserved := metadata[key]; !reserved {
				metadata[key] = value
			}
		}

		docs[i] = chromem.Document{
			ID:        id,
			Content:   chunk.Text,
			Metadata:  metadata,
			Embedding: vectors[i],
		}
	}

	// Sequential insert: chunks land in discovery order.
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}

	return nil
}

func (s *ChromemStore) Search(ctx context.Context, query string, k int, kind Kind) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("search limit must be positive, got %d", k)
	}

	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	queryVectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	var where map[string]string
	if kind != "" {
		where = map[string]string{metaKind: string(kind)}
	}

	matches, err := s.collection.QueryEmbedding(ctx, queryVectors[0], k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	results := make([]Result, 0, len(matches))
	for _, match := range matches {
		results = append(results, Result{
			Chunk:      chunkFromDocument(match.ID, match.Content, match.Metadata),
			Similarity: match.Similarity,
		})
	}

	return results, nil
}

func (s *ChromemStore) Stats(ctx context.Context) (Stats, error) {
	return Stats{
		TotalChunks: s.collection.Count(),
		Collection:  s.name,
	}, nil
}

func chunkFromDocument(id, content string, metadata map[string]string) Chunk {
	index, _ := strconv.Atoi(metadata[metaIndex])

	extra := make(map[string]string)
	for key, value := range metadata {
		switch key {
		case metaSource, metaTitle, metaKind, metaIndex:
		default:
			extra[key] = value
		}
	}

	return Chunk{
		ID:       id,
		Text:     content,
		Source:   metadata[metaSource],
		Title:    metadata[metaTitle],
		Index:    index,
		Kind:     Kind(metadata[metaKind]),
		Metadata: extra,
	}
}

var _ Store = (*ChromemStore)(nil)
