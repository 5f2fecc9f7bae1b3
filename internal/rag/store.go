package rag

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

// Embedder turns text into vectors. Query embedding may apply a
// query-specific prefix, so it is a separate method from document embedding.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Result is one retrieved chunk with its similarity score.
type Result struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Retriever is the read side consumed by the bots.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Result, error)
}

// Ingestor is the write side used by the indexing CLI.
type Ingestor interface {
	AddDocuments(ctx context.Context, texts []string) error
}

// Document is a stored chunk plus its embedding.
type Document struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// MemoryStore keeps the knowledge base in memory with flat cosine
// retrieval. The index is built offline and loaded read-only at startup,
// so there is no eviction or incremental-update machinery.
type MemoryStore struct {
	embedder Embedder
	logger   *logging.Logger

	mu   sync.RWMutex
	docs []Document
}

func NewMemoryStore(embedder Embedder, logger *logging.Logger) *MemoryStore {
	if embedder == nil {
		panic("rag: embedder cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &MemoryStore{embedder: embedder, logger: logger}
}

// AddDocuments embeds and stores chunks.
func (s *MemoryStore) AddDocuments(ctx context.Context, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(texts) {
		return errors.New("rag: embedding response size mismatch")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, text := range texts {
		s.docs = append(s.docs, Document{Text: text, Embedding: vectors[i]})
	}
	return nil
}

// AddEmbedded loads pre-computed documents, e.g. from a snapshot.
func (s *MemoryStore) AddEmbedded(docs []Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, docs...)
}

// Documents returns a copy of the stored chunks, for snapshotting.
func (s *MemoryStore) Documents() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Document(nil), s.docs...)
}

// Len reports the number of stored chunks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Retrieve returns the topK most similar chunks to the query.
func (s *MemoryStore) Retrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 3
	}
	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.docs) == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(s.docs))
	for _, doc := range s.docs {
		results = append(results, Result{
			Text:  doc.Text,
			Score: cosineSimilarity(queryVec, doc.Embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
