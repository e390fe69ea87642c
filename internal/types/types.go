package types

import (
	"context"

	"github.com/apexline/paddock/internal/models"
)

// Core interfaces

// Embedder turns text into a fixed-dimension vector. Implementations must
// fail explicitly on input they cannot embed rather than truncate.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is a collection of {vector, text} records with exact-text
// lookup and nearest-neighbor search under the collection's metric.
type VectorStore interface {
	FindExact(ctx context.Context, text string) (*models.VectorRecord, error)
	Insert(ctx context.Context, rec models.VectorRecord) (string, error)
	NearestNeighbors(ctx context.Context, vector []float32, limit int) ([]models.SearchResult, error)
	Close()
}

// Fetcher retrieves one source URL as extracted plain text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (models.Document, error)
}

// Splitter breaks document text into bounded, overlapping chunks.
type Splitter interface {
	Split(text string) []string
}

// Retriever assembles a textual context for a query. It never fails:
// degraded paths return a fallback string instead of an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string) string
}

// ChatStreamer produces the model's incremental output for a conversation
// grounded in docContext. onDelta is called once per token delta in arrival
// order; returning an error from it stops the model stream, as does
// cancelling ctx. A non-nil return is a terminal stream error.
type ChatStreamer interface {
	StreamChat(ctx context.Context, messages []models.Message, docContext string, onDelta func(delta string) error) error
}
