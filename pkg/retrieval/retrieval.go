package retrieval

import (
	"context"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/apexline/paddock/internal/types"
)

// FallbackContext is returned whenever a usable context cannot be built.
// Callers always receive non-empty text; retrieval failures degrade the
// answer, never the request.
const FallbackContext = "No relevant documents found."

type ServiceConfig struct {
	TopK            int
	MaxContextChars int
}

// Service turns a user query into a ranked, size-bounded context string
// from the vector store.
type Service struct {
	embedder types.Embedder
	store    types.VectorStore
	config   ServiceConfig
}

func NewService(embedder types.Embedder, store types.VectorStore, config ServiceConfig) *Service {
	if config.TopK == 0 {
		config.TopK = 10
	}
	if config.MaxContextChars == 0 {
		config.MaxContextChars = 8000
	}
	return &Service{
		embedder: embedder,
		store:    store,
		config:   config,
	}
}

// Retrieve embeds the query, finds the TopK nearest chunks and joins their
// texts in rank order, separated by blank lines and truncated to
// MaxContextChars. Any failure along the way returns FallbackContext.
func (s *Service) Retrieve(ctx context.Context, query string) string {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		log.Printf("retrieval: query embedding failed: %v", err)
		return FallbackContext
	}

	results, err := s.store.NearestNeighbors(ctx, vector, s.config.TopK)
	if err != nil {
		log.Printf("retrieval: search failed: %v", err)
		return FallbackContext
	}
	if len(results) == 0 {
		return FallbackContext
	}

	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Text)
	}

	docContext := strings.Join(texts, "\n\n")
	if len(docContext) > s.config.MaxContextChars {
		cut := s.config.MaxContextChars
		// Back up to a rune boundary; a prompt must never carry a
		// half-encoded character.
		for cut > 0 && !utf8.RuneStart(docContext[cut]) {
			cut--
		}
		docContext = docContext[:cut]
	}
	return docContext
}
