package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms/ollama"
)

type EmbedderConfig struct {
	Model     string
	BaseURL   string // Ollama server URL
	VectorDim int    // expected embedding dimension; 0 disables the check
}

// Embedder turns text into fixed-dimension vectors via an Ollama embedding
// model. The dimension is checked on every call: a model that returns the
// wrong width fails loudly instead of poisoning the collection.
type Embedder struct {
	config EmbedderConfig
	llm    *ollama.LLM
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	emb, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{
		config: config,
		llm:    emb,
	}, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	embeddings, err := e.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding call failed: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(embeddings))
	}

	vector := embeddings[0]
	if e.config.VectorDim > 0 && len(vector) != e.config.VectorDim {
		return nil, fmt.Errorf("embedding dimension %d does not match configured %d", len(vector), e.config.VectorDim)
	}
	return vector, nil
}
