package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validMetrics = map[string]bool{
	"cosine":      true,
	"dot_product": true,
	"euclidean":   true,
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "Ollama base URL is required",
		})
	} else if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if !validMetrics[c.Database.Metric] {
		errors = append(errors, ValidationError{
			Field:   "database.metric",
			Message: fmt.Sprintf("metric must be cosine, dot_product or euclidean, got %q", c.Database.Metric),
		})
	}

	if c.Ingest.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "ingest.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Ingest.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "ingest.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Ingest.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.concurrency",
			Message: "concurrency must be positive",
		})
	}

	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Retrieval.MaxContextChars < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.max_context_chars",
			Message: "max_context_chars must be positive",
		})
	}

	return errors
}
