package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"

	"github.com/apexline/paddock/internal/models"
)

const defaultSystemTemplate = `You are an AI assistant specializing in Formula 1.
Always respond with clean formatting, appropriate spacing, and Markdown (e.g., bold text, line breaks).
Avoid long unbroken paragraphs. Provide structured data when possible.

Use this format:
**Driver:** Lewis Hamilton
**Time:** 1:11.009
**Track:** Monza
**Event:** 2020 Italian Grand Prix (Qualifying)
**Average Speed:** 264.362 km/h (164.267 mph)

START CONTEXT
%s
END CONTEXT`

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	SystemTemplate string // must contain one %s for the retrieved context
	BaseURL        string // Ollama server URL
}

// ChatEngine generates grounded chat responses from an Ollama-served model.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.Temperature <= 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	llm, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    llm,
	}, nil
}

// StreamChat generates a response for the conversation grounded in
// docContext, delivering raw token deltas to onDelta in arrival order.
// Cancelling ctx or returning an error from onDelta stops the model stream.
func (ce *ChatEngine) StreamChat(ctx context.Context, messages []models.Message, docContext string, onDelta func(delta string) error) error {
	_, err := ce.llm.GenerateContent(ctx, ce.buildContent(messages, docContext),
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onDelta(string(chunk))
		}),
	)
	if err != nil {
		return fmt.Errorf("chat stream error: %w", err)
	}
	return nil
}

// Chat generates a full response in one call, for callers that do not
// stream.
func (ce *ChatEngine) Chat(ctx context.Context, messages []models.Message, docContext string) (string, error) {
	response, err := ce.llm.GenerateContent(ctx, ce.buildContent(messages, docContext),
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}
	return response.Choices[0].Content, nil
}

func (ce *ChatEngine) buildContent(messages []models.Message, docContext string) []llms.MessageContent {
	system := fmt.Sprintf(ce.config.SystemTemplate, strings.TrimSpace(docContext))

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
	}
	for _, m := range messages {
		content = append(content, llms.TextParts(roleToMessageType(m.Role), m.Content))
	}
	return content
}

func roleToMessageType(r models.Role) schema.ChatMessageType {
	switch r {
	case models.RoleSystem:
		return schema.ChatMessageTypeSystem
	case models.RoleAssistant:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}
