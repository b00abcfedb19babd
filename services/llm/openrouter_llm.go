package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var openrouterTracer = otel.Tracer("gridpilot.llm.openrouter")

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterClient talks to an OpenAI-compatible cloud endpoint with
// bearer authentication. Model identifiers are namespaced, e.g.
// "openai/gpt-4o-mini" or "anthropic/claude-3.5-haiku".
type OpenRouterClient struct {
	client *openai.Client
	model  string
}

// NewOpenRouterClient creates a client for the given namespaced model
// identifier. The API key comes from OPENROUTER_API_KEY or, failing
// that, the container secret at /run/secrets/openrouter_api_key.
func NewOpenRouterClient(model string) (*OpenRouterClient, error) {
	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openrouter_api_key"
		if content, err := os.ReadFile(secretPath); err == nil {
			apiKey = strings.TrimSpace(string(content))
			slog.Info("Read OpenRouter API key from container secrets")
		}
	}
	if apiKey == "" {
		slog.Warn("OpenRouter API key is missing.")
		return nil, fmt.Errorf("OPENROUTER_API_KEY is missing")
	}

	baseURL := os.Getenv("OPENROUTER_BASE_URL")
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: 2 * time.Minute}

	slog.Info("Initializing OpenRouter client", "base_url", cfg.BaseURL, "model", model)
	return &OpenRouterClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Model implements the LLMClient interface.
func (c *OpenRouterClient) Model() string { return c.model }

// Chat implements the LLMClient interface.
func (c *OpenRouterClient) Chat(ctx context.Context, messages []Message,
	params GenerationParams) (string, error) {

	ctx, span := openrouterTracer.Start(ctx, "OpenRouterClient.Chat")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model))
	span.SetAttributes(attribute.Int("llm.num_messages", len(messages)))

	apiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		apiMessages = append(apiMessages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: apiMessages,
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("OpenRouter API call failed", "model", c.model, "error", err)
		return "", fmt.Errorf("OpenRouter API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenRouter returned no choices", "model", c.model)
		return "", fmt.Errorf("OpenRouter returned no choices")
	}

	slog.Debug("Received response from OpenRouter",
		"finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
