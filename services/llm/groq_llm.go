package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// groqBaseURL is Groq's OpenAI-compatible endpoint.
const groqBaseURL = "https://api.groq.com/openai/v1"

type GroqClient struct {
	client *openai.Client
	model  string
}

// NewGroqClient builds a Generator backed by Groq's OpenAI-compatible API.
//
// The API key comes from GROQ_API_KEY, falling back to the container secret
// at /run/secrets/groq_api_key. The model comes from GROQ_MODEL and
// defaults to llama3-8b-8192.
func NewGroqClient() (*GroqClient, error) {
	apiKey, err := resolveAPIKey("GROQ_API_KEY", "/run/secrets/groq_api_key")
	if err != nil {
		return nil, err
	}
	model := os.Getenv("GROQ_MODEL")
	if model == "" {
		model = "llama3-8b-8192"
		slog.Warn("GROQ_MODEL not set, defaulting to llama3-8b-8192")
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	slog.Info("Initializing Groq client", "model", model)
	return &GroqClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (g *GroqClient) Name() string { return "groq/" + g.model }

// Generate implements the Generator interface.
func (g *GroqClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	slog.Debug("Generating text via Groq", "model", g.model)
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPersona()},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	applyParams(&req, params)

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyOpenAIError("Groq", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("Groq returned no choices")
		return "", fmt.Errorf("Groq returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
