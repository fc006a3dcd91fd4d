package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a Generator backed by the OpenAI chat API.
//
// The API key comes from OPENAI_API_KEY, falling back to the container
// secret at /run/secrets/openai_api_key. The model comes from OPENAI_MODEL
// and defaults to gpt-4o-mini.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey, err := resolveAPIKey("OPENAI_API_KEY", "/run/secrets/openai_api_key")
	if err != nil {
		return nil, err
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI client", "model", model)
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

func (o *OpenAIClient) Name() string { return "openai/" + o.model }

// Generate implements the Generator interface.
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	slog.Debug("Generating text via OpenAI", "model", o.model)
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPersona()},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	applyParams(&req, params)

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyOpenAIError("OpenAI", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices")
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

func systemPersona() string {
	persona := os.Getenv("SYSTEM_ROLE_PROMPT_PERSONA")
	if persona == "" {
		persona = "You are a senior software engineer and an expert in the codebase provided."
	}
	return persona
}

func applyParams(req *openai.ChatCompletionRequest, params GenerationParams) {
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
}

// classifyOpenAIError wraps provider failures, tagging quota/rate-limit
// responses with ErrQuota so callers can fall back to a secondary backend.
func classifyOpenAIError(backend string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode == http.StatusPaymentRequired {
			slog.Warn("Model provider reported quota exhaustion", "backend", backend, "status", apiErr.HTTPStatusCode)
			return fmt.Errorf("%s: %v: %w", backend, err, ErrQuota)
		}
	}
	slog.Error("Model provider call failed", "backend", backend, "error", err)
	return fmt.Errorf("%s API call failed: %w", backend, err)
}

func resolveAPIKey(envVar, secretPath string) (string, error) {
	apiKey := os.Getenv(envVar)
	if apiKey != "" {
		return apiKey, nil
	}
	apiKeyBytes, err := os.ReadFile(secretPath)
	if err == nil {
		slog.Info("Read the API key from container secrets", "env", envVar)
		return strings.TrimSpace(string(apiKeyBytes)), nil
	}
	slog.Error("API key not set and secret not found", "env", envVar, "path", secretPath)
	return "", fmt.Errorf("%s environment variable not set", envVar)
}
