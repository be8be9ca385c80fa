package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/markdave123-py/smartdoc/internal/core"
)

// OpenAILLM answers prompts through any OpenAI-compatible chat completion API.
type OpenAILLM struct {
	cfg     GenerationConfig
	baseURL string
}

func NewOpenAILLM(cfg GenerationConfig, baseURL string) *OpenAILLM {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	return &OpenAILLM{cfg: cfg, baseURL: baseURL}
}

func (o *OpenAILLM) Name() string { return "openai" }

func (o *OpenAILLM) Generate(ctx context.Context, apiKey, prompt string) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("%w: no openai api key", core.ErrAuth)
	}

	config := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}
	client := openai.NewClientWithConfig(config)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: o.cfg.Temperature,
		MaxTokens:   int(o.cfg.MaxOutputTokens),
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai: %w", openAIKind(err), err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	if resp.Choices[0].FinishReason == openai.FinishReasonContentFilter {
		return "", fmt.Errorf("%w: openai: content filter", core.ErrRefused)
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIKind(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if k := kindFromHTTP(apiErr.HTTPStatusCode); k != nil {
			return k
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if k := kindFromHTTP(reqErr.HTTPStatusCode); k != nil {
			return k
		}
	}
	return core.ErrTransport
}

var _ core.LLMProvider = (*OpenAILLM)(nil)
