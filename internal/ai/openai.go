package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/windoze95/chefbot-api/internal/config"
	"github.com/windoze95/chefbot-api/internal/logger"
	"go.uber.org/zap"
)

// OpenAIProvider implements TextProvider using the OpenAI chat API. It is
// the alternate backend selected with TEXT_PROVIDER=openai.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	prompts *config.Prompts
}

// NewOpenAIProvider creates a new OpenAI-backed text provider.
func NewOpenAIProvider(apiKey string, prompts *config.Prompts) *OpenAIProvider {
	return &OpenAIProvider{
		client:  openai.NewClient(apiKey),
		model:   openai.GPT4oMini,
		prompts: prompts,
	}
}

// AskAI wraps the query in the prompt template for queryType and asks the
// chat model for an answer.
func (p *OpenAIProvider) AskAI(ctx context.Context, query string, queryType QueryType) (string, error) {
	sysPrompt, userPrompt, err := renderPrompts(p.prompts, query, queryType)
	if err != nil {
		return "", err
	}

	req := openai.ChatCompletionRequest{
		Model:     p.model,
		MaxTokens: 1024,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sysPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}

	const maxRetries = 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
				return "", fmt.Errorf("openai API returned an empty message: %w", ErrMalformedResponse)
			}
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = wrapOpenAIError(err)
		if !errors.Is(lastErr, ErrUnavailable) && !errors.Is(lastErr, ErrRateLimited) {
			return "", lastErr
		}

		logger.Get().Warn("openai API error, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("openai API: %w: %w", ErrUnavailable, ctx.Err())
		case <-time.After(time.Second * time.Duration(i+1)):
		}
	}

	return "", fmt.Errorf("openai API: exhausted %d retries: %w", maxRetries, lastErr)
}

// wrapOpenAIError maps SDK errors onto the sentinel failure reasons.
func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("openai API: %w: %v", ErrAuth, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("openai API: %w: %v", ErrRateLimited, err)
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return fmt.Errorf("openai API: %w: %v", ErrUnavailable, err)
		default:
			return fmt.Errorf("openai API: %w: %v", ErrMalformedResponse, err)
		}
	}
	return fmt.Errorf("openai API: %w: %v", ErrUnavailable, err)
}
