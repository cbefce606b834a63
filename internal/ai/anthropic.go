package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/windoze95/chefbot-api/internal/config"
	"github.com/windoze95/chefbot-api/internal/logger"
	"go.uber.org/zap"
)

// AnthropicProvider implements TextProvider using Claude.
type AnthropicProvider struct {
	client  anthropic.Client
	model   anthropic.Model
	prompts *config.Prompts
}

// NewAnthropicProvider creates a new AnthropicProvider with the given API
// key and prompt configuration.
func NewAnthropicProvider(apiKey string, prompts *config.Prompts) *AnthropicProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{
		client:  client,
		model:   anthropic.ModelClaude3_5Sonnet20241022,
		prompts: prompts,
	}
}

// AskAI wraps the query in the prompt template for queryType and asks
// Claude for an answer.
func (p *AnthropicProvider) AskAI(ctx context.Context, query string, queryType QueryType) (string, error) {
	sysPrompt, userPrompt, err := renderPrompts(p.prompts, query, queryType)
	if err != nil {
		return "", err
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(userPrompt),
				},
			},
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return "", err
	}

	return extractTextContent(resp)
}

// createMessageWithRetry wraps the Claude API call with linear backoff on
// retryable failures.
func (p *AnthropicProvider) createMessageWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	const maxRetries = 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		resp, err := p.client.Messages.New(ctx, params)
		if err == nil {
			return resp, nil
		}

		lastErr = wrapAnthropicError(err)
		if !errors.Is(lastErr, ErrUnavailable) && !errors.Is(lastErr, ErrRateLimited) {
			return nil, lastErr
		}

		logger.Get().Warn("claude API error, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
		)

		backoff := time.Second * time.Duration(i+1)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("claude API: %w: %w", ErrUnavailable, ctx.Err())
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("claude API: exhausted %d retries: %w", maxRetries, lastErr)
}

// wrapAnthropicError maps SDK errors onto the sentinel failure reasons.
func wrapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("claude API: %w: %v", ErrAuth, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("claude API: %w: %v", ErrRateLimited, err)
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return fmt.Errorf("claude API: %w: %v", ErrUnavailable, err)
		default:
			return fmt.Errorf("claude API: %w: %v", ErrMalformedResponse, err)
		}
	}
	// Transport-level failure, no HTTP status.
	return fmt.Errorf("claude API: %w: %v", ErrUnavailable, err)
}

// extractTextContent concatenates the text blocks of a Claude response.
func extractTextContent(msg *anthropic.Message) (string, error) {
	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	if out == "" {
		return "", fmt.Errorf("claude API returned no text content: %w", ErrMalformedResponse)
	}
	return out, nil
}

// renderPrompts builds the system and user prompts for a query type.
// General queries pass the raw text through with only a system prompt.
func renderPrompts(prompts *config.Prompts, query string, queryType QueryType) (system, user string, err error) {
	data := map[string]interface{}{"Query": query}

	var pair config.PromptPair
	switch queryType {
	case QueryRecipe:
		pair = prompts.Recipe
	case QueryTechnique:
		pair = prompts.Technique
	case QueryEquipment:
		pair = prompts.Equipment
	default:
		return prompts.General.System, query, nil
	}

	user, err = config.RenderPrompt(pair.User, data)
	if err != nil {
		return "", "", fmt.Errorf("render user prompt: %w", err)
	}
	return pair.System, user, nil
}
