package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/jechocarlos/queenbee/pkg/config"
)

// ProviderOpenRouter is the provider key used for rate-limit bookkeeping.
const ProviderOpenRouter = "openrouter"

// OpenRouterClient implements LanguageModel against the OpenRouter
// chat-completions API. All agents share one client and therefore one
// rate-limit bucket per upstream model.
type OpenRouterClient struct {
	client     openai.Client
	model      string
	limiter    *RateLimiter
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewOpenRouterClient builds a client from configuration. The API key is
// required; a missing key is an auth error so startup fails fast instead of
// failing on the first deliberation.
func NewOpenRouterClient(ctx context.Context, cfg *config.OpenRouterConfig, coord *Coordinator) (*OpenRouterClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENROUTER_API_KEY is not set", ErrAuth)
	}

	client := openai.NewClient(
		openaiopt.WithAPIKey(cfg.APIKey),
		openaiopt.WithBaseURL(cfg.BaseURL),
		openaiopt.WithRequestTimeout(cfg.Timeout()),
		openaiopt.WithMaxRetries(0), // retries are handled here, with the limiter in the loop
	)

	return &OpenRouterClient{
		client:     client,
		model:      cfg.Model,
		limiter:    coord.Limiter(ctx, ProviderOpenRouter, cfg.Model, cfg.RequestsPerMinute),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay(),
		logger:     slog.With("component", "openrouter", "model", cfg.Model),
	}, nil
}

// Model returns the configured upstream model identifier.
func (c *OpenRouterClient) Model() string { return c.model }

func (c *OpenRouterClient) params(req GenerateRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// Generate performs one chat completion with rate limiting and bounded
// retries. Rate-limit responses set the shared cooldown before retrying so
// concurrent agents back off together.
func (c *OpenRouterClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	params := c.params(req)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return "", err
		}

		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err == nil {
			if len(completion.Choices) == 0 {
				return "", fmt.Errorf("%w: completion contained no choices", ErrTransient)
			}
			return completion.Choices[0].Message.Content, nil
		}

		lastErr = c.classify(ctx, err)
		if !retryable(lastErr) {
			return "", lastErr
		}
		if attempt < c.maxRetries {
			// Linear backoff. Rate-limit waits are already absorbed by the
			// limiter cooldown, so this only spaces out transient failures.
			delay := c.retryDelay * time.Duration(attempt)
			c.logger.Warn("Generation failed, retrying",
				"attempt", attempt, "max_retries", c.maxRetries,
				"delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return "", fmt.Errorf("generation failed after %d attempts: %w", c.maxRetries, lastErr)
}

// GenerateStream streams one chat completion chunk by chunk. Retries do not
// apply once streaming has started; callers needing at-most-once semantics
// use Generate.
func (c *OpenRouterClient) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if err := c.limiter.Acquire(ctx); err != nil {
			errs <- err
			return
		}

		stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case chunks <- delta:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := stream.Err(); err != nil {
			errs <- c.classify(ctx, err)
		}
	}()

	return chunks, errs
}

// Probe issues a minimal completion to verify credentials and reachability.
// Called once at startup.
func (c *OpenRouterClient) Probe(ctx context.Context) error {
	_, err := c.Generate(ctx, GenerateRequest{
		Prompt:      "Reply with OK.",
		Temperature: 0,
		MaxTokens:   5,
	})
	if err != nil {
		return fmt.Errorf("model probe failed: %w", err)
	}
	c.logger.Info("Model probe succeeded")
	return nil
}

// classify maps SDK errors onto the package error taxonomy. Rate-limit
// responses additionally push the advertised reset instant into the shared
// limiter.
func (c *OpenRouterClient) classify(ctx context.Context, err error) error {
	var apierr *openai.Error
	if !errors.As(err, &apierr) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	switch {
	case apierr.StatusCode == http.StatusTooManyRequests:
		resetAt := parseResetHeader(apierr.Response, c.retryDelay)
		c.limiter.SetCooldown(ctx, resetAt)
		return fmt.Errorf("openrouter: %w", &RateLimitedError{ResetAt: resetAt})
	case apierr.StatusCode == http.StatusUnauthorized || apierr.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: openrouter returned %d", ErrAuth, apierr.StatusCode)
	case apierr.StatusCode >= 500:
		return fmt.Errorf("%w: openrouter returned %d", ErrTransient, apierr.StatusCode)
	default:
		return fmt.Errorf("openrouter request failed with status %d: %w", apierr.StatusCode, err)
	}
}

func retryable(err error) bool {
	if _, ok := AsRateLimited(err); ok {
		return true
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrProviderUnavailable)
}

// parseResetHeader reads OpenRouter's X-RateLimit-Reset header, a Unix
// timestamp in milliseconds. A missing or malformed header falls back to
// now plus the configured retry delay.
func parseResetHeader(resp *http.Response, fallback time.Duration) time.Time {
	if resp != nil {
		if raw := resp.Header.Get("X-RateLimit-Reset"); raw != "" {
			if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return time.UnixMilli(ms)
			}
		}
	}
	return time.Now().Add(fallback)
}
