// Package llm is a small client for OpenAI compatible chat completion APIs
// such as Groq.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"ghdash/internal/logging"
	"ghdash/internal/metrics"
)

const (
	DefaultAPIURL      = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel       = "llama-3.3-70b-versatile"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024

	// FallbackText is returned when the backend answers without choices.
	FallbackText = "Unable to generate summary at this time."

	systemPrompt = "You are a helpful assistant that creates concise, insightful summaries of GitHub activity. Focus on patterns, trends, and key highlights. Use emojis to make summaries engaging."

	breakerName = "groq"
)

var ErrMissingAPIKey = errors.New("groq api key is not configured")

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat completion returned status %d: %s", e.Status, e.Body)
}

type Config struct {
	APIURL      string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client calls the chat completion endpoint through a circuit breaker. It
// never retries.
type Client struct {
	cfg    Config
	http   *http.Client
	cb     *gobreaker.CircuitBreaker[string]
	logger logging.Logger
}

func New(cfg Config, rt http.RoundTripper, logger logging.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if rt == nil {
		rt = http.DefaultTransport
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Transport: rt, Timeout: cfg.Timeout},
		logger: logger,
	}
	c.cb = newBreaker(logger)
	return c
}

func newBreaker(logger logging.Logger) *gobreaker.CircuitBreaker[string] {
	metrics.SetBreakerState(breakerName, stateToFloat(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.SetBreakerState(name, stateToFloat(to))
		},
	})
}

// Generate sends prompt as the user message and returns the first choice.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	text, err := c.cb.Execute(func() (string, error) {
		return c.complete(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("chat completion rejected: %w", err)
		}
		return "", err
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	log := logging.FromContext(ctx, c.logger)

	payload, err := json.Marshal(ChatRequest{
		Model: c.cfg.Model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var cr ChatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		log.Warn("chat completion returned no choices")
		return FallbackText, nil
	}
	return cr.Choices[0].Message.Content, nil
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
