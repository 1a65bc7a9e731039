package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

// Name selects the backend. All three are reached through OpenAI-compatible chat completions.
type Name string

const (
	OpenAI Name = "openai"
	Gemini Name = "gemini"
	Ollama Name = "ollama"
)

const (
	geminiBaseURL        = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultTemperature   = 0.7
	DefaultTopP          = 0.95
	DefaultTimeout       = 10 * time.Minute
)

// Config is built once at startup and handed to New by value.
type Config struct {
	Provider    Name
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	TopP        float64
	Timeout     time.Duration

	// Retries is the number of extra attempts after a rate-limit or server error. Zero disables retrying.
	Retries         int
	RateLimitWaits  []time.Duration
	ServerErrorWait []time.Duration
}

// DefaultConfig returns the sampling and retry defaults; Provider, Model and credentials stay empty.
func DefaultConfig() Config {
	return Config{
		Provider:        Gemini,
		Temperature:     DefaultTemperature,
		TopP:            DefaultTopP,
		Timeout:         DefaultTimeout,
		RateLimitWaits:  []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second},
		ServerErrorWait: []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second},
	}
}

// Validate reports configuration that would make every call fail.
func (c Config) Validate() error {
	var problem string
	switch {
	case c.Model == "":
		problem = "model name is not set"
	case c.Provider != OpenAI && c.Provider != Gemini && c.Provider != Ollama:
		problem = fmt.Sprintf("unknown provider %q", c.Provider)
	case c.Provider != Ollama && c.APIKey == "":
		problem = fmt.Sprintf("api key for %s is not set", c.Provider)
	case c.Retries < 0:
		problem = "retries must be >= 0"
	}
	if problem == "" {
		return nil
	}
	return &Failure{Category: CategoryMissingConfig, Provider: c.Provider, Model: c.Model, Err: errors.New(problem)}
}

// Endpoint is the base URL requests go to.
func (c Config) Endpoint() string {
	switch c.Provider {
	case Gemini:
		if c.BaseURL != "" {
			return c.BaseURL
		}
		return geminiBaseURL
	case Ollama:
		base := c.BaseURL
		if base == "" {
			base = DefaultOllamaBaseURL
		}
		return strings.TrimRight(base, "/") + "/v1/"
	default:
		return c.BaseURL
	}
}

// Client generates text through one configured provider.
type Client struct {
	cfg Config
	api openai.Client
	log zerolog.Logger
}

// New validates cfg and builds a client. The SDK's own retries are disabled; Config.Retries governs.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	key := cfg.APIKey
	if key == "" {
		key = "ollama"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if ep := cfg.Endpoint(); ep != "" {
		opts = append(opts, option.WithBaseURL(ep))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Client{
		cfg: cfg,
		api: openai.NewClient(opts...),
		log: log.With().Str("provider", string(cfg.Provider)).Str("model", cfg.Model).Logger(),
	}, nil
}

// Config returns the configuration the client was built with.
func (c *Client) Config() Config { return c.cfg }

// Generate sends one system/user exchange and returns the trimmed answer.
// Errors are always *Failure.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return "", c.fail(CategoryUnknown, errors.New("user prompt is empty"))
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if strings.TrimSpace(systemPrompt) != "" {
		msgs = append(msgs, openai.SystemMessage(systemPrompt))
	}
	msgs = append(msgs, openai.UserMessage(userPrompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.cfg.Model),
		Messages:    msgs,
		Temperature: openai.Float(c.cfg.Temperature),
		TopP:        openai.Float(c.cfg.TopP),
	}

	c.log.Debug().Int("user_prompt_chars", len(userPrompt)).Msg("sending request")
	start := time.Now()
	resp, err := c.callWithRetry(ctx, params)
	if err != nil {
		return "", c.fail(Categorize(err), err)
	}
	c.log.Debug().Dur("duration", time.Since(start)).Msg("response received")

	if len(resp.Choices) == 0 {
		return "", c.fail(CategoryEmptyResponse, ErrEmptyResponse)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", c.fail(CategorySafetyBlock, errors.New("response blocked by content filter"))
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", c.fail(CategoryEmptyResponse, ErrEmptyResponse)
	}
	return text, nil
}

// Preflight checks that the endpoint is reachable and knows the configured model.
func (c *Client) Preflight(ctx context.Context) error {
	if _, err := c.api.Models.Get(ctx, c.cfg.Model); err != nil {
		return c.fail(Categorize(err), err)
	}
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	attempts := c.cfg.Retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := c.api.Chat.Completions.New(ctx, params)
		if err == nil {
			return resp, nil
		}
		if attempt == attempts-1 || ctx.Err() != nil {
			return nil, err
		}

		var wait time.Duration
		switch {
		case isRateLimitError(err):
			wait = waitFor(c.cfg.RateLimitWaits, attempt)
		case isServerError(err):
			wait = waitFor(c.cfg.ServerErrorWait, attempt)
		default:
			return nil, err
		}
		c.log.Warn().Err(err).Int("attempt", attempt+1).Dur("wait", wait).Msg("retrying")
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed after %d attempts", attempts)
}

func (c *Client) fail(cat Category, err error) *Failure {
	return &Failure{Category: cat, Provider: c.cfg.Provider, Model: c.cfg.Model, Err: err}
}

func waitFor(waits []time.Duration, attempt int) time.Duration {
	if len(waits) == 0 {
		return 0
	}
	if attempt >= len(waits) {
		return waits[len(waits)-1]
	}
	return waits[attempt]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
