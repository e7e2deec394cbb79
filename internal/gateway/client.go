package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"pkt.systems/icoder/internal/version"
	"pkt.systems/icoder/schema"
	"pkt.systems/pslog"
)

const (
	// DefaultBaseURL targets an OpenAI-compatible chat completions API.
	DefaultBaseURL = "https://api.mistral.ai/v1"
	// DefaultModel is the completion model used when none is configured.
	DefaultModel = "codestral-latest"
	// DefaultMaxTokens bounds completion length.
	DefaultMaxTokens = 2048
	// DefaultTemperature is the sampling temperature.
	DefaultTemperature = 0.7
)

// ErrEmptyCompletion indicates the API returned no completion content.
var ErrEmptyCompletion = errors.New("no completion content")

// Config configures the completion client.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	MaxTokens      int
	Temperature    float64
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

// Client sends one chat completion per agent turn.
type Client struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// New constructs a completion client.
func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = DefaultTemperature
	}
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHeader("User-Agent", version.UserAgent()),
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &Client{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Complete sends the prompts and recovers an agent response. Transport and
// API failures are not returned as errors; they yield the fixed error
// response so the turn still settles with a visible message.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (schema.AgentResponse, error) {
	log := pslog.Ctx(ctx).With("model", c.model)
	start := time.Now()
	text, err := c.completion(ctx, systemPrompt, userPrompt)
	if err != nil {
		log.Warn("gateway completion failed", "err", err, "duration_ms", time.Since(start).Milliseconds())
		return ErrorResponse(), nil
	}
	trimmed := strings.TrimSpace(text)
	resp, err := DecodeStrict(trimmed)
	if err != nil {
		log.Debug("gateway response not json", "err", err, "len", len(trimmed))
		resp = Fallback(trimmed)
	}
	log.Info("gateway completion done",
		"duration_ms", time.Since(start).Milliseconds(),
		"file_ops", len(resp.FileOperations),
		"command_ops", len(resp.CommandOperations),
	)
	return resp, nil
}

func (c *Client) completion(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		Temperature: openai.Float(c.temperature),
	}
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if completion == nil || len(completion.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := completion.Choices[0].Message.Content
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}
