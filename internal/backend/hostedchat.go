package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/refract/internal/hunk"
	"github.com/dshills/refract/internal/review"
)

const (
	defaultHostedURL   = "https://api.openai.com"
	defaultHostedModel = "gpt-4o"
)

// HostedChat talks to an OpenAI-compatible chat completions API. Any server
// speaking that dialect works; point Endpoint at a local Ollama or LM Studio
// instance to keep the diff off the network entirely.
type HostedChat struct {
	chatURL     string
	model       string
	apiKey      string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	logger      *zap.Logger
	client      *http.Client
}

// NewHostedChat creates a hosted chat backend. Construction never fails; a
// missing credential is reported per call.
func NewHostedChat(opts Options) *HostedChat {
	opts = opts.withDefaults()
	key := opts.APIKey
	if key == "" {
		key = os.Getenv("REFRACT_API_KEY")
	}
	model := opts.Model
	if model == "" {
		model = defaultHostedModel
	}
	return &HostedChat{
		chatURL:     chatCompletionsURL(opts.Endpoint),
		model:       model,
		apiKey:      key,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
		client:      &http.Client{},
	}
}

// chatCompletionsURL normalizes an endpoint to the one path this adapter
// speaks, whether the configured value carries /v1 or the full path already.
func chatCompletionsURL(endpoint string) string {
	if endpoint == "" {
		endpoint = defaultHostedURL
	}
	endpoint = strings.TrimRight(endpoint, "/")
	endpoint = strings.TrimSuffix(endpoint, "/v1/chat/completions")
	endpoint = strings.TrimSuffix(endpoint, "/v1")
	return endpoint + "/v1/chat/completions"
}

func (c *HostedChat) Name() string { return NameHostedChat }

func (c *HostedChat) ReviewHunk(ctx context.Context, h hunk.Hunk, guidelines string) (string, error) {
	if c.apiKey == "" {
		return "", &Error{Backend: c.Name(), Kind: KindDependencyMissing, Detail: "no API credentials configured (set REFRACT_API_KEY)"}
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: review.SystemPrompt()},
			{Role: "user", Content: review.BuildHunkPrompt(h, guidelines)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reply string
	err = withRetry(ctx, c.logger, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		httpResp, err := c.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		if err := checkStatus(c.Name(), httpResp.StatusCode, respBody); err != nil {
			return err
		}

		var result chatResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		if len(result.Choices) == 0 {
			return &Error{Backend: c.Name(), Kind: KindUnreachable, Detail: "no choices in response"}
		}
		if result.Choices[0].Message.Content == "" {
			return &Error{Backend: c.Name(), Kind: KindUnreachable, Detail: "empty message content in response"}
		}
		reply = result.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", classify(c.Name(), err)
	}
	return reply, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}
