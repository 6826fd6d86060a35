package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/refract/internal/hunk"
	"github.com/dshills/refract/internal/review"
)

const defaultManagedModel = "anthropic.claude-3-5-sonnet-20241022-v2:0"

// ManagedModel invokes a model hosted on a managed platform through its REST
// invocation endpoint: POST {endpoint}/model/{id}/invoke with a messages
// payload, reply in the first content block.
type ManagedModel struct {
	endpoint    string
	model       string
	apiKey      string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	logger      *zap.Logger
	client      *http.Client
}

// NewManagedModel creates a managed model backend. Construction never fails;
// a missing endpoint or credential is reported per call so the run degrades
// instead of aborting.
func NewManagedModel(opts Options) *ManagedModel {
	opts = opts.withDefaults()
	key := opts.APIKey
	if key == "" {
		key = os.Getenv("REFRACT_API_KEY")
	}
	model := opts.Model
	if model == "" {
		model = defaultManagedModel
	}
	return &ManagedModel{
		endpoint:    opts.Endpoint,
		model:       model,
		apiKey:      key,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
		client:      &http.Client{},
	}
}

func (m *ManagedModel) Name() string { return NameManagedModel }

func (m *ManagedModel) ReviewHunk(ctx context.Context, h hunk.Hunk, guidelines string) (string, error) {
	if m.endpoint == "" {
		return "", &Error{Backend: m.Name(), Kind: KindDependencyMissing, Detail: "no model invocation endpoint configured"}
	}
	if m.apiKey == "" {
		return "", &Error{Backend: m.Name(), Kind: KindDependencyMissing, Detail: "no API credentials configured (set REFRACT_API_KEY)"}
	}

	body := invokeRequest{
		Messages: []chatMessage{
			{Role: "system", Content: review.SystemPrompt()},
			{Role: "user", Content: review.BuildHunkPrompt(h, guidelines)},
		},
		MaxTokens:   m.maxTokens,
		Temperature: m.temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var reply string
	err = withRetry(ctx, m.logger, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.invokeURL(), bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)

		httpResp, err := m.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		if err := checkStatus(m.Name(), httpResp.StatusCode, respBody); err != nil {
			return err
		}

		var result invokeResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		if len(result.Content) == 0 || result.Content[0].Text == "" {
			return &Error{Backend: m.Name(), Kind: KindUnreachable, Detail: "empty content in model response"}
		}
		reply = result.Content[0].Text
		return nil
	})
	if err != nil {
		return "", classify(m.Name(), err)
	}
	return reply, nil
}

func (m *ManagedModel) invokeURL() string {
	return strings.TrimRight(m.endpoint, "/") + "/model/" + url.PathEscape(m.model) + "/invoke"
}

type invokeRequest struct {
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type invokeResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
