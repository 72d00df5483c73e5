package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// Default models used by the memory pipeline
	DefaultModel      = "gpt-5-mini"
	DefaultSmallModel = "gpt-5-nano"

	// Default OpenAI API base URL
	defaultBaseURL = "https://api.openai.com/v1"

	// Default timeout for API requests
	defaultTimeout = 60 * time.Second

	defaultRetryAttempts = 3
	defaultRetryInterval = 500 * time.Millisecond
)

// Message roles accepted by the chat completions API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one completion call.
type Request struct {
	// Messages is the conversation sent to the model, in order.
	Messages []Message

	// Small routes the request to the cheaper auxiliary model.
	Small bool

	// JSONMode asks the model for a single JSON object response.
	JSONMode bool

	// MaxTokens caps the completion length. Zero leaves it to the model.
	MaxTokens int
}

// Config configures the completion client.
type Config struct {
	// APIKey is required for authentication
	APIKey string

	// Model is the primary extraction model
	// Default: gpt-5-mini
	Model string

	// SmallModel handles cheaper auxiliary prompts
	// Default: gpt-5-nano
	SmallModel string

	// BaseURL points the client at an OpenAI-compatible endpoint
	// Default: https://api.openai.com/v1
	BaseURL string

	// Temperature for models that accept one. The gpt-5 family rejects the
	// parameter, so it is omitted for those models regardless of this value.
	Temperature float64

	// RetryAttempts is the number of tries for transient failures.
	RetryAttempts int

	// RetryInterval is the pause between retries.
	RetryInterval time.Duration

	// HTTPClient allows custom HTTP client configuration
	// Default: http.Client with 60s timeout
	HTTPClient *http.Client
}

// Client talks to a chat completions endpoint.
type Client struct {
	apiKey        string
	model         string
	smallModel    string
	baseURL       string
	temperature   float64
	retryAttempts int
	retryInterval time.Duration
	client        *http.Client
}

// New creates a completion client.
func New(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}
	smallModel := config.SmallModel
	if smallModel == "" {
		smallModel = DefaultSmallModel
	}

	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = 1.0
	}

	retryAttempts := config.RetryAttempts
	if retryAttempts <= 0 {
		retryAttempts = defaultRetryAttempts
	}
	retryInterval := config.RetryInterval
	if retryInterval <= 0 {
		retryInterval = defaultRetryInterval
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: defaultTimeout,
		}
	}

	return &Client{
		apiKey:        config.APIKey,
		model:         model,
		smallModel:    smallModel,
		baseURL:       baseURL,
		temperature:   temperature,
		retryAttempts: retryAttempts,
		retryInterval: retryInterval,
		client:        client,
	}, nil
}

// Model returns the primary model name.
func (c *Client) Model() string {
	return c.model
}

// SmallModel returns the auxiliary model name.
func (c *Client) SmallModel() string {
	return c.smallModel
}

// Complete sends the request and returns the model's text response.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if len(req.Messages) == 0 {
		return "", ErrNoMessages
	}

	model := c.model
	if req.Small {
		model = c.smallModel
	}

	body := chatRequest{
		Model:    model,
		Messages: req.Messages,
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	if req.MaxTokens > 0 {
		body.MaxCompletionTokens = req.MaxTokens
	}
	// The gpt-5 family only accepts the default temperature.
	if !strings.Contains(strings.ToLower(model), "gpt-5") {
		body.Temperature = &c.temperature
	}

	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.retryInterval):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		content, retryable, err := c.callAPI(ctx, body)
		if err == nil {
			return content, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
	}

	return "", lastErr
}

// CompleteJSON sends the request in JSON mode and decodes the model's
// response into out.
func (c *Client) CompleteJSON(ctx context.Context, req Request, out any) error {
	req.JSONMode = true

	content, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(stripFences(content)), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}

// callAPI performs a single HTTP round trip. The second return value reports
// whether the failure is worth retrying.
func (c *Client) callAPI(ctx context.Context, body chatRequest) (string, bool, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", true, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", true, fmt.Errorf("%w: %s", ErrRateLimitExceeded, apiErrorMessage(respBody))
	case resp.StatusCode >= 500:
		return "", true, fmt.Errorf("%w: status %d: %s", ErrCompletionFailed, resp.StatusCode, apiErrorMessage(respBody))
	default:
		return "", false, fmt.Errorf("%w: status %d: %s", ErrCompletionFailed, resp.StatusCode, apiErrorMessage(respBody))
	}

	var response chatResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", false, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return "", false, ErrEmptyResponse
	}

	return response.Choices[0].Message.Content, false, nil
}

// stripFences removes a markdown code fence wrapper if the model added one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func apiErrorMessage(body []byte) string {
	var errorResp chatErrorResponse
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		return errorResp.Error.Message
	}
	return string(body)
}

// Chat completions API request/response types

type chatRequest struct {
	Model               string          `json:"model"`
	Messages            []Message       `json:"messages"`
	Temperature         *float64        `json:"temperature,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	ResponseFormat      *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
