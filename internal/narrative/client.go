package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/genai"

	apperrors "github.com/So-hel/signalmatrix-repo/internal/errors"
	"github.com/So-hel/signalmatrix-repo/internal/resilience"
)

var errEmptyCompletion = errors.New("model returned no content")

// completer sends one system + user prompt pair and returns the raw model text.
type completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ProviderError is a non-2xx answer from a chat completions endpoint. Its
// message keeps the status code and body so quota and auth failures can be
// recognised.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatClient speaks the OpenAI chat completions protocol used by openai and blackbox.
type chatClient struct {
	endpoint string
	apiKey   string
	model    string
	jsonMode bool
	pool     *resilience.ConnectionPool
}

func newChatClient(cfg Config) *chatClient {
	return &chatClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		jsonMode: cfg.Provider == ProviderOpenAI,
		pool: resilience.NewConnectionPool(resilience.PoolConfig{
			Name:           "narrative-" + cfg.Provider,
			MaxActive:      4,
			RequestTimeout: cfg.Timeout,
		}, nil),
	}
}

func (c *chatClient) Complete(ctx context.Context, system, user string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	if c.jsonMode {
		reqBody.ResponseFormat = map[string]string{"type": "json_object"}
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"Content-Type":  "application/json",
	}
	resp, err := c.pool.DoRequest(ctx, http.MethodPost, c.endpoint, headers, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	defer apperrors.SafeClose(resp.Body, "chat completion body")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", errEmptyCompletion
	}
	return out.Choices[0].Message.Content, nil
}

// geminiClient wraps the official genai client.
type geminiClient struct {
	cli   *genai.Client
	model string
}

func newGeminiClient(ctx context.Context, cfg Config) (*geminiClient, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	cli, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiClient{cli: cli, model: cfg.Model}, nil
}

func (g *geminiClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: user}}}},
		&genai.GenerateContentConfig{
			ResponseMIMEType:  "application/json",
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errEmptyCompletion
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
