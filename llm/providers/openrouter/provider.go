// =============================================================================
// OpenRouter Provider
// =============================================================================
// Adapter for the OpenRouter chat-completions API. OpenRouter is OpenAI-wire
// compatible and multiplexes many upstream vendors behind one endpoint, so a
// single adapter serves every council member regardless of which vendor hosts
// its model.
// =============================================================================

package openrouter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/councilflow/councilflow/internal/tlsutil"
	"github.com/councilflow/councilflow/llm"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the public OpenRouter API root.
	DefaultBaseURL = "https://openrouter.ai/api"

	completionsPath = "/v1/chat/completions"
	modelsPath      = "/v1/models"

	providerName = "openrouter"
)

// Config holds the adapter configuration.
type Config struct {
	// APIKey authenticates every request. Required.
	APIKey string

	// BaseURL overrides the API root, mainly for tests. Defaults to DefaultBaseURL.
	BaseURL string

	// Timeout is the HTTP client timeout. Defaults to 120s; council members can
	// legitimately think for a long time.
	Timeout time.Duration

	// Referer and Title populate OpenRouter's optional attribution headers
	// (HTTP-Referer / X-Title).
	Referer string
	Title   string
}

// Provider implements llm.Provider against OpenRouter.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates an OpenRouter provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("component", "openrouter")),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return providerName }

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

func (p *Provider) buildHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", p.cfg.Referer)
	}
	if p.cfg.Title != "" {
		req.Header.Set("X-Title", p.cfg.Title)
	}
}

// Completion performs a non-streaming chat completion.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body := buildWireRequest(req, false)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(completionsPath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body))
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: providerName,
		}
	}
	if len(wire.Choices) == 0 {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: "response contains no choices",
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: providerName,
		}
	}

	out := &llm.ChatResponse{
		ID:        wire.ID,
		Provider:  providerName,
		Model:     wire.Model,
		Content:   wire.Choices[0].Message.Content,
		Reasoning: wire.Choices[0].Message.Reasoning,
	}
	if wire.Usage != nil {
		out.Usage = llm.ChatUsage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		}
	}
	if wire.Created != 0 {
		out.CreatedAt = time.Unix(wire.Created, 0)
	}
	return out, nil
}

// Stream performs a streaming chat completion via SSE.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	body := buildWireRequest(req, true)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(completionsPath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body))
	}

	return streamSSE(ctx, resp.Body), nil
}

// HealthCheck verifies the endpoint is reachable by listing models.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(modelsPath), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &llm.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("openrouter health check failed: status=%d msg=%s", resp.StatusCode, readErrorMessage(resp.Body))
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// ListModels returns OpenRouter's model catalog.
func (p *Provider) ListModels(ctx context.Context) ([]llm.Model, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(modelsPath), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body))
	}

	var wire struct {
		Data []struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			ContextLength int    `json:"context_length"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: providerName,
		}
	}

	models := make([]llm.Model, 0, len(wire.Data))
	for _, m := range wire.Data {
		models = append(models, llm.Model{ID: m.ID, Name: m.Name, Context: m.ContextLength})
	}
	return models, nil
}

// transportError normalizes client-side transport failures, distinguishing
// deadline expiry from other network errors.
func transportError(err error) *llm.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.Error{
			Code: llm.ErrUpstreamTimeout, Message: err.Error(),
			HTTPStatus: http.StatusGatewayTimeout, Retryable: true, Provider: providerName,
		}
	}
	return &llm.Error{
		Code: llm.ErrUpstreamError, Message: err.Error(),
		HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: providerName,
	}
}

// streamSSE parses an OpenAI-compatible SSE stream into a channel of chunks.
func streamSSE(ctx context.Context, body io.ReadCloser) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk)
	go func() {
		defer body.Close()
		defer close(ch)
		reader := bufio.NewReader(body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					select {
					case <-ctx.Done():
					case ch <- llm.StreamChunk{Err: transportError(err)}:
					}
				}
				return
			}
			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var wire wireResponse
			if err := json.Unmarshal([]byte(data), &wire); err != nil {
				select {
				case <-ctx.Done():
				case ch <- llm.StreamChunk{Err: &llm.Error{
					Code: llm.ErrUpstreamError, Message: err.Error(),
					HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: providerName,
				}}:
				}
				return
			}

			for _, choice := range wire.Choices {
				chunk := llm.StreamChunk{
					ID:           wire.ID,
					Provider:     providerName,
					Model:        wire.Model,
					FinishReason: choice.FinishReason,
				}
				if choice.Delta != nil {
					chunk.Delta = choice.Delta.Content
				}
				select {
				case <-ctx.Done():
					return
				case ch <- chunk:
				}
			}
		}
	}()
	return ch
}
