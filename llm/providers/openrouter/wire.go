package openrouter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/councilflow/councilflow/llm"
)

// Wire types for the OpenAI-compatible request/response format, plus
// OpenRouter's reasoning extension.

type wireMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
}

type wireReasoning struct {
	Effort string `json:"effort"`
}

type wireRequest struct {
	Model       string         `json:"model"`
	Messages    []wireMessage  `json:"messages"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float32        `json:"temperature,omitempty"`
	Stream      bool           `json:"stream,omitempty"`
	Reasoning   *wireReasoning `json:"reasoning,omitempty"`
}

type wireChoice struct {
	Index        int          `json:"index"`
	FinishReason string       `json:"finish_reason"`
	Message      wireMessage  `json:"message"`
	Delta        *wireMessage `json:"delta,omitempty"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type wireResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   *wireUsage   `json:"usage,omitempty"`
	Created int64        `json:"created,omitempty"`
}

// buildWireRequest converts an llm.ChatRequest to the OpenRouter wire format.
func buildWireRequest(req *llm.ChatRequest, stream bool) wireRequest {
	msgs := make([]wireMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, wireMessage{Role: string(m.Role), Content: m.Content})
	}
	body := wireRequest{
		Model:       req.Model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
	if req.ReasoningEffort != llm.ReasoningNone {
		body.Reasoning = &wireReasoning{Effort: string(req.ReasoningEffort)}
	}
	return body
}

// mapHTTPError maps an upstream HTTP status to an llm.Error with the
// appropriate retryability flag.
func mapHTTPError(status int, msg string) *llm.Error {
	e := &llm.Error{Message: msg, HTTPStatus: status, Provider: providerName}
	switch status {
	case http.StatusUnauthorized:
		e.Code = llm.ErrUnauthorized
	case http.StatusForbidden:
		e.Code = llm.ErrForbidden
	case http.StatusTooManyRequests:
		e.Code = llm.ErrRateLimited
		e.Retryable = true
	case http.StatusPaymentRequired:
		e.Code = llm.ErrQuotaExceeded
	case http.StatusBadRequest:
		// Quota exhaustion sometimes surfaces as a 400 with a credit message.
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "credit") {
			e.Code = llm.ErrQuotaExceeded
		} else {
			e.Code = llm.ErrInvalidRequest
		}
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		e.Code = llm.ErrUpstreamError
		e.Retryable = true
	case 529: // model overloaded, used by some upstreams behind OpenRouter
		e.Code = llm.ErrModelOverloaded
		e.Retryable = true
	default:
		e.Code = llm.ErrUpstreamError
		e.Retryable = status >= 500
	}
	return e
}

// readErrorMessage extracts a human-readable message from an error response
// body, falling back to the raw text when it is not the expected JSON shape.
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}
	return string(data)
}
