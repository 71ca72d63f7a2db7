package llm

import (
	"context"
	"time"
)

// ErrorCode classifies provider failures so callers can align HTTP status,
// retryability and degradation policy without inspecting provider-specific payloads.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "LLM_INVALID_REQUEST"
	ErrUnauthorized        ErrorCode = "LLM_UNAUTHORIZED"
	ErrForbidden           ErrorCode = "LLM_FORBIDDEN"
	ErrRateLimited         ErrorCode = "LLM_RATE_LIMITED"
	ErrQuotaExceeded       ErrorCode = "LLM_QUOTA_EXCEEDED"
	ErrModelOverloaded     ErrorCode = "LLM_MODEL_OVERLOADED"
	ErrUpstreamTimeout     ErrorCode = "LLM_UPSTREAM_TIMEOUT"
	ErrUpstreamError       ErrorCode = "LLM_UPSTREAM_ERROR"
	ErrProviderUnavailable ErrorCode = "LLM_PROVIDER_UNAVAILABLE"
)

// Error is the unified provider error shape.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string { return e.Message }

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat conversation sent to or received from a model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
}

// ReasoningEffort controls how much internal "thinking" a model spends before
// answering, for models that support it. Empty means no reasoning is requested.
type ReasoningEffort string

const (
	ReasoningNone    ReasoningEffort = ""
	ReasoningMinimal ReasoningEffort = "minimal"
	ReasoningLow     ReasoningEffort = "low"
	ReasoningMedium  ReasoningEffort = "medium"
	ReasoningHigh    ReasoningEffort = "high"
)

// ParseReasoningEffort normalizes a configured effort string. "none" and ""
// both mean no reasoning. Unknown values are rejected.
func ParseReasoningEffort(s string) (ReasoningEffort, bool) {
	switch ReasoningEffort(s) {
	case ReasoningNone, ReasoningMinimal, ReasoningLow, ReasoningMedium, ReasoningHigh:
		return ReasoningEffort(s), true
	}
	if s == "none" {
		return ReasoningNone, true
	}
	return ReasoningNone, false
}

type ChatRequest struct {
	TraceID         string          `json:"trace_id,omitempty"`
	Model           string          `json:"model"`
	Messages        []Message       `json:"messages"`
	MaxTokens       int             `json:"max_tokens,omitempty"`
	Temperature     float32         `json:"temperature,omitempty"`
	ReasoningEffort ReasoningEffort `json:"reasoning_effort,omitempty"`
	Timeout         time.Duration   `json:"timeout,omitempty"`
}

type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

type ChatResponse struct {
	ID        string    `json:"id,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model"`
	Content   string    `json:"content"`
	Reasoning string    `json:"reasoning,omitempty"`
	Usage     ChatUsage `json:"usage,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// StreamChunk is one incremental piece of a streaming completion.
type StreamChunk struct {
	ID           string `json:"id,omitempty"`
	Provider     string `json:"provider,omitempty"`
	Model        string `json:"model,omitempty"`
	Delta        string `json:"delta,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	Err          *Error `json:"error,omitempty"`
}

// HealthStatus reports the result of a provider health probe.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Model describes one entry of a provider's model catalog.
type Model struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Context int    `json:"context_length,omitempty"`
}

// Provider is the unified adapter interface over a chat-completions endpoint.
// The council core talks only to this interface; it never branches on which
// upstream vendor actually serves a given model id.
type Provider interface {
	// Completion performs one synchronous chat exchange.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream performs a streaming chat exchange, returning a channel of deltas.
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)

	// HealthCheck performs a lightweight reachability probe.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// ListModels returns the provider's model catalog.
	ListModels(ctx context.Context) ([]Model, error)

	// Name returns the provider's unique identifier.
	Name() string
}
