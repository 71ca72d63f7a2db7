package council

import (
	"context"
	"errors"
	"time"

	"github.com/councilflow/councilflow/llm"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client performs single request/response exchanges with member endpoints,
// collapsing every failure mode (network, auth, rate limit, malformed
// response) into an absent result plus a logged diagnostic. No retries are
// performed at this layer.
type Client struct {
	provider llm.Provider
	timeout  time.Duration
	effort   llm.ReasoningEffort
	limiter  *rate.Limiter
	logger   *zap.Logger
	metrics  Metrics
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTimeout bounds every member call. Default 120s.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithReasoningEffort sets the default reasoning effort sent with each call.
func WithReasoningEffort(e llm.ReasoningEffort) ClientOption {
	return func(c *Client) { c.effort = e }
}

// WithRateLimiter throttles outbound calls across the whole process. A nil
// limiter disables throttling.
func WithRateLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) ClientOption {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewClient creates a member client on top of a provider.
func NewClient(provider llm.Provider, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		provider: provider,
		timeout:  120 * time.Second,
		logger:   logger.With(zap.String("component", "member_client")),
		metrics:  NopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask performs one exchange with a member. It returns nil on any failure;
// the cause is logged and counted but never propagated.
func (c *Client) Ask(ctx context.Context, m Member, msgs []llm.Message) *MemberResponse {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.logger.Warn("rate limiter wait aborted",
				zap.String("member", string(m)),
				zap.Error(err))
			return nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.provider.Completion(callCtx, &llm.ChatRequest{
		Model:           string(m),
		Messages:        msgs,
		ReasoningEffort: c.effort,
	})
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.ObserveMemberCall(string(m), elapsed, errCode(err))
		c.logger.Warn("member call failed",
			zap.String("member", string(m)),
			zap.String("code", errCode(err)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil
	}

	c.metrics.ObserveMemberCall(string(m), elapsed, "")
	c.logger.Debug("member call succeeded",
		zap.String("member", string(m)),
		zap.Int("content_len", len(resp.Content)),
		zap.Duration("elapsed", elapsed))

	return &MemberResponse{
		Member:    m,
		Content:   resp.Content,
		Reasoning: resp.Reasoning,
	}
}

// errCode extracts the llm error code for logging and metrics labels.
func errCode(err error) string {
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return string(llmErr.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return string(llm.ErrUpstreamTimeout)
	}
	return "unknown"
}
