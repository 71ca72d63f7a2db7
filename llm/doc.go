// Package llm defines the provider-agnostic chat-completions contract used by
// the council core: request/response shapes, the unified error taxonomy, and
// the Provider interface that concrete adapters implement.
package llm
