package council

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const truncationNotice = "\n\n[truncated for length]"

// promptTrimmer caps individual text blocks by token count so that prompts
// built from many long member answers stay inside the chairman's context
// window. A zero budget disables trimming.
type promptTrimmer struct {
	budget int
	enc    *tiktoken.Tiktoken
}

// newPromptTrimmer builds a trimmer with the given per-block token budget.
// Encoding setup failure degrades to a character-count heuristic rather than
// failing the request.
func newPromptTrimmer(budget int) *promptTrimmer {
	t := &promptTrimmer{budget: budget}
	if budget <= 0 {
		return t
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err == nil {
		t.enc = enc
	}
	return t
}

// Trim returns text cut down to the token budget, with a truncation notice
// appended when anything was removed.
func (t *promptTrimmer) Trim(text string) string {
	if t.budget <= 0 {
		return text
	}
	if t.enc == nil {
		// Heuristic fallback: ~4 characters per token for English text.
		limit := t.budget * 4
		if len(text) <= limit {
			return text
		}
		return strings.TrimSpace(text[:limit]) + truncationNotice
	}

	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= t.budget {
		return text
	}
	return strings.TrimSpace(t.enc.Decode(tokens[:t.budget])) + truncationNotice
}

// Count returns the token count of text under the trimmer's encoding, or the
// heuristic estimate when the encoding is unavailable.
func (t *promptTrimmer) Count(text string) int {
	if t.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(t.enc.Encode(text, nil, nil))
}
