package api

import (
	"time"

	"github.com/councilflow/councilflow/council"
	"github.com/councilflow/councilflow/storage"
)

// =============================================================================
// Conversation types
// =============================================================================

// CreateConversationRequest creates a new conversation. Title is optional;
// when empty, the first user message supplies it.
type CreateConversationRequest struct {
	Title string `json:"title,omitempty"`
}

// SendMessageRequest submits one user message for deliberation.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// MemberAnswer is one member's first-stage answer, de-anonymized.
type MemberAnswer struct {
	Model   string `json:"model"`
	Content string `json:"content"`
}

// MemberEvaluation is one member's raw second-stage ranking text.
type MemberEvaluation struct {
	Model        string `json:"model"`
	Ranking      string `json:"ranking"`
	UsedFallback bool   `json:"used_fallback,omitempty"`
}

// AggregateEntry is one row of the consensus ranking table, ordered best
// first.
type AggregateEntry struct {
	Model           string  `json:"model"`
	AveragePosition float64 `json:"average_position"`
	VoteCount       int     `json:"vote_count"`
}

// DeliberationMetadata is the response-only portion of a deliberation. It is
// never persisted; replaying a conversation will not reproduce it.
type DeliberationMetadata struct {
	LabelMap          map[string]string `json:"label_map"`
	AggregateRankings []AggregateEntry  `json:"aggregate_rankings"`
	Unranked          []string          `json:"unranked,omitempty"`
}

// SendMessageResponse is the full outcome of one deliberation round.
type SendMessageResponse struct {
	ConversationID string               `json:"conversation_id"`
	Stage1         []MemberAnswer       `json:"stage1"`
	Stage2         []MemberEvaluation   `json:"stage2"`
	Stage3         string               `json:"stage3"`
	Metadata       DeliberationMetadata `json:"metadata"`
}

// ModelInfo describes one model available upstream.
type ModelInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	ContextLength int    `json:"context_length,omitempty"`
}

// CouncilInfo reports the configured council composition.
type CouncilInfo struct {
	Members  []string `json:"members"`
	Chairman string   `json:"chairman"`
}

// =============================================================================
// Conversions
// =============================================================================

// NewDeliberationMetadata converts pipeline metadata into its API shape.
func NewDeliberationMetadata(m council.Metadata) DeliberationMetadata {
	out := DeliberationMetadata{
		LabelMap:          make(map[string]string, len(m.LabelMap)),
		AggregateRankings: make([]AggregateEntry, 0, len(m.AggregateRankings)),
	}
	for label, member := range m.LabelMap {
		out.LabelMap[string(label)] = string(member)
	}
	for _, e := range m.AggregateRankings {
		out.AggregateRankings = append(out.AggregateRankings, AggregateEntry{
			Model:           string(e.Member),
			AveragePosition: e.AveragePosition,
			VoteCount:       e.VoteCount,
		})
	}
	for _, m := range m.Unranked {
		out.Unranked = append(out.Unranked, string(m))
	}
	return out
}

// NewSendMessageResponse flattens a deliberation result for the wire. Stage-1
// answers follow the declared member order.
func NewSendMessageResponse(conversationID string, declared []council.Member, res *council.DeliberationResult) SendMessageResponse {
	resp := SendMessageResponse{
		ConversationID: conversationID,
		Stage1:         make([]MemberAnswer, 0, len(res.Stage1)),
		Stage2:         make([]MemberEvaluation, 0, len(res.Stage2)),
		Stage3:         res.Stage3,
		Metadata:       NewDeliberationMetadata(res.Metadata),
	}
	for _, m := range declared {
		if mr := res.Stage1[m]; mr != nil {
			resp.Stage1 = append(resp.Stage1, MemberAnswer{
				Model:   string(mr.Member),
				Content: mr.Content,
			})
		}
	}
	for _, ev := range res.Stage2 {
		resp.Stage2 = append(resp.Stage2, MemberEvaluation{
			Model:        string(ev.Evaluator),
			Ranking:      ev.RawText,
			UsedFallback: ev.UsedFallback,
		})
	}
	return resp
}

// StorageMessages converts a deliberation round into the two messages
// appended to the conversation: the user turn and the assistant turn with its
// persistable stage outputs.
func StorageMessages(userContent string, declared []council.Member, res *council.DeliberationResult) (user, assistant storage.Message) {
	now := time.Now().UTC()
	user = storage.Message{Role: "user", Content: userContent, CreatedAt: now}

	assistant = storage.Message{
		Role:      "assistant",
		Content:   res.Stage3,
		CreatedAt: now,
		Stage1:    make([]storage.MemberAnswer, 0, len(res.Stage1)),
		Stage2:    make([]storage.MemberEvaluation, 0, len(res.Stage2)),
	}
	for _, m := range declared {
		if mr := res.Stage1[m]; mr != nil {
			assistant.Stage1 = append(assistant.Stage1, storage.MemberAnswer{
				Model:   string(mr.Member),
				Content: mr.Content,
			})
		}
	}
	for _, ev := range res.Stage2 {
		assistant.Stage2 = append(assistant.Stage2, storage.MemberEvaluation{
			Model:   string(ev.Evaluator),
			Ranking: ev.RawText,
		})
	}
	return user, assistant
}
