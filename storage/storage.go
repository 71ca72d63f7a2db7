// =============================================================================
// councilflow conversation storage
// =============================================================================
// Persists conversations and their per-round stage outputs. Two backends are
// provided: a flat-file JSON store (one file per conversation) and a SQLite
// store for deployments that want a single database file.
// =============================================================================
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/councilflow/councilflow/config"
)

// ErrNotFound is returned when a conversation id does not exist.
var ErrNotFound = errors.New("conversation not found")

// MemberAnswer is one council member's first-stage answer, stored with the
// member's real model id.
type MemberAnswer struct {
	Model   string `json:"model"`
	Content string `json:"content"`
}

// MemberEvaluation is one member's raw second-stage ranking text.
type MemberEvaluation struct {
	Model   string `json:"model"`
	Ranking string `json:"ranking"`
}

// Message is a single turn in a conversation. User messages carry only
// Content. Assistant messages carry the chairman's answer in Content and the
// intermediate stage outputs alongside it.
type Message struct {
	Role      string             `json:"role"`
	Content   string             `json:"content"`
	Stage1    []MemberAnswer     `json:"stage1,omitempty"`
	Stage2    []MemberEvaluation `json:"stage2,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Conversation is a full conversation with its message history.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// Summary is the listing view of a conversation, without messages.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Store persists conversations. Implementations are safe for concurrent use.
type Store interface {
	// Create persists a new empty conversation and returns it.
	Create(ctx context.Context, title string) (*Conversation, error)

	// Get returns a conversation with its full message history.
	Get(ctx context.Context, id string) (*Conversation, error)

	// List returns summaries of all conversations, newest activity first.
	List(ctx context.Context) ([]Summary, error)

	// Append adds messages to a conversation and bumps UpdatedAt. If the
	// conversation has no title yet, the first user message supplies one.
	Append(ctx context.Context, id string, msgs ...Message) error

	// SetTitle replaces the conversation title.
	SetTitle(ctx context.Context, id, title string) error

	// Delete removes a conversation and its messages.
	Delete(ctx context.Context, id string) error

	Close() error
}

// Open constructs the Store selected by the configuration.
func Open(cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "file":
		return NewFileStore(cfg.DataDir, logger)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// titleFromMessage derives a conversation title from the first user message.
func titleFromMessage(content string) string {
	const maxTitle = 64
	runes := []rune(content)
	if len(runes) > maxTitle {
		return string(runes[:maxTitle]) + "..."
	}
	return content
}
