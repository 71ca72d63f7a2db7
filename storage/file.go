package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileStore keeps one pretty-printed JSON file per conversation under a data
// directory. Writes go through a temp file and rename so a crash mid-write
// never leaves a truncated conversation behind.
type FileStore struct {
	dir    string
	logger *zap.Logger
	mu     sync.RWMutex
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("data dir is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FileStore{
		dir:    dir,
		logger: logger.With(zap.String("component", "file_store")),
	}, nil
}

func (s *FileStore) Create(ctx context.Context, title string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(conv); err != nil {
		return nil, err
	}
	s.logger.Debug("conversation created", zap.String("conversation_id", conv.ID))
	return conv, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(id)
}

func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data dir: %w", err)
	}

	summaries := make([]Summary, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		conv, err := s.read(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			s.logger.Warn("skipping unreadable conversation file",
				zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		summaries = append(summaries, Summary{
			ID:           conv.ID,
			Title:        conv.Title,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: len(conv.Messages),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

func (s *FileStore) Append(ctx context.Context, id string, msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.read(id)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		if conv.Title == "" && m.Role == "user" {
			conv.Title = titleFromMessage(m.Content)
		}
		conv.Messages = append(conv.Messages, m)
	}
	conv.UpdatedAt = time.Now().UTC()
	return s.write(conv)
}

func (s *FileStore) SetTitle(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.read(id)
	if err != nil {
		return err
	}
	conv.Title = title
	conv.UpdatedAt = time.Now().UTC()
	return s.write(conv)
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// path validates the id before joining it into the data directory, so a
// crafted id can never escape it.
func (s *FileStore) path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrNotFound
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func (s *FileStore) read(id string) (*Conversation, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to parse conversation %s: %w", id, err)
	}
	return &conv, nil
}

func (s *FileStore) write(conv *Conversation) error {
	path, err := s.path(conv.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace conversation file: %w", err)
	}
	return nil
}
