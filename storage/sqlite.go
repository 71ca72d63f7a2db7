package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// conversationRow is the GORM model backing a conversation.
type conversationRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (conversationRow) TableName() string { return "conversations" }

// messageRow holds one message. Stage outputs are serialized to JSON in a
// single text column; they are read back as a unit, never queried.
type messageRow struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	ConversationID string `gorm:"index;size:36"`
	Role           string `gorm:"size:16"`
	Content        string
	Stages         string
	CreatedAt      time.Time
}

func (messageRow) TableName() string { return "messages" }

// stagePayload is the JSON shape of messageRow.Stages.
type stagePayload struct {
	Stage1 []MemberAnswer     `json:"stage1,omitempty"`
	Stage2 []MemberEvaluation `json:"stage2,omitempty"`
}

// SQLiteStore persists conversations in a single SQLite database file.
type SQLiteStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database and migrates the schema.
// Pass ":memory:" for an ephemeral store.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&conversationRow{}, &messageRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With(zap.String("component", "sqlite_store")),
	}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, title string) (*Conversation, error) {
	now := time.Now().UTC()
	row := conversationRow{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	s.logger.Debug("conversation created", zap.String("conversation_id", row.ID))
	return &Conversation{
		ID:        row.ID,
		Title:     row.Title,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Messages:  []Message{},
	}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Conversation, error) {
	var row conversationRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var msgRows []messageRow
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", id).
		Order("id asc").
		Find(&msgRows).Error; err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	conv := &Conversation{
		ID:        row.ID,
		Title:     row.Title,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Messages:  make([]Message, 0, len(msgRows)),
	}
	for _, mr := range msgRows {
		msg := Message{
			Role:      mr.Role,
			Content:   mr.Content,
			CreatedAt: mr.CreatedAt,
		}
		if mr.Stages != "" {
			var p stagePayload
			if err := json.Unmarshal([]byte(mr.Stages), &p); err != nil {
				return nil, fmt.Errorf("failed to parse stage payload: %w", err)
			}
			msg.Stage1 = p.Stage1
			msg.Stage2 = p.Stage2
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	var rows []conversationRow
	if err := s.db.WithContext(ctx).
		Order("updated_at desc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	summaries := make([]Summary, 0, len(rows))
	for _, row := range rows {
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&messageRow{}).
			Where("conversation_id = ?", row.ID).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to count messages: %w", err)
		}
		summaries = append(summaries, Summary{
			ID:           row.ID,
			Title:        row.Title,
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
			MessageCount: int(count),
		})
	}
	return summaries, nil
}

func (s *SQLiteStore) Append(ctx context.Context, id string, msgs ...Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row conversationRow
		err := tx.First(&row, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load conversation: %w", err)
		}

		for _, m := range msgs {
			if m.CreatedAt.IsZero() {
				m.CreatedAt = time.Now().UTC()
			}
			if row.Title == "" && m.Role == "user" {
				row.Title = titleFromMessage(m.Content)
			}

			mr := messageRow{
				ConversationID: id,
				Role:           m.Role,
				Content:        m.Content,
				CreatedAt:      m.CreatedAt,
			}
			if len(m.Stage1) > 0 || len(m.Stage2) > 0 {
				data, err := json.Marshal(stagePayload{Stage1: m.Stage1, Stage2: m.Stage2})
				if err != nil {
					return fmt.Errorf("failed to encode stage payload: %w", err)
				}
				mr.Stages = string(data)
			}
			if err := tx.Create(&mr).Error; err != nil {
				return fmt.Errorf("failed to append message: %w", err)
			}
		}

		row.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("failed to update conversation: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) SetTitle(ctx context.Context, id, title string) error {
	res := s.db.WithContext(ctx).
		Model(&conversationRow{}).
		Where("id = ?", id).
		Updates(map[string]any{"title": title, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("failed to update title: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&conversationRow{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Delete(&messageRow{}, "conversation_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
