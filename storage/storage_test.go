package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// eachStore runs fn against every backend so both stay behaviorally in sync.
func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("file", func(t *testing.T) {
		s, err := NewFileStore(t.TempDir(), zap.NewNop())
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(":memory:", zap.NewNop())
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
}

func TestStore_CreateAndGet(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		conv, err := s.Create(ctx, "")
		require.NoError(t, err)
		require.NotEmpty(t, conv.ID)
		assert.Empty(t, conv.Messages)

		got, err := s.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, conv.ID, got.ID)
		assert.Empty(t, got.Messages)
	})
}

func TestStore_GetMissing(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		_, err := s.Get(context.Background(), "ffffffff-ffff-ffff-ffff-ffffffffffff")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_AppendRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		conv, err := s.Create(ctx, "")
		require.NoError(t, err)

		user := Message{Role: "user", Content: "What is the tallest mountain?"}
		assistant := Message{
			Role:    "assistant",
			Content: "Mount Everest, at 8,849 meters.",
			Stage1: []MemberAnswer{
				{Model: "anthropic/claude-haiku-4.5", Content: "Everest."},
				{Model: "openai/gpt-5-mini", Content: "Mount Everest."},
			},
			Stage2: []MemberEvaluation{
				{Model: "anthropic/claude-haiku-4.5", Ranking: "FINAL RANKING:\n1. Response B\n2. Response A"},
			},
		}
		require.NoError(t, s.Append(ctx, conv.ID, user, assistant))

		got, err := s.Get(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, got.Messages, 2)

		assert.Equal(t, "user", got.Messages[0].Role)
		assert.Empty(t, got.Messages[0].Stage1)
		assert.False(t, got.Messages[0].CreatedAt.IsZero())

		assert.Equal(t, assistant.Content, got.Messages[1].Content)
		assert.Equal(t, assistant.Stage1, got.Messages[1].Stage1)
		assert.Equal(t, assistant.Stage2, got.Messages[1].Stage2)
	})
}

func TestStore_AppendMissing(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		err := s.Append(context.Background(),
			"ffffffff-ffff-ffff-ffff-ffffffffffff",
			Message{Role: "user", Content: "hello"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_TitleFromFirstUserMessage(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		conv, err := s.Create(ctx, "")
		require.NoError(t, err)

		require.NoError(t, s.Append(ctx, conv.ID, Message{Role: "user", Content: "Explain monads"}))
		require.NoError(t, s.Append(ctx, conv.ID, Message{Role: "user", Content: "And now functors"}))

		got, err := s.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, "Explain monads", got.Title)
	})
}

func TestStore_SetTitle(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		conv, err := s.Create(ctx, "old")
		require.NoError(t, err)

		require.NoError(t, s.SetTitle(ctx, conv.ID, "new"))
		got, err := s.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", got.Title)

		err = s.SetTitle(ctx, "ffffffff-ffff-ffff-ffff-ffffffffffff", "x")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_ListNewestFirst(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		a, err := s.Create(ctx, "first")
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
		b, err := s.Create(ctx, "second")
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)

		// Touching the older conversation moves it to the front.
		require.NoError(t, s.Append(ctx, a.ID, Message{Role: "user", Content: "ping"}))

		summaries, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, summaries, 2)
		assert.Equal(t, a.ID, summaries[0].ID)
		assert.Equal(t, 1, summaries[0].MessageCount)
		assert.Equal(t, b.ID, summaries[1].ID)
		assert.Equal(t, 0, summaries[1].MessageCount)
	})
}

func TestStore_Delete(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		conv, err := s.Create(ctx, "")
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, conv.ID))
		_, err = s.Get(ctx, conv.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, s.Delete(ctx, conv.ID), ErrNotFound)
	})
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_SkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	_, err = s.Create(ctx, "good")
	require.NoError(t, err)

	bad := filepath.Join(dir, "deadbeef-dead-beef-dead-beefdeadbeef.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))

	summaries, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}
