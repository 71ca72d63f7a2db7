package council

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromptTrimmer_Disabled(t *testing.T) {
	trim := newPromptTrimmer(0)
	long := strings.Repeat("word ", 10000)
	assert.Equal(t, long, trim.Trim(long))
}

func TestPromptTrimmer_HeuristicFallback(t *testing.T) {
	// enc left nil: exercises the characters-per-token heuristic.
	trim := &promptTrimmer{budget: 10}

	short := "short text"
	assert.Equal(t, short, trim.Trim(short))

	long := strings.Repeat("a", 200)
	got := trim.Trim(long)
	assert.True(t, strings.HasSuffix(got, truncationNotice))
	assert.Less(t, len(got), len(long))

	assert.Equal(t, 3, trim.Count("twelve chars"))
}
