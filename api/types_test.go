package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/councilflow/councilflow/council"
)

func sampleResult() *council.DeliberationResult {
	return &council.DeliberationResult{
		Stage1: council.StageResult{
			"m1": {Member: "m1", Content: "one"},
			"m3": {Member: "m3", Content: "three"},
		},
		Stage2: []council.Evaluation{
			{Evaluator: "m1", RawText: "ranking text", UsedFallback: true},
		},
		Stage3: "final",
		Metadata: council.Metadata{
			LabelMap: map[council.Label]council.Member{"A": "m1", "B": "m3"},
			AggregateRankings: []council.AggregateEntry{
				{Member: "m3", AveragePosition: 1, VoteCount: 1},
			},
			Unranked: []council.Member{"m1"},
		},
	}
}

func TestNewSendMessageResponse_DeclaredOrder(t *testing.T) {
	declared := []council.Member{"m1", "m2", "m3"}
	resp := NewSendMessageResponse("conv-1", declared, sampleResult())

	assert.Equal(t, "conv-1", resp.ConversationID)
	assert.Equal(t, "final", resp.Stage3)

	// Failed member m2 is absent; order follows declaration.
	require.Len(t, resp.Stage1, 2)
	assert.Equal(t, "m1", resp.Stage1[0].Model)
	assert.Equal(t, "m3", resp.Stage1[1].Model)

	require.Len(t, resp.Stage2, 1)
	assert.True(t, resp.Stage2[0].UsedFallback)

	assert.Equal(t, "m1", resp.Metadata.LabelMap["A"])
	assert.Equal(t, []string{"m1"}, resp.Metadata.Unranked)
}

func TestStorageMessages_ExcludesMetadata(t *testing.T) {
	declared := []council.Member{"m1", "m2", "m3"}
	user, assistant := StorageMessages("the question", declared, sampleResult())

	assert.Equal(t, "user", user.Role)
	assert.Equal(t, "the question", user.Content)

	assert.Equal(t, "assistant", assistant.Role)
	assert.Equal(t, "final", assistant.Content)
	require.Len(t, assistant.Stage1, 2)
	assert.Equal(t, "m1", assistant.Stage1[0].Model)
	require.Len(t, assistant.Stage2, 1)
	assert.Equal(t, "ranking text", assistant.Stage2[0].Ranking)
}
