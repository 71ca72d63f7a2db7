package council

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/councilflow/councilflow/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// councilScript drives a mockProvider through a full deliberation: stage is
// inferred from the prompt text, so each member can answer, evaluate and
// (for the chairman) synthesize.
type councilScript struct {
	answers     map[string]string // stage-1 answer by model
	evaluations map[string]string // stage-2 raw text by model
	synthesis   string
	failStage1  map[string]bool
	failStage2  map[string]bool
	failStage3  bool
}

func (s *councilScript) provider() *mockProvider {
	return &mockProvider{
		completionFunc: func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
			prompt := req.Messages[len(req.Messages)-1].Content
			switch {
			case strings.HasPrefix(prompt, "You are the chairman"):
				if s.failStage3 {
					return nil, &llm.Error{Code: llm.ErrUpstreamError, Message: "chairman down"}
				}
				return &llm.ChatResponse{Model: req.Model, Content: s.synthesis}, nil
			case strings.HasPrefix(prompt, "You are one member of a council"):
				if s.failStage2[req.Model] {
					return nil, &llm.Error{Code: llm.ErrUpstreamError, Message: "eval down"}
				}
				return &llm.ChatResponse{Model: req.Model, Content: s.evaluations[req.Model]}, nil
			default:
				if s.failStage1[req.Model] {
					return nil, &llm.Error{Code: llm.ErrUpstreamTimeout, Message: "timed out"}
				}
				return &llm.ChatResponse{Model: req.Model, Content: s.answers[req.Model]}, nil
			}
		},
	}
}

func question(q string) []llm.Message {
	return []llm.Message{{Role: llm.RoleUser, Content: q}}
}

func newTestPipeline(script *councilScript, cfg Config, opts ...PipelineOption) *Pipeline {
	client := NewClient(script.provider(), zap.NewNop())
	return NewPipeline(client, cfg, zap.NewNop(), opts...)
}

func TestDeliberate_HappyPath(t *testing.T) {
	script := &councilScript{
		answers: map[string]string{
			"m1": "answer one",
			"m2": "answer two",
			"m3": "answer three",
		},
		evaluations: map[string]string{
			"m1": "FINAL RANKING:\n1. Response B\n2. Response A\n3. Response C",
			"m2": "FINAL RANKING:\n1. Response A\n2. Response B\n3. Response C",
			"m3": "I liked Response A most, then Response B, then Response C.",
		},
		synthesis: "the final synthesized answer",
	}
	p := newTestPipeline(script, Config{Members: []Member{"m1", "m2", "m3"}, Chairman: "m1"})

	result, err := p.Deliberate(context.Background(), question("What is 2+2?"), nil)
	require.NoError(t, err)

	require.Len(t, result.Stage1, 3)
	assert.Equal(t, "answer one", result.Stage1["m1"].Content)

	require.Len(t, result.Stage2, 3)
	assert.Equal(t, []Label{"B", "A", "C"}, result.Stage2[0].ParsedRanking)
	assert.False(t, result.Stage2[0].UsedFallback)
	assert.True(t, result.Stage2[2].UsedFallback)

	assert.Equal(t, "the final synthesized answer", result.Stage3)

	require.Len(t, result.Metadata.LabelMap, 3)
	require.Len(t, result.Metadata.AggregateRankings, 3)
	// A (m1) averages 4/3 from positions 2,1,1; B (m2) averages 5/3 from 1,2,2.
	assert.Equal(t, Member("m1"), result.Metadata.AggregateRankings[0].Member)
	assert.Equal(t, Member("m2"), result.Metadata.AggregateRankings[1].Member)
	assert.Equal(t, Member("m3"), result.Metadata.AggregateRankings[2].Member)
	assert.Empty(t, result.Metadata.Unranked)
}

func TestDeliberate_MemberFailureDegradesRound(t *testing.T) {
	script := &councilScript{
		answers: map[string]string{
			"m1": "answer one",
			"m3": "answer three",
		},
		failStage1: map[string]bool{"m2": true},
		evaluations: map[string]string{
			"m1": "FINAL RANKING:\n1. Response A\n2. Response B",
			"m3": "FINAL RANKING:\n1. Response B\n2. Response A",
		},
		synthesis: "final",
	}
	p := newTestPipeline(script, Config{Members: []Member{"m1", "m2", "m3"}})

	result, err := p.Deliberate(context.Background(), question("q"), nil)
	require.NoError(t, err, "a single member failure is not fatal")

	// Stage 1 keeps the absent entry; the label map covers only successes.
	require.Len(t, result.Stage1, 3)
	assert.Nil(t, result.Stage1["m2"])
	assert.Len(t, result.Metadata.LabelMap, 2)

	// m3 holds label B because labels follow declared order of successes.
	assert.Equal(t, Member("m1"), result.Metadata.LabelMap["A"])
	assert.Equal(t, Member("m3"), result.Metadata.LabelMap["B"])

	// m2 never evaluates either.
	require.Len(t, result.Stage2, 2)
	assert.Equal(t, "final", result.Stage3)
}

func TestDeliberate_AllMembersFailed(t *testing.T) {
	script := &councilScript{
		failStage1: map[string]bool{"m1": true, "m2": true},
	}
	p := newTestPipeline(script, Config{Members: []Member{"m1", "m2"}})

	_, err := p.Deliberate(context.Background(), question("q"), nil)
	assert.ErrorIs(t, err, ErrAllMembersFailed)
}

func TestDeliberate_EmptyCouncil(t *testing.T) {
	p := newTestPipeline(&councilScript{}, Config{})
	_, err := p.Deliberate(context.Background(), question("q"), nil)
	assert.ErrorIs(t, err, ErrNoMembers)
}

func TestDeliberate_ChairmanFailureIsFatal(t *testing.T) {
	script := &councilScript{
		answers: map[string]string{"m1": "a", "m2": "b"},
		evaluations: map[string]string{
			"m1": "FINAL RANKING:\n1. Response A\n2. Response B",
			"m2": "FINAL RANKING:\n1. Response B\n2. Response A",
		},
		failStage3: true,
	}
	p := newTestPipeline(script, Config{Members: []Member{"m1", "m2"}, Chairman: "m2"})

	_, err := p.Deliberate(context.Background(), question("q"), nil)
	assert.ErrorIs(t, err, ErrChairmanUnavailable)
}

func TestDeliberate_AllEvaluationsUnparseable(t *testing.T) {
	script := &councilScript{
		answers: map[string]string{"m1": "a", "m2": "b"},
		evaluations: map[string]string{
			"m1": "I cannot rank these.",
			"m2": "No preference either way.",
		},
		synthesis: "final anyway",
	}
	p := newTestPipeline(script, Config{Members: []Member{"m1", "m2"}})

	result, err := p.Deliberate(context.Background(), question("q"), nil)
	require.NoError(t, err, "empty rankings are valid, not fatal")

	require.Len(t, result.Stage2, 2)
	assert.Empty(t, result.Stage2[0].ParsedRanking)
	assert.Empty(t, result.Stage2[1].ParsedRanking)
	assert.Empty(t, result.Metadata.AggregateRankings)
	assert.ElementsMatch(t, []Member{"m1", "m2"}, result.Metadata.Unranked)
	assert.Equal(t, "final anyway", result.Stage3)
}

func TestDeliberate_EvaluatorFailureSkipsEvaluation(t *testing.T) {
	script := &councilScript{
		answers: map[string]string{"m1": "a", "m2": "b", "m3": "c"},
		evaluations: map[string]string{
			"m1": "FINAL RANKING:\n1. Response C\n2. Response B\n3. Response A",
			"m3": "FINAL RANKING:\n1. Response A\n2. Response B\n3. Response C",
		},
		failStage2: map[string]bool{"m2": true},
		synthesis: "final",
	}
	p := newTestPipeline(script, Config{Members: []Member{"m1", "m2", "m3"}})

	result, err := p.Deliberate(context.Background(), question("q"), nil)
	require.NoError(t, err)

	// m2 answered in stage 1 (so it is labeled) but failed as an evaluator.
	assert.Len(t, result.Metadata.LabelMap, 3)
	require.Len(t, result.Stage2, 2)
	for _, ev := range result.Stage2 {
		assert.NotEqual(t, Member("m2"), ev.Evaluator)
	}
}

func TestDeliberate_EventsOrdered(t *testing.T) {
	script := &councilScript{
		answers: map[string]string{"m1": "a", "m2": "b"},
		evaluations: map[string]string{
			"m1": "FINAL RANKING:\n1. Response A\n2. Response B",
			"m2": "FINAL RANKING:\n1. Response B\n2. Response A",
		},
		synthesis: "final",
	}
	p := newTestPipeline(script, Config{Members: []Member{"m1", "m2"}})

	var mu sync.Mutex
	var states []State
	var sawDone bool
	sink := EventSinkFunc(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.Type == EventStateChanged {
			states = append(states, e.State)
		}
		if e.Type == EventDone {
			sawDone = true
		}
	})

	_, err := p.Deliberate(context.Background(), question("q"), sink)
	require.NoError(t, err)

	assert.Equal(t, []State{
		StateStage1InFlight,
		StateStage1Complete,
		StateStage2InFlight,
		StateStage2Complete,
		StateStage3InFlight,
		StateDone,
	}, states)
	assert.True(t, sawDone)
}

func TestDeliberate_ConcurrentRequestsIsolated(t *testing.T) {
	script := &councilScript{
		answers: map[string]string{"m1": "a", "m2": "b"},
		evaluations: map[string]string{
			"m1": "FINAL RANKING:\n1. Response A\n2. Response B",
			"m2": "FINAL RANKING:\n1. Response A\n2. Response B",
		},
		synthesis: "final",
	}
	p := newTestPipeline(script, Config{Members: []Member{"m1", "m2"}})

	const parallel = 8
	var wg sync.WaitGroup
	results := make([]*DeliberationResult, parallel)
	errs := make([]error, parallel)
	for i := 0; i < parallel; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = p.Deliberate(context.Background(), question(fmt.Sprintf("q%d", i)), nil)
		}()
	}
	wg.Wait()

	for i := 0; i < parallel; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Len(t, results[i].Metadata.LabelMap, 2)
		assert.Equal(t, "final", results[i].Stage3)
	}
}

func TestDeliberate_Stage2TextNeverNamesMembers(t *testing.T) {
	provider := (&councilScript{
		answers: map[string]string{"vendor/alpha": "a", "vendor/beta": "b"},
		evaluations: map[string]string{
			"vendor/alpha": "FINAL RANKING:\n1. Response A\n2. Response B",
			"vendor/beta":  "FINAL RANKING:\n1. Response B\n2. Response A",
		},
		synthesis: "final",
	}).provider()
	client := NewClient(provider, zap.NewNop())
	p := NewPipeline(client, Config{Members: []Member{"vendor/alpha", "vendor/beta"}}, zap.NewNop())

	_, err := p.Deliberate(context.Background(), question("q"), nil)
	require.NoError(t, err)

	for _, req := range provider.requests() {
		prompt := req.Messages[len(req.Messages)-1].Content
		if strings.HasPrefix(prompt, "You are one member of a council") {
			assert.NotContains(t, prompt, "vendor/alpha")
			assert.NotContains(t, prompt, "vendor/beta")
		}
	}
}
