package council

import (
	"context"
	"time"

	"github.com/councilflow/councilflow/llm"
	"go.uber.org/zap"
)

// Config fixes the member set and chairman for a pipeline. It is constructed
// once from application configuration and passed in by value; the core never
// consults process-wide state, so concurrent requests are fully isolated.
type Config struct {
	// Members is the ordered council. Order seeds label assignment and breaks
	// aggregation ties.
	Members []Member

	// Chairman synthesizes the final answer in stage 3. Defaults to the first
	// member when empty.
	Chairman Member

	// AnswerTokenBudget caps each quoted answer or evaluation inside stage-2
	// and stage-3 prompts. Zero disables trimming.
	AnswerTokenBudget int
}

// chairman returns the effective chairman.
func (c Config) chairman() Member {
	if c.Chairman != "" {
		return c.Chairman
	}
	if len(c.Members) > 0 {
		return c.Members[0]
	}
	return ""
}

// Pipeline runs three-stage deliberations. A single Pipeline serves many
// concurrent requests; all per-request state (label map, evaluations,
// aggregate table, stage machine) lives on the stack of Deliberate.
type Pipeline struct {
	client  *Client
	cfg     Config
	logger  *zap.Logger
	metrics Metrics
	trimmer *promptTrimmer
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineMetrics attaches a metrics sink.
func WithPipelineMetrics(m Metrics) PipelineOption {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// NewPipeline creates a deliberation pipeline over a member client.
func NewPipeline(client *Client, cfg Config, logger *zap.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		client:  client,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "pipeline")),
		metrics: NopMetrics{},
		trimmer: newPromptTrimmer(cfg.AnswerTokenBudget),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Members returns the declared council in order.
func (p *Pipeline) Members() []Member {
	out := make([]Member, len(p.cfg.Members))
	copy(out, p.cfg.Members)
	return out
}

// Chairman returns the effective chairman.
func (p *Pipeline) Chairman() Member {
	return p.cfg.chairman()
}

// run is the per-request stage machine. It is owned by exactly one call to
// Deliberate and is never shared.
type run struct {
	sink  EventSink
	state State
	log   *zap.Logger
}

func (r *run) transition(s State) {
	r.state = s
	r.log.Debug("pipeline state", zap.String("state", string(s)))
	if r.sink != nil {
		r.sink.Emit(Event{Type: EventStateChanged, State: s})
	}
}

func (r *run) emit(e Event) {
	if r.sink != nil {
		r.sink.Emit(e)
	}
}

// Deliberate runs the full three-stage protocol for one conversation history
// (the last user turn is the question under deliberation). sink may be nil.
//
// Individual member failures degrade the round; only two conditions are
// fatal: zero stage-1 successes (ErrAllMembersFailed) and a chairman failure
// (ErrChairmanUnavailable).
func (p *Pipeline) Deliberate(ctx context.Context, history []llm.Message, sink EventSink) (*DeliberationResult, error) {
	if len(p.cfg.Members) == 0 {
		return nil, ErrNoMembers
	}

	r := &run{sink: sink, state: StateIdle, log: p.logger}
	question := lastUserQuestion(history)

	// Stage 1: independent answers.
	r.transition(StateStage1InFlight)
	start := time.Now()
	stage1, err := FanOut(ctx, p.cfg.Members, func(ctx context.Context, m Member) *MemberResponse {
		resp := p.client.Ask(ctx, m, history)
		if resp == nil {
			r.emit(Event{Type: EventMemberFailed, Stage: 1, Member: m})
		} else {
			r.emit(Event{Type: EventMemberAnswered, Stage: 1, Member: m})
		}
		return resp
	})
	if err != nil {
		r.transition(StateFailed)
		return nil, err
	}

	labels := Anonymize(p.cfg.Members, stage1)
	if labels.Len() == 0 {
		p.metrics.ObserveStage("stage1", time.Since(start), false)
		r.transition(StateFailed)
		r.emit(Event{Type: EventFailed, Reason: ErrAllMembersFailed.Error()})
		return nil, ErrAllMembersFailed
	}
	p.metrics.ObserveStage("stage1", time.Since(start), true)
	r.transition(StateStage1Complete)
	p.logger.Info("stage 1 complete",
		zap.Int("members", len(p.cfg.Members)),
		zap.Int("successful", labels.Len()))

	// Stage 2: anonymized peer evaluation. Evaluators are the members that
	// produced a stage-1 answer; each sees all answers under labels only.
	r.transition(StateStage2InFlight)
	start = time.Now()
	evalPrompt := buildEvaluationPrompt(question, stage1, labels, p.trimmer)
	evaluators := labels.Members()
	stage2Raw, err := FanOut(ctx, evaluators, func(ctx context.Context, m Member) *MemberResponse {
		resp := p.client.Ask(ctx, m, evalPrompt)
		if resp == nil {
			r.emit(Event{Type: EventMemberFailed, Stage: 2, Member: m})
		}
		return resp
	})
	if err != nil {
		r.transition(StateFailed)
		return nil, err
	}

	evaluations := make([]Evaluation, 0, len(evaluators))
	for _, m := range evaluators {
		resp := stage2Raw[m]
		if resp == nil {
			continue
		}
		ranking, usedFallback := ParseRanking(resp.Content, labels)
		if usedFallback {
			p.metrics.IncParseFallback(string(m))
		}
		if len(ranking) == 0 {
			p.metrics.IncParseEmpty(string(m))
			p.logger.Warn("evaluation yielded no ranking", zap.String("evaluator", string(m)))
		}
		evaluations = append(evaluations, Evaluation{
			Evaluator:     m,
			RawText:       resp.Content,
			ParsedRanking: ranking,
			UsedFallback:  usedFallback,
		})
		r.emit(Event{Type: EventRankingParsed, Stage: 2, Member: m, Ranking: ranking})
	}
	p.metrics.ObserveStage("stage2", time.Since(start), true)
	r.transition(StateStage2Complete)

	rankings := make([][]Label, 0, len(evaluations))
	for _, ev := range evaluations {
		rankings = append(rankings, ev.ParsedRanking)
	}
	aggregate, unranked := Aggregate(rankings, labels)

	// Stage 3: chairman synthesis. Fatal on failure; no fallback chairman.
	r.transition(StateStage3InFlight)
	start = time.Now()
	chairmanPrompt := buildChairmanPrompt(question, stage1, evaluations, labels, aggregate, unranked, p.trimmer)
	final := p.client.Ask(ctx, p.cfg.chairman(), chairmanPrompt)
	if final == nil {
		p.metrics.ObserveStage("stage3", time.Since(start), false)
		r.transition(StateFailed)
		r.emit(Event{Type: EventFailed, Reason: ErrChairmanUnavailable.Error()})
		return nil, ErrChairmanUnavailable
	}
	p.metrics.ObserveStage("stage3", time.Since(start), true)

	r.transition(StateDone)
	r.emit(Event{Type: EventDone})

	return &DeliberationResult{
		Stage1: stage1,
		Stage2: evaluations,
		Stage3: final.Content,
		Metadata: Metadata{
			LabelMap:          labels.Forward(),
			AggregateRankings: aggregate,
			Unranked:          unranked,
		},
	}, nil
}
