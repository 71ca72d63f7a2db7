package council

import (
	"errors"
)

// Member identifies one external model endpoint participating in a
// deliberation round (an OpenRouter model id such as "openai/gpt-5-mini").
// The declaration order of the member list is meaningful: it seeds label
// assignment and breaks ties in the aggregate ranking.
type Member string

// MemberResponse is one member's successful answer for a stage. A member that
// failed has no MemberResponse; absence is represented by a nil map entry.
type MemberResponse struct {
	Member    Member `json:"member"`
	Content   string `json:"content"`
	Reasoning string `json:"reasoning,omitempty"`
}

// StageResult maps every polled member to its response, with nil marking an
// absent result. Iteration order is undefined; callers that need determinism
// sort by the declared member order.
type StageResult map[Member]*MemberResponse

// Successful returns the members with a non-nil response, in declared order.
func (r StageResult) Successful(declared []Member) []Member {
	out := make([]Member, 0, len(declared))
	for _, m := range declared {
		if r[m] != nil {
			out = append(out, m)
		}
	}
	return out
}

// Evaluation is one evaluator's stage-2 output: the raw ranking text plus the
// label sequence extracted from it. ParsedRanking may be a strict subset of
// all labels, or empty when parsing found nothing; both are valid.
type Evaluation struct {
	Evaluator     Member  `json:"evaluator"`
	RawText       string  `json:"raw_text"`
	ParsedRanking []Label `json:"parsed_ranking"`
	UsedFallback  bool    `json:"used_fallback,omitempty"`
}

// AggregateEntry is one row of the consensus ranking table.
type AggregateEntry struct {
	Member          Member  `json:"member"`
	AveragePosition float64 `json:"average_position"`
	VoteCount       int     `json:"vote_count"`
}

// Metadata carries the ephemeral, response-only portion of a deliberation:
// the label map and the aggregate table. It is reconstructible only from a
// fresh run and is deliberately excluded from persistence.
type Metadata struct {
	LabelMap          map[Label]Member `json:"label_map"`
	AggregateRankings []AggregateEntry `json:"aggregate_rankings"`
	Unranked          []Member         `json:"unranked,omitempty"`
}

// DeliberationResult is the full outcome of one three-stage run. Stage1,
// Stage2 and Stage3 form the persistable subset; Metadata is response-only.
type DeliberationResult struct {
	Stage1   StageResult  `json:"stage1"`
	Stage2   []Evaluation `json:"stage2"`
	Stage3   string       `json:"stage3"`
	Metadata Metadata     `json:"metadata"`
}

// Pipeline-fatal conditions. Individual member failures never surface as
// errors; these do.
var (
	// ErrNoMembers is returned when a deliberation is started with an empty
	// council.
	ErrNoMembers = errors.New("council: no members configured")

	// ErrAllMembersFailed is returned when every member is absent in stage 1,
	// leaving nothing to anonymize or evaluate.
	ErrAllMembersFailed = errors.New("council: all members failed in stage 1")

	// ErrChairmanUnavailable is returned when the designated chairman fails in
	// stage 3. No fallback chairman is defined.
	ErrChairmanUnavailable = errors.New("council: chairman unavailable")
)

// State names a position in the pipeline's sequential stage machine.
type State string

const (
	StateIdle           State = "idle"
	StateStage1InFlight State = "stage1_in_flight"
	StateStage1Complete State = "stage1_complete"
	StateStage2InFlight State = "stage2_in_flight"
	StateStage2Complete State = "stage2_complete"
	StateStage3InFlight State = "stage3_in_flight"
	StateDone           State = "done"
	StateFailed         State = "failed"
)
