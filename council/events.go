package council

// EventType names one kind of pipeline progress event.
type EventType string

const (
	EventStateChanged   EventType = "state_changed"
	EventMemberAnswered EventType = "member_answered"
	EventMemberFailed   EventType = "member_failed"
	EventRankingParsed  EventType = "ranking_parsed"
	EventDone           EventType = "done"
	EventFailed         EventType = "failed"
)

// Event is one ordered progress notification emitted while a deliberation
// runs. Stage ordering is preserved: events for stage N+1 are never emitted
// before every event of stage N.
type Event struct {
	Type    EventType `json:"type"`
	State   State     `json:"state,omitempty"`
	Stage   int       `json:"stage,omitempty"`
	Member  Member    `json:"member,omitempty"`
	Ranking []Label   `json:"ranking,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

// EventSink receives pipeline progress events. Emit is called from the
// pipeline goroutine between stages and must not block for long; sinks that
// fan out to slow consumers should buffer.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Emit(e Event) { f(e) }
