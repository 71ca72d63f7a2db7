package council

import "time"

// Metrics is the narrow sink the council core reports into. The concrete
// Prometheus collector lives in internal/metrics; tests use NopMetrics.
type Metrics interface {
	// ObserveStage records the duration and outcome of one pipeline stage.
	ObserveStage(stage string, d time.Duration, ok bool)

	// ObserveMemberCall records one member exchange. code is the llm error
	// code, empty on success.
	ObserveMemberCall(member string, d time.Duration, code string)

	// IncParseFallback counts an evaluation that needed the lenient phase.
	IncParseFallback(evaluator string)

	// IncParseEmpty counts an evaluation that yielded no ranking at all.
	IncParseEmpty(evaluator string)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) ObserveStage(string, time.Duration, bool)          {}
func (NopMetrics) ObserveMemberCall(string, time.Duration, string)   {}
func (NopMetrics) IncParseFallback(string)                           {}
func (NopMetrics) IncParseEmpty(string)                              {}
