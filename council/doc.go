// Package council implements the three-stage deliberation protocol that turns
// one user question and N model endpoints into a single synthesized answer:
//
//  1. Collect: every council member answers the question independently,
//     fanned out concurrently with partial-failure tolerance.
//  2. Evaluate: the successful answers are anonymized under letter labels
//     and every member ranks them; rankings are extracted from free-form text
//     by a strict grammar with a lenient fallback.
//  3. Synthesize: the chairman member writes the final answer from all
//     answers, evaluations and the consensus ranking.
//
// The anonymizer, ranking parser and aggregator are pure functions; all
// per-request state lives inside a single Deliberate call, so concurrent
// deliberations are fully isolated.
package council
