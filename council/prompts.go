package council

import (
	"fmt"
	"strings"

	"github.com/councilflow/councilflow/llm"
)

// buildEvaluationPrompt produces the stage-2 message sequence for one
// evaluator. Answers appear only under their anonymized labels; member
// identifiers must not leak into stage-2 text.
func buildEvaluationPrompt(question string, stage1 StageResult, labels *LabelMap, trim *promptTrimmer) []llm.Message {
	var b strings.Builder
	b.WriteString("You are one member of a council of AI models. Several models, anonymized below, ")
	b.WriteString("each answered the same question independently.\n\n")
	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nAnonymized responses:\n\n")

	for _, l := range labels.Labels() {
		m, _ := labels.Member(l)
		fmt.Fprintf(&b, "Response %s:\n%s\n\n", l, trim.Trim(stage1[m].Content))
	}

	b.WriteString("Evaluate each response for accuracy, completeness and insight. ")
	b.WriteString("Discuss their relative strengths and weaknesses, then conclude with a section in exactly this format:\n\n")
	b.WriteString(rankingMarker)
	b.WriteString(":\n1. Response X\n2. Response Y\n...\n\n")
	b.WriteString("ranking every response from best to worst.")

	return []llm.Message{{Role: llm.RoleUser, Content: b.String()}}
}

// buildChairmanPrompt produces the stage-3 message sequence. The chairman
// sees everything: de-anonymized answers, raw evaluations, and the aggregate
// ranking table.
func buildChairmanPrompt(question string, stage1 StageResult, evals []Evaluation, labels *LabelMap, agg []AggregateEntry, unranked []Member, trim *promptTrimmer) []llm.Message {
	var b strings.Builder
	b.WriteString("You are the chairman of a council of AI models. The council was asked:\n\n")
	b.WriteString(question)
	b.WriteString("\n\nEach member answered independently, then every member ranked the anonymized answers. ")
	b.WriteString("Your task is to synthesize the single best final answer from all of this material.\n\n")

	b.WriteString("Council answers:\n\n")
	for _, l := range labels.Labels() {
		m, _ := labels.Member(l)
		fmt.Fprintf(&b, "%s (Response %s):\n%s\n\n", m, l, trim.Trim(stage1[m].Content))
	}

	b.WriteString("Peer evaluations:\n\n")
	for _, ev := range evals {
		fmt.Fprintf(&b, "Evaluation by %s:\n%s\n\n", ev.Evaluator, trim.Trim(ev.RawText))
	}

	if len(agg) > 0 {
		b.WriteString("Consensus ranking (average position across evaluators, lower is better):\n")
		for i, e := range agg {
			fmt.Fprintf(&b, "%d. %s (avg %.2f over %d votes)\n", i+1, e.Member, e.AveragePosition, e.VoteCount)
		}
		b.WriteString("\n")
	}
	if len(unranked) > 0 {
		b.WriteString("Not ranked by any evaluator: ")
		for i, m := range unranked {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(string(m))
		}
		b.WriteString("\n\n")
	}

	b.WriteString("Write the final answer for the user. Do not mention the council process; ")
	b.WriteString("deliver the best possible standalone answer.")

	return []llm.Message{{Role: llm.RoleUser, Content: b.String()}}
}

// lastUserQuestion extracts the most recent user turn from the conversation
// history; the deliberation prompts quote it.
func lastUserQuestion(history []llm.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llm.RoleUser {
			return history[i].Content
		}
	}
	return ""
}
