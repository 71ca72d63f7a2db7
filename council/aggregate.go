package council

import (
	"sort"
)

// Aggregate folds all parsed rankings into a single consensus ordering over
// the labeled members.
//
// For every member the 1-indexed positions at which its label appears across
// all non-empty rankings are collected; the entry carries their mean and
// count. Members that never appear are omitted from the table and returned
// separately as unranked. The table is sorted ascending by average position,
// ties broken by descending vote count, then by label-assignment order
// (which follows the declared member order).
//
// Aggregate is a pure function: identical inputs always produce identical
// output.
func Aggregate(rankings [][]Label, labels *LabelMap) (entries []AggregateEntry, unranked []Member) {
	positionSum := make(map[Label]int)
	votes := make(map[Label]int)

	for _, ranking := range rankings {
		if len(ranking) == 0 {
			continue
		}
		for pos, l := range ranking {
			if !labels.Has(l) {
				continue
			}
			positionSum[l] += pos + 1
			votes[l]++
		}
	}

	order := make(map[Label]int, labels.Len())
	for i, l := range labels.Labels() {
		order[l] = i
	}

	entries = make([]AggregateEntry, 0, len(votes))
	for _, l := range labels.Labels() {
		if votes[l] == 0 {
			m, _ := labels.Member(l)
			unranked = append(unranked, m)
			continue
		}
		m, _ := labels.Member(l)
		entries = append(entries, AggregateEntry{
			Member:          m,
			AveragePosition: float64(positionSum[l]) / float64(votes[l]),
			VoteCount:       votes[l],
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].AveragePosition != entries[j].AveragePosition {
			return entries[i].AveragePosition < entries[j].AveragePosition
		}
		if entries[i].VoteCount != entries[j].VoteCount {
			return entries[i].VoteCount > entries[j].VoteCount
		}
		li, _ := labels.Label(entries[i].Member)
		lj, _ := labels.Label(entries[j].Member)
		return order[li] < order[lj]
	})

	return entries, unranked
}
