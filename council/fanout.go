package council

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// FanOut invokes call for every member concurrently and waits until every
// call has settled. The returned StageResult has one entry per member, nil
// marking an absent result. FanOut itself never fails because members failed;
// the only whole-call error is an empty member set.
//
// Each goroutine writes only its own slot, so no locking is needed; results
// are assembled after the barrier. Total time is bounded by the slowest
// member, not the sum of all members.
func FanOut(ctx context.Context, members []Member, call func(ctx context.Context, m Member) *MemberResponse) (StageResult, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}

	slots := make([]*MemberResponse, len(members))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range members {
		i, m := i, m
		g.Go(func() error {
			slots[i] = call(gctx, m)
			return nil // member failures are absent results, never group errors
		})
	}
	_ = g.Wait()

	out := make(StageResult, len(members))
	for i, m := range members {
		out[m] = slots[i]
	}
	return out, nil
}
