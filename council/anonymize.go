package council

// Label is an anonymized per-request alias for a council member, used only
// within stage-2 artifacts. Labels are "A".."Z" and continue "AA", "AB" and so on
// for councils larger than 26 members (bijective base-26).
type Label string

// LabelMap is the bidirectional label-to-member mapping for one deliberation.
// It is built once right after stage 1 completes, is never mutated afterward,
// and is discarded with the request; it must never reach persistence.
type LabelMap struct {
	byLabel  map[Label]Member
	byMember map[Member]Label
	labels   []Label
	members  []Member
}

// Anonymize assigns labels to exactly the members with a successful stage-1
// response. Assignment follows the declared member order, not arrival order,
// so it is deterministic regardless of completion timing.
func Anonymize(declared []Member, stage1 StageResult) *LabelMap {
	lm := &LabelMap{
		byLabel:  make(map[Label]Member),
		byMember: make(map[Member]Label),
	}
	for _, m := range declared {
		if stage1[m] == nil {
			continue
		}
		l := labelAt(len(lm.labels))
		lm.byLabel[l] = m
		lm.byMember[m] = l
		lm.labels = append(lm.labels, l)
		lm.members = append(lm.members, m)
	}
	return lm
}

// labelAt returns the label for the i-th (0-based) anonymized member:
// 0 is A, 25 is Z, 26 is AA, 27 is AB, 702 is AAA.
func labelAt(i int) Label {
	buf := make([]byte, 0, 3)
	n := i + 1
	for n > 0 {
		n--
		buf = append(buf, byte('A'+n%26))
		n /= 26
	}
	// digits were produced least-significant first
	for l, r := 0, len(buf)-1; l < r; l, r = l+1, r-1 {
		buf[l], buf[r] = buf[r], buf[l]
	}
	return Label(buf)
}

// Member resolves a label back to its member.
func (lm *LabelMap) Member(l Label) (Member, bool) {
	m, ok := lm.byLabel[l]
	return m, ok
}

// Label resolves a member to its label.
func (lm *LabelMap) Label(m Member) (Label, bool) {
	l, ok := lm.byMember[m]
	return l, ok
}

// Labels returns all labels in assignment order.
func (lm *LabelMap) Labels() []Label { return lm.labels }

// Members returns the labeled members in assignment order, which is the
// declared order restricted to stage-1 successes.
func (lm *LabelMap) Members() []Member { return lm.members }

// Len returns the number of labeled members.
func (lm *LabelMap) Len() int { return len(lm.labels) }

// Has reports whether l is a known label.
func (lm *LabelMap) Has(l Label) bool {
	_, ok := lm.byLabel[l]
	return ok
}

// Forward returns a plain label-to-member map for embedding in result metadata.
func (lm *LabelMap) Forward() map[Label]Member {
	out := make(map[Label]Member, len(lm.byLabel))
	for l, m := range lm.byLabel {
		out[l] = m
	}
	return out
}
