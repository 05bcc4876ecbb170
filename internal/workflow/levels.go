package workflow

import (
	"fmt"
	"sort"

	"procurement/internal/model"
)

// DefaultRequiredLevels is the approval chain every request must clear.
var DefaultRequiredLevels = []int{1, 2}

// Levels is a finite, strictly increasing sequence of required approval levels.
type Levels struct {
	required []int
}

// NewLevels validates and copies the required level sequence.
func NewLevels(required []int) (Levels, error) {
	if len(required) == 0 {
		return Levels{}, fmt.Errorf("at least one approval level is required")
	}
	out := make([]int, len(required))
	copy(out, required)
	for i, lvl := range out {
		if lvl < 1 {
			return Levels{}, fmt.Errorf("approval level %d must be >= 1", lvl)
		}
		if i > 0 && out[i-1] >= lvl {
			return Levels{}, fmt.Errorf("approval levels must be strictly increasing, got %v", required)
		}
	}
	return Levels{required: out}, nil
}

// MustLevels is NewLevels for static configuration.
func MustLevels(required []int) Levels {
	l, err := NewLevels(required)
	if err != nil {
		panic(err)
	}
	return l
}

// Required returns a copy of the sequence.
func (l Levels) Required() []int {
	out := make([]int, len(l.required))
	copy(out, l.required)
	return out
}

// First is the level a new request starts at.
func (l Levels) First() int {
	return l.required[0]
}

// Contains reports whether lvl is part of the chain.
func (l Levels) Contains(lvl int) bool {
	i := sort.SearchInts(l.required, lvl)
	return i < len(l.required) && l.required[i] == lvl
}

// ApprovedLevels is the set of levels holding an approved decision.
func ApprovedLevels(approvals []model.Approval) map[int]struct{} {
	set := make(map[int]struct{}, len(approvals))
	for _, a := range approvals {
		if a.Action == model.ActionApproved {
			set[a.Level] = struct{}{}
		}
	}
	return set
}

// NextApprovalLevel is the lowest required level without an approval. ok is false once every level is approved.
func (l Levels) NextApprovalLevel(approvals []model.Approval) (level int, ok bool) {
	approved := ApprovedLevels(approvals)
	for _, lvl := range l.required {
		if _, done := approved[lvl]; !done {
			return lvl, true
		}
	}
	return 0, false
}

// IsFullyApproved reports requiredLevels ⊆ approvedLevels.
func (l Levels) IsFullyApproved(approvals []model.Approval) bool {
	_, pending := l.NextApprovalLevel(approvals)
	return !pending
}
