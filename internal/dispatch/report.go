package dispatch

import (
	"slices"
	"strings"

	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

// Op names a dispatcher operation.
type Op string

const (
	OpCancel Op = "cancel"
	OpCreate Op = "create"
)

// Failure is one dispatcher call that did not succeed.
type Failure struct {
	Op    Op
	Entry model.PlanEntry
	Err   error
}

// Report summarizes one Apply. Failures never abort the batch.
type Report struct {
	Cancelled []model.Key
	Created   []model.Key
	// Deferred creates were skipped because the cancel of the same key failed.
	Deferred []model.PlanEntry
	Failures []Failure
}

// OK reports whether every step of the diff was applied.
func (r Report) OK() bool {
	return len(r.Failures) == 0 && len(r.Deferred) == 0
}

// FailedCancels returns the previous entries that are still live in a dispatcher.
func (r Report) FailedCancels() []model.PlanEntry {
	var out []model.PlanEntry
	for _, f := range r.Failures {
		if f.Op == OpCancel {
			out = append(out, f.Entry)
		}
	}
	return out
}

// FailedCreates returns the keys whose new entry never reached a dispatcher,
// deferred ones included.
func (r Report) FailedCreates() []model.Key {
	var out []model.Key
	for _, f := range r.Failures {
		if f.Op == OpCreate {
			out = append(out, f.Entry.Key)
		}
	}
	for _, e := range r.Deferred {
		out = append(out, e.Key)
	}
	return out
}

func (r *Report) sort() {
	byKey := func(a, b model.Key) int { return strings.Compare(a.String(), b.String()) }
	slices.SortFunc(r.Cancelled, byKey)
	slices.SortFunc(r.Created, byKey)
	slices.SortFunc(r.Deferred, func(a, b model.PlanEntry) int { return byKey(a.Key, b.Key) })
	slices.SortFunc(r.Failures, func(a, b Failure) int {
		if c := byKey(a.Entry.Key, b.Entry.Key); c != 0 {
			return c
		}
		return strings.Compare(string(a.Op), string(b.Op))
	})
}
