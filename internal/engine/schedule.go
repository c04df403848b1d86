package engine

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

// ErrRecomputeInProgress is returned when Recompute is entered while another
// call is still running.
var ErrRecomputeInProgress = errors.New(config.ErrRecomputeBusy)

// Diff is the minimal change between two successive full plans.
// ToCancel holds the previous entries, ToCreate the new ones.
type Diff struct {
	ToCancel []model.PlanEntry
	ToCreate []model.PlanEntry
}

// Empty reports whether applying the diff would be a no-op.
func (d Diff) Empty() bool {
	return len(d.ToCancel) == 0 && len(d.ToCreate) == 0
}

// Aggregator owns the previous full plan and diffs each recomputation
// against it. The zero value is not usable; call NewAggregator.
type Aggregator struct {
	running atomic.Bool

	// mu guards prev. Readers never block a recompute out.
	mu   sync.Mutex
	prev map[model.Key]model.PlanEntry
}

// NewAggregator returns an aggregator with an empty previous plan.
func NewAggregator() *Aggregator {
	return &Aggregator{prev: make(map[model.Key]model.PlanEntry)}
}

// Recompute builds the plan of every person against ref and returns what
// changed since the previous call. Unchanged keys are absent from the diff,
// so calling it twice with the same input yields an empty diff.
// Concurrent calls are rejected with ErrRecomputeInProgress.
func (a *Aggregator) Recompute(persons []model.Person, ref time.Time) (Diff, error) {
	if !a.running.CompareAndSwap(false, true) {
		return Diff{}, ErrRecomputeInProgress
	}
	defer a.running.Store(false)

	next := make(map[model.Key]model.PlanEntry)
	for _, p := range persons {
		for _, e := range BuildPersonPlan(p, ref) {
			next[e.Key] = e
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var diff Diff
	for k, old := range a.prev {
		cur, ok := next[k]
		if !ok {
			diff.ToCancel = append(diff.ToCancel, old)
			continue
		}
		if !old.SameAs(cur) {
			diff.ToCancel = append(diff.ToCancel, old)
			diff.ToCreate = append(diff.ToCreate, cur)
		}
	}
	for k, cur := range next {
		if _, ok := a.prev[k]; !ok {
			diff.ToCreate = append(diff.ToCreate, cur)
		}
	}

	sortByKey(diff.ToCancel)
	sortByKey(diff.ToCreate)
	a.prev = next

	slog.Debug(config.MsgRecomputeDone,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyPersons, len(persons),
		config.LogKeyEntries, len(next),
		config.LogKeyCancel, len(diff.ToCancel),
		config.LogKeyCreate, len(diff.ToCreate),
	)
	return diff, nil
}

// Retry rolls back the parts of the last diff that the dispatchers did not
// apply, so the next Recompute emits them again. A failed create forgets the
// new entry; a failed cancel restores the old one.
func (a *Aggregator) Retry(failedCancels []model.PlanEntry, failedCreates []model.Key) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, k := range failedCreates {
		delete(a.prev, k)
	}
	for _, e := range failedCancels {
		a.prev[e.Key] = e
	}
}

// Reset forgets the previous plan. The next Recompute recreates everything.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prev = make(map[model.Key]model.PlanEntry)
}

// Plan returns a snapshot of the current plan ordered by fire instant.
func (a *Aggregator) Plan() []model.PlanEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]model.PlanEntry, 0, len(a.prev))
	for _, e := range a.prev {
		out = append(out, e)
	}
	slices.SortFunc(out, func(x, y model.PlanEntry) int {
		if c := x.FireAt.Compare(y.FireAt); c != 0 {
			return c
		}
		return strings.Compare(x.Key.String(), y.Key.String())
	})
	return out
}

// Entry returns the current plan entry of k.
func (a *Aggregator) Entry(k model.Key) (model.PlanEntry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.prev[k]
	return e, ok
}

func sortByKey(entries []model.PlanEntry) {
	slices.SortFunc(entries, func(x, y model.PlanEntry) int {
		return strings.Compare(x.Key.String(), y.Key.String())
	})
}
