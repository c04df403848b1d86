// Package dispatch routes schedule diffs to the on-device and external
// dispatch collaborators and keeps the set of external entries waiting to be
// presented.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/engine"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// LocalDispatcher arms device alarms and notifications.
// Both operations must be idempotent under repeated identical calls.
type LocalDispatcher interface {
	Schedule(ctx context.Context, key model.Key, fireAt time.Time, p model.LocalPayload) error
	Cancel(ctx context.Context, key model.Key) error
}

// ExternalDispatcher prepares composer intents (email, sms, messengers).
type ExternalDispatcher interface {
	Prepare(ctx context.Context, key model.Key, fireAt time.Time, p model.ExternalPayload) error
	Cancel(ctx context.Context, key model.Key) error
}

// Options bounds the calls made to the collaborators.
type Options struct {
	// Timeout caps every single dispatcher call.
	Timeout time.Duration
	// Concurrency is the number of keys applied in parallel.
	Concurrency int
	// RatePerSec throttles dispatcher calls. 0 disables throttling.
	RatePerSec int
	// Now defaults to time.Now.
	Now func() time.Time
}

type pendingKey struct {
	key    model.Key
	fireAt int64
}

// Router applies diffs. Steps of different keys run concurrently; for a
// single key the cancel always completes before the create is issued.
type Router struct {
	local    LocalDispatcher
	external ExternalDispatcher
	opts     Options
	limiter  *rate.Limiter

	mu      sync.Mutex
	pending map[pendingKey]model.PlanEntry
}

// NewRouter wires the collaborators. A nil external dispatcher is allowed:
// external entries then only feed DueExternalEntries.
func NewRouter(local LocalDispatcher, external ExternalDispatcher, opts Options) *Router {
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultDispatchTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = config.DefaultDispatchWorkers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := &Router{
		local:    local,
		external: external,
		opts:     opts,
		pending:  make(map[pendingKey]model.PlanEntry),
	}
	if opts.RatePerSec > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RatePerSec)
	}
	return r
}

type step struct {
	cancel *model.PlanEntry
	create *model.PlanEntry
}

// Apply issues the cancels and creates of diff. Failures are collected in the
// returned report and never stop other keys. A create whose key failed to
// cancel is deferred, so no key ever ends up armed twice.
func (r *Router) Apply(ctx context.Context, diff engine.Diff) Report {
	steps := make(map[model.Key]*step)
	get := func(k model.Key) *step {
		s, ok := steps[k]
		if !ok {
			s = &step{}
			steps[k] = s
		}
		return s
	}
	for i := range diff.ToCancel {
		get(diff.ToCancel[i].Key).cancel = &diff.ToCancel[i]
	}
	for i := range diff.ToCreate {
		get(diff.ToCreate[i].Key).create = &diff.ToCreate[i]
	}

	var (
		mu     sync.Mutex
		report Report
		g      errgroup.Group
	)
	g.SetLimit(r.opts.Concurrency)

	for key, s := range steps {
		g.Go(func() error {
			res := r.applyKey(ctx, key, s)
			mu.Lock()
			defer mu.Unlock()
			report.merge(res)
			return nil
		})
	}
	_ = g.Wait()

	report.sort()
	r.log(report)
	return report
}

func (r *Router) applyKey(ctx context.Context, key model.Key, s *step) Report {
	var res Report

	if s.cancel != nil {
		if err := r.cancel(ctx, *s.cancel, s.create != nil); err != nil {
			res.Failures = append(res.Failures, Failure{Op: OpCancel, Entry: *s.cancel, Err: err})
			if s.create != nil {
				res.Deferred = append(res.Deferred, *s.create)
			}
			return res
		}
		res.Cancelled = append(res.Cancelled, key)
	}

	if s.create != nil {
		if err := r.create(ctx, *s.create); err != nil {
			res.Failures = append(res.Failures, Failure{Op: OpCreate, Entry: *s.create, Err: err})
			return res
		}
		res.Created = append(res.Created, key)
	}
	return res
}

func (r *Router) cancel(ctx context.Context, e model.PlanEntry, recreated bool) error {
	switch e.Kind() {
	case model.KindLocal:
		if r.local == nil {
			return errors.New(config.ErrNoDispatcher)
		}
		return r.call(ctx, func(ctx context.Context) error {
			return r.local.Cancel(ctx, e.Key)
		})

	case model.KindExternal:
		r.dropPending(e.Key, recreated)
		if r.external == nil {
			return nil
		}
		return r.call(ctx, func(ctx context.Context) error {
			return r.external.Cancel(ctx, e.Key)
		})

	default:
		return fmt.Errorf("%s: %q", config.ErrUnknownKind, e.Key.Channel)
	}
}

func (r *Router) create(ctx context.Context, e model.PlanEntry) error {
	switch p := e.Payload.(type) {
	case model.LocalPayload:
		if e.Kind() != model.KindLocal {
			return errors.New(config.ErrPayloadMismatch)
		}
		if r.local == nil {
			return errors.New(config.ErrNoDispatcher)
		}
		return r.call(ctx, func(ctx context.Context) error {
			return r.local.Schedule(ctx, e.Key, e.FireAt, p)
		})

	case model.ExternalPayload:
		if e.Kind() != model.KindExternal {
			return errors.New(config.ErrPayloadMismatch)
		}
		if r.external != nil {
			err := r.call(ctx, func(ctx context.Context) error {
				return r.external.Prepare(ctx, e.Key, e.FireAt, p)
			})
			if err != nil {
				return err
			}
		}
		r.mu.Lock()
		r.pending[pendingKey{key: e.Key, fireAt: e.FireAt.UnixNano()}] = e
		r.mu.Unlock()
		slog.Debug(config.MsgExternalPending,
			config.LogKeyComponent, config.CompDispatch,
			config.LogKeyKey, e.Key.String(),
			config.LogKeyFireAt, e.FireAt,
		)
		return nil

	default:
		return fmt.Errorf("%s: %q", config.ErrUnknownKind, e.Key.Channel)
	}
}

// call throttles fn and bounds it by the configured timeout. A collaborator
// that ignores its context still cannot hold the router past the deadline.
func (r *Router) call(ctx context.Context, fn func(context.Context) error) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dropPending forgets the not-yet-presented entries of key. An entry that is
// already due survives when the key is being recreated: the recomputation
// rolled it to next year, but this year's message still has to be shown.
func (r *Router) dropPending(key model.Key, keepDue bool) {
	now := r.opts.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	for pk, e := range r.pending {
		if pk.key != key {
			continue
		}
		if keepDue && !e.FireAt.After(now) {
			continue
		}
		delete(r.pending, pk)
	}
}

// DueExternalEntries removes and returns the external entries whose fire
// instant is at or before now, oldest first. Each entry is returned once.
func (r *Router) DueExternalEntries(now time.Time) []model.PlanEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []model.PlanEntry
	for pk, e := range r.pending {
		if e.FireAt.After(now) {
			continue
		}
		due = append(due, e)
		delete(r.pending, pk)
	}

	slices.SortFunc(due, func(a, b model.PlanEntry) int {
		if c := a.FireAt.Compare(b.FireAt); c != 0 {
			return c
		}
		return strings.Compare(a.Key.String(), b.Key.String())
	})

	if len(due) > 0 {
		slog.Info(config.MsgExternalDue,
			config.LogKeyComponent, config.CompDispatch,
			config.LogKeyCount, len(due),
			config.LogKeyPending, len(r.pending),
		)
	}
	return due
}

// Pending returns the number of external entries not yet presented.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Router) log(rep Report) {
	log := slog.With(config.LogKeyComponent, config.CompDispatch)
	for _, f := range rep.Failures {
		log.Warn(config.MsgDispatchFailed,
			config.LogKeyOp, string(f.Op),
			config.LogKeyKey, f.Entry.Key.String(),
			config.LogKeyError, f.Err,
		)
	}
	for _, e := range rep.Deferred {
		log.Warn(config.MsgDispatchDeferred, config.LogKeyKey, e.Key.String())
	}
	if len(rep.Cancelled)+len(rep.Created)+len(rep.Failures) > 0 {
		log.Info(config.MsgDispatchApplied,
			config.LogKeyCancel, len(rep.Cancelled),
			config.LogKeyCreate, len(rep.Created),
			config.LogKeyFailures, len(rep.Failures),
		)
	}
}

func (r *Report) merge(o Report) {
	r.Cancelled = append(r.Cancelled, o.Cancelled...)
	r.Created = append(r.Created, o.Created...)
	r.Deferred = append(r.Deferred, o.Deferred...)
	r.Failures = append(r.Failures, o.Failures...)
}
