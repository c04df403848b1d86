package dispatch

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

// Notification is handed to the sink when a local entry fires.
// It carries enough to render the reminder after the plan moved on.
type Notification struct {
	Key        model.Key
	FireAt     time.Time
	DaysBefore int
	Payload    model.LocalPayload
}

type armed struct {
	timer   *time.Timer
	fireAt  time.Time
	payload model.LocalPayload
}

// TimerDispatcher is an in-process LocalDispatcher: one time.AfterFunc per
// key. It stands in for the OS alarm scheduler on desktop hosts, so it only
// fires while the process runs.
type TimerDispatcher struct {
	mu      sync.Mutex
	timers  map[model.Key]*armed
	deliver func(Notification)
}

// NewTimerDispatcher returns a dispatcher calling deliver from the timer goroutine.
func NewTimerDispatcher(deliver func(Notification)) *TimerDispatcher {
	return &TimerDispatcher{
		timers:  make(map[model.Key]*armed),
		deliver: deliver,
	}
}

// Schedule arms key for fireAt. Re-arming with the same instant and payload
// is a no-op; anything else replaces the previous timer.
func (d *TimerDispatcher) Schedule(ctx context.Context, key model.Key, fireAt time.Time, p model.LocalPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if a, ok := d.timers[key]; ok {
		if a.fireAt.Equal(fireAt) && a.payload == p {
			return nil
		}
		a.timer.Stop()
	}

	a := &armed{fireAt: fireAt, payload: p}
	n := Notification{Key: key, FireAt: fireAt, DaysBefore: p.DaysBefore, Payload: p}
	a.timer = time.AfterFunc(max(time.Until(fireAt), 0), func() { d.fire(key, a, n) })
	d.timers[key] = a

	slog.Debug(config.MsgLocalArmed,
		config.LogKeyComponent, config.CompTimer,
		config.LogKeyKey, key.String(),
		config.LogKeyFireAt, fireAt.Format(config.DateFormatDisplay),
	)
	return nil
}

// Cancel disarms key. Cancelling an unknown key succeeds.
func (d *TimerDispatcher) Cancel(ctx context.Context, key model.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if a, ok := d.timers[key]; ok {
		a.timer.Stop()
		delete(d.timers, key)
	}
	return nil
}

func (d *TimerDispatcher) fire(key model.Key, a *armed, n Notification) {
	d.mu.Lock()
	current := d.timers[key] == a
	if current {
		delete(d.timers, key)
	}
	d.mu.Unlock()

	if !current {
		return
	}
	slog.Info(config.MsgLocalFired,
		config.LogKeyComponent, config.CompTimer,
		config.LogKeyKey, key.String(),
	)
	if d.deliver != nil {
		d.deliver(n)
	}
}

// Armed lists the keys with a pending timer.
func (d *TimerDispatcher) Armed() []model.Key {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := make([]model.Key, 0, len(d.timers))
	for k := range d.timers {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b model.Key) int { return strings.Compare(a.String(), b.String()) })
	return keys
}

// Close stops every timer.
func (d *TimerDispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for k, a := range d.timers {
		a.timer.Stop()
		delete(d.timers, k)
	}
}
