// Package app is the host service: it owns the persons store, the
// aggregator and the dispatch router, and serialises every mutation with
// the recompute that follows it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/dispatch"
	"github.com/tartampluch/go-birthday-reminders/internal/engine"
	"github.com/tartampluch/go-birthday-reminders/internal/message"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
	"github.com/tartampluch/go-birthday-reminders/internal/store"
)

// FeedSink receives the rendered calendar after every recompute.
type FeedSink interface {
	Update(data []byte)
}

// Options wires the optional collaborators of a Service.
type Options struct {
	Clock    engine.Clock
	Location *time.Location
	Language string
	Feed     FeedSink
	// Notify receives fired local reminders. Nil logs them.
	Notify func(message.Message)
	// DefaultReminders are given to imported persons that have none.
	DefaultReminders []model.Reminder
}

// Service is the single owner of the mutable scheduling state.
type Service struct {
	store    store.Store
	agg      *engine.Aggregator
	router   *dispatch.Router
	renderer *message.Renderer
	clock    engine.Clock
	feed     FeedSink
	notify   func(message.Message)

	// mu serialises mutation and recompute.
	mu       sync.Mutex
	loc      *time.Location
	lang     string
	defaults []model.Reminder
	// settingsMu guards loc, lang and defaults for readers outside mu.
	settingsMu sync.RWMutex
}

// NewService assembles a service. Router and renderer are required.
func NewService(st store.Store, router *dispatch.Router, renderer *message.Renderer, opts Options) *Service {
	s := &Service{
		store:    st,
		agg:      engine.NewAggregator(),
		router:   router,
		renderer: renderer,
		clock:    opts.Clock,
		feed:     opts.Feed,
		notify:   opts.Notify,
		loc:      opts.Location,
		lang:     opts.Language,
		defaults: cloneReminders(opts.DefaultReminders),
	}
	if s.clock == nil {
		s.clock = engine.RealClock{}
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.lang == "" {
		s.lang = config.DefaultLanguage
	}
	return s
}

// Recompute rebuilds the plan from the store, applies the diff through the
// router and rolls back whatever the dispatchers did not accept.
func (s *Service) Recompute(ctx context.Context) (dispatch.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recomputeLocked(ctx)
}

func (s *Service) recomputeLocked(ctx context.Context) (dispatch.Report, error) {
	start := time.Now()
	log := slog.With(config.LogKeyComponent, config.CompApp)

	persons, err := s.store.ListPersons(ctx)
	if err != nil {
		return dispatch.Report{}, fmt.Errorf("%s: %w", config.ErrPersonsList, err)
	}

	ref := s.clock.Now().In(s.location())
	diff, err := s.agg.Recompute(persons, ref)
	if err != nil {
		return dispatch.Report{}, err
	}

	rep := s.router.Apply(ctx, diff)
	if !rep.OK() {
		s.agg.Retry(rep.FailedCancels(), rep.FailedCreates())
	}

	s.publish()

	log.Info(config.MsgRecomputeDone,
		config.LogKeyPersons, len(persons),
		config.LogKeyCancel, len(rep.Cancelled),
		config.LogKeyCreate, len(rep.Created),
		config.LogKeyFailures, len(rep.Failures),
		config.LogKeyPending, s.router.Pending(),
		config.LogKeyDuration, time.Since(start).Milliseconds(),
	)
	return rep, nil
}

// publish renders the current plan into the feed sink.
func (s *Service) publish() {
	if s.feed == nil {
		return
	}
	lang := s.language()
	fb := &engine.FeedBuilder{
		Clock:   s.clock,
		Summary: func(e model.PlanEntry) string { return s.renderer.Summary(e, lang) },
	}
	data, err := fb.Build(s.agg.Plan())
	if err != nil {
		slog.Error(config.ErrICalEncode,
			config.LogKeyComponent, config.CompApp,
			config.LogKeyError, err,
		)
		return
	}
	s.feed.Update(data)
}

// SavePerson stores p and recomputes. The saved person is returned even when
// the recompute fails, since the change itself is durable.
func (s *Service) SavePerson(ctx context.Context, p model.Person) (model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.store.SavePerson(ctx, p)
	if err != nil {
		return model.Person{}, fmt.Errorf("%s: %w", config.ErrPersonSave, err)
	}
	_, err = s.recomputeLocked(ctx)
	return saved, err
}

// DeletePerson removes a person and cancels its reminders.
func (s *Service) DeletePerson(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeletePerson(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", config.ErrPersonDelete, err)
	}
	_, err := s.recomputeLocked(ctx)
	return err
}

// Persons lists the stored persons.
func (s *Service) Persons(ctx context.Context) ([]model.Person, error) {
	return s.store.ListPersons(ctx)
}

// SetLocation changes the planning timezone and recomputes when it differs.
func (s *Service) SetLocation(ctx context.Context, loc *time.Location) error {
	if loc == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settingsMu.Lock()
	changed := s.loc.String() != loc.String()
	s.loc = loc
	s.settingsMu.Unlock()

	if !changed {
		return nil
	}
	slog.Info(config.MsgTimezoneChange,
		config.LogKeyComponent, config.CompApp,
		config.LogKeyTimezone, loc.String(),
	)
	_, err := s.recomputeLocked(ctx)
	return err
}

// SetLanguage changes the rendering language. Only the feed is re-rendered;
// the plan itself does not depend on the language.
func (s *Service) SetLanguage(lang string) {
	if lang == "" {
		lang = config.DefaultLanguage
	}
	s.settingsMu.Lock()
	changed := s.lang != lang
	s.lang = lang
	s.settingsMu.Unlock()

	if !changed {
		return
	}
	slog.Info(config.MsgLanguageChange,
		config.LogKeyComponent, config.CompApp,
		config.LogKeyLang, lang,
	)
	s.publish()
}

// SetDefaultReminders replaces the reminders given to imported persons.
func (s *Service) SetDefaultReminders(rs []model.Reminder) {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	s.defaults = cloneReminders(rs)
}

// ApplySettings reacts to a reloaded settings file.
func (s *Service) ApplySettings(ctx context.Context, st config.Settings) error {
	s.SetLanguage(st.Language)
	defaults, err := DefaultReminders(st.Reminders)
	if err != nil {
		return err
	}
	s.SetDefaultReminders(defaults)
	loc, err := st.Location()
	if err != nil {
		return err
	}
	return s.SetLocation(ctx, loc)
}

// Plan returns the current plan ordered by fire instant.
func (s *Service) Plan() []model.PlanEntry {
	return s.agg.Plan()
}

// PresentDue drains the external entries due now and renders them.
// Every entry is handed out at most once.
func (s *Service) PresentDue(ctx context.Context) ([]message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	due := s.router.DueExternalEntries(s.clock.Now())
	lang := s.language()

	out := make([]message.Message, 0, len(due))
	for _, e := range due {
		out = append(out, s.renderer.Render(e, lang))
	}
	return out, nil
}

// Deliver renders a fired local reminder and hands it to the notify hook.
func (s *Service) Deliver(n dispatch.Notification) {
	e, ok := s.agg.Entry(n.Key)
	if !ok || !e.FireAt.Equal(n.FireAt) {
		e = model.PlanEntry{Key: n.Key, FireAt: n.FireAt, DaysBefore: n.DaysBefore, Payload: n.Payload}
	}
	msg := s.renderer.Render(e, s.language())

	if s.notify != nil {
		s.notify(msg)
		return
	}
	slog.Info(config.MsgLocalFired,
		config.LogKeyComponent, config.CompApp,
		config.LogKeyKey, n.Key.String(),
		config.LogKeyTitle, msg.Title,
		config.LogKeyBody, msg.Body,
	)
}

// Run recomputes once, then on every tick of interval and whenever settings
// arrive on updates. It blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration, updates <-chan config.Settings) {
	log := slog.With(config.LogKeyComponent, config.CompWorker)

	s.recomputeAndLog(ctx)

	if interval <= 0 {
		interval = config.DefaultRecomputeInterval
	}
	currentDuration := interval
	ticker := time.NewTicker(currentDuration)
	defer ticker.Stop()

	log.Info(config.MsgWorkerStart, config.LogKeyInterval, currentDuration)

	for {
		select {
		case <-ctx.Done():
			log.Info(config.MsgWorkerStop)
			return

		case st, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if st.RecomputeInterval > 0 && st.RecomputeInterval != currentDuration {
				log.Info(config.MsgUpdateInterval, config.LogKeyOld, currentDuration, config.LogKeyNew, st.RecomputeInterval)
				currentDuration = st.RecomputeInterval
				ticker.Reset(currentDuration)
			}
			if err := s.ApplySettings(ctx, st); err != nil {
				log.Error(config.MsgRecomputeFailed, config.LogKeyError, err)
			}

		case <-ticker.C:
			s.recomputeAndLog(ctx)
		}
	}
}

func (s *Service) recomputeAndLog(ctx context.Context) {
	if _, err := s.Recompute(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error(config.MsgRecomputeFailed,
			config.LogKeyComponent, config.CompWorker,
			config.LogKeyError, err,
		)
	}
}

func (s *Service) location() *time.Location {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.loc
}

func (s *Service) language() string {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.lang
}

func (s *Service) defaultReminders() []model.Reminder {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.defaults
}

// DefaultReminders turns the reminder preferences into the slots given to
// persons that have none. A disabled default yields no slot.
func DefaultReminders(st config.ReminderSettings) ([]model.Reminder, error) {
	d := st.Default
	if !d.Enabled {
		return nil, nil
	}
	tod, err := d.Minutes()
	if err != nil {
		return nil, err
	}
	r, err := model.NewReminder(d.DaysBefore, model.Channel(d.Channel), tod)
	if err != nil {
		return nil, err
	}
	return []model.Reminder{r}, nil
}

func cloneReminders(rs []model.Reminder) []model.Reminder {
	return model.Person{Reminders: rs}.Clone().Reminders
}
