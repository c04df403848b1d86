package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tartampluch/go-birthday-reminders/internal/app"
	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/dispatch"
	"github.com/tartampluch/go-birthday-reminders/internal/message"
	"github.com/tartampluch/go-birthday-reminders/internal/server"
	"github.com/tartampluch/go-birthday-reminders/internal/store"
	"golang.org/x/sync/errgroup"
)

// NewRunCommand creates the long-running scheduler command.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   config.CmdRun,
		Short: config.DescRun,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScheduler(cmd.Context(), opts)
		},
	}
}

// host bundles the collaborators every command needs.
type host struct {
	store store.Store
	// timers is nil for one-shot commands.
	timers *dispatch.TimerDispatcher
	svc    *app.Service
}

// newHost opens the store and assembles the service. Local reminders are
// armed as in-process timers.
func newHost(opts *RootOptions, feed app.FeedSink, notify func(message.Message)) (*host, error) {
	h := &host{}
	h.timers = dispatch.NewTimerDispatcher(func(n dispatch.Notification) {
		h.svc.Deliver(n)
	})
	if err := h.assemble(opts, h.timers, feed, notify); err != nil {
		h.timers.Close()
		return nil, err
	}
	return h, nil
}

// newOneShotHost assembles a service for commands that exit right after
// their mutation. Local entries are accepted without arming anything; the
// running scheduler arms them on its next recompute.
func newOneShotHost(opts *RootOptions) (*host, error) {
	h := &host{}
	if err := h.assemble(opts, dispatch.Deferred{}, nil, nil); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *host) assemble(opts *RootOptions, local dispatch.LocalDispatcher, feed app.FeedSink, notify func(message.Message)) error {
	s := opts.Settings

	loc, err := s.Location()
	if err != nil {
		return err
	}
	defaults, err := app.DefaultReminders(s.Reminders)
	if err != nil {
		return err
	}
	renderer, err := message.NewRenderer()
	if err != nil {
		return err
	}
	st, err := store.Open(s.Store)
	if err != nil {
		return err
	}
	h.store = st

	clock := opts.clock()
	router := dispatch.NewRouter(local, nil, dispatch.Options{
		Timeout:     s.Dispatch.Timeout,
		Concurrency: s.Dispatch.Concurrency,
		RatePerSec:  s.Dispatch.RatePerSec,
		Now:         clock.Now,
	})
	h.svc = app.NewService(st, router, renderer, app.Options{
		Clock:            clock,
		Location:         loc,
		Language:         s.Language,
		Feed:             feed,
		Notify:           notify,
		DefaultReminders: defaults,
	})
	return nil
}

func (h *host) Close() error {
	if h.timers != nil {
		h.timers.Close()
	}
	return h.store.Close()
}

// runScheduler recomputes on a ticker, serves the feed and follows the
// settings file until ctx is cancelled.
func runScheduler(ctx context.Context, opts *RootOptions) error {
	s := opts.Settings

	var (
		srv  *server.CalendarServer
		feed app.FeedSink
	)
	if s.Server.Enabled {
		srv = server.NewCalendarServer(s.Server.Port, nil, nil)
		feed = srv
	}

	h, err := newHost(opts, feed, nil)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	if srv != nil {
		srv.Due = h.svc
		srv.Plan = h.svc
	}

	updates := make(chan config.Settings, config.ChannelBufferSize)
	g, ctx := errgroup.WithContext(ctx)

	if srv != nil {
		g.Go(func() error { return srv.Start(ctx) })
	}
	g.Go(func() error {
		h.svc.Run(ctx, s.RecomputeInterval, updates)
		return nil
	})
	g.Go(func() error {
		err := config.Watch(ctx, opts.ConfigPath, s, func(next config.Settings) {
			select {
			case updates <- next:
			case <-ctx.Done():
			}
		})
		if err != nil {
			slog.Warn(config.MsgWatchDisabled,
				config.LogKeyComponent, config.CompCLI,
				config.LogKeyError, err,
			)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompCLI)
	return nil
}
