package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/message"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

// DueSource hands out external entries whose fire instant has passed,
// already rendered. Each entry is returned at most once.
type DueSource interface {
	PresentDue(ctx context.Context) ([]message.Message, error)
}

// PlanSource exposes the current plan snapshot.
type PlanSource interface {
	Plan() []model.PlanEntry
}

// cacheItem stores the rendered calendar and its metadata for HTTP caching.
type cacheItem struct {
	data         []byte
	etag         string
	lastModified string // RFC1123 format required by HTTP headers
}

// CalendarServer serves the ICS feed of the plan, the plan itself and the
// due external entries over HTTP on the loopback interface.
type CalendarServer struct {
	// cache uses atomic.Pointer for lock-free reads.
	// Since the calendar is read frequently by clients but updated infrequently
	// (only on recompute), this avoids contention on the hot path (HTTP GET).
	cache atomic.Pointer[cacheItem]
	Port  string

	Due  DueSource
	Plan PlanSource
}

// NewCalendarServer creates a new instance of the server.
func NewCalendarServer(port string, due DueSource, plan PlanSource) *CalendarServer {
	return &CalendarServer{
		Port: port,
		Due:  due,
		Plan: plan,
	}
}

// Handler builds the route table.
func (s *CalendarServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(config.HeaderAllow, config.AllowedMethods)
		http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
	})

	for _, route := range []string{config.RouteRoot, config.RouteCalendar} {
		r.Get(route, s.handleCalendarRequest)
		r.Head(route, s.handleCalendarRequest)
	}
	r.Get(config.RouteDue, s.handleDue)
	r.Get(config.RoutePlan, s.handlePlan)
	return r
}

// Start initializes the HTTP server and blocks until the context is cancelled.
func (s *CalendarServer) Start(ctx context.Context) error {
	if s.Port == "" {
		return errors.New(config.ErrPortRequired)
	}

	srv := &http.Server{
		Addr:         config.LocalhostBindAddr + config.AddrSeparator + s.Port,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyPort, s.Port,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// Update atomically replaces the served calendar.
func (s *CalendarServer) Update(data []byte) {
	hash := sha256.Sum256(data)
	etag := fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:]))

	if prev := s.cache.Load(); prev != nil && prev.etag == etag {
		return
	}

	s.cache.Store(&cacheItem{
		data:         data,
		etag:         etag,
		lastModified: time.Now().UTC().Format(http.TimeFormat),
	})

	slog.Debug(config.MsgCacheUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeySizeBytes, len(data),
		config.LogKeyETag, etag,
	)
}

// handleCalendarRequest serves the ICS content with HTTP caching support.
func (s *CalendarServer) handleCalendarRequest(w http.ResponseWriter, r *http.Request) {
	item := s.cache.Load()

	if item == nil {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set(config.HeaderContentType, config.MimeTextCalendar)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	w.Header().Set(config.HeaderETag, item.etag)
	w.Header().Set(config.HeaderLastModified, item.lastModified)

	if match := r.Header.Get(config.HeaderIfNoneMatch); match == item.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if since := r.Header.Get(config.HeaderIfModifiedSince); since != "" {
		if clientTime, err := time.Parse(http.TimeFormat, since); err == nil {
			if serverTime, err := time.Parse(http.TimeFormat, item.lastModified); err == nil {
				// If server content is not newer than client cache, return 304.
				if !serverTime.After(clientTime) {
					w.WriteHeader(http.StatusNotModified)
					return
				}
			}
		}
	}

	if r.Method == http.MethodGet {
		if _, err := io.Copy(w, bytes.NewReader(item.data)); err != nil {
			slog.Error(config.ErrWriteResp,
				config.LogKeyComponent, config.CompServer,
				config.LogKeyError, err,
			)
		}
	}
}

// handleDue drains the due external entries. The response is never cached
// since a second poll must not see the same entries.
func (s *CalendarServer) handleDue(w http.ResponseWriter, r *http.Request) {
	if s.Due == nil {
		http.Error(w, config.HTTPMsgNoDueSource, http.StatusServiceUnavailable)
		return
	}
	msgs, err := s.Due.PresentDue(r.Context())
	if err != nil {
		slog.Error(config.HTTPMsgInternalErr,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		http.Error(w, config.HTTPMsgInternalErr, http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	w.Header().Set(config.HeaderCacheControl, config.CacheControlNoStore)
	writeJSON(w, msgs)
}

func (s *CalendarServer) handlePlan(w http.ResponseWriter, _ *http.Request) {
	if s.Plan == nil {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
		return
	}
	plan := s.Plan.Plan()
	views := make([]planView, 0, len(plan))
	for _, e := range plan {
		views = append(views, planView{
			Key:        e.Key.String(),
			Kind:       e.Kind().String(),
			Channel:    e.Key.Channel,
			FireAt:     e.FireAt,
			Occurrence: e.Occurrence,
			DaysBefore: e.DaysBefore,
			Payload:    e.Payload,
		})
	}
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	writeJSON(w, views)
}

// planView flattens a plan entry for JSON clients.
type planView struct {
	Key        string        `json:"key"`
	Kind       string        `json:"kind"`
	Channel    model.Channel `json:"channel"`
	FireAt     time.Time     `json:"fire_at"`
	Occurrence time.Time     `json:"occurrence"`
	DaysBefore int           `json:"days_before"`
	Payload    model.Payload `json:"payload"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set(config.HeaderContentType, config.MimeJSON)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}
