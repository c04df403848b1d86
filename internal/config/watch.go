package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the settings file whenever it changes on disk and hands every
// valid, actually different result to onChange. It watches the parent
// directory so editors that save through rename are still observed.
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, current Settings, onChange func(Settings)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%s: %w", ErrWatchSettings, err)
	}
	defer func() { _ = w.Close() }()

	dir := filepath.Dir(path)
	file := filepath.Base(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("%s: %w", ErrWatchSettings, err)
	}

	log := slog.With(LogKeyComponent, CompSettings, LogKeyPath, path)

	var (
		mu       sync.Mutex
		timer    *time.Timer
		lastHash = hashSettings(current)
	)

	reload := func() {
		s, err := LoadSettings(path)
		if err != nil {
			log.Warn(MsgSettingsBad, LogKeyError, err)
			return
		}

		mu.Lock()
		h := hashSettings(s)
		unchanged := h == lastHash
		lastHash = h
		mu.Unlock()

		if unchanged {
			log.Debug(MsgSettingsSkip)
			return
		}
		log.Info(MsgSettingsReload)
		onChange(s)
	}

	debounce := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(SettingsDebounce, reload)
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				debounce()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn(ErrWatchSettings, LogKeyError, err)
		}
	}
}

// hashSettings fingerprints the effective settings so redundant writes are ignored.
func hashSettings(s Settings) [sha256.Size]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%+v", s)))
}
