package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Settings holds the runtime configuration of the scheduler host.
// Values are read from a YAML file and then overridden by GOBIRTHDAY_* environment
// variables (GOBIRTHDAY_STORE_DRIVER, GOBIRTHDAY_DISPATCH_RATE_PER_SEC, ...).
type Settings struct {
	// Timezone is an IANA zone name. Empty means the system local zone.
	Timezone string `yaml:"timezone" split_words:"true"`
	Language string `yaml:"language" split_words:"true"`

	RecomputeInterval time.Duration `yaml:"recompute_interval" split_words:"true"`

	Store    StoreSettings    `yaml:"store" split_words:"true"`
	Server   ServerSettings   `yaml:"server" split_words:"true"`
	Contacts ContactsSettings `yaml:"contacts" split_words:"true"`
	Dispatch DispatchSettings `yaml:"dispatch" split_words:"true"`

	Reminders ReminderSettings `yaml:"reminders" split_words:"true"`
}

// StoreSettings selects the persons store backend.
type StoreSettings struct {
	Driver      string        `yaml:"driver" split_words:"true"`
	Path        string        `yaml:"path" split_words:"true"`
	BusyTimeout time.Duration `yaml:"busy_timeout" split_words:"true"`
}

// ServerSettings controls the local HTTP surface (ICS feed and due entries).
type ServerSettings struct {
	Enabled bool   `yaml:"enabled" split_words:"true"`
	Port    string `yaml:"port" split_words:"true"`
}

// ContactsSettings describes where candidate persons are imported from.
// The password for WebUser lives in the OS keyring, never in this file.
type ContactsSettings struct {
	Mode         string `yaml:"mode" split_words:"true"`
	LocalPath    string `yaml:"local_path" split_words:"true"`
	WebURL       string `yaml:"web_url" split_words:"true"`
	WebUser      string `yaml:"web_user" split_words:"true"`
	CalendarPath string `yaml:"calendar_path" split_words:"true"`
}

// DispatchSettings bounds calls made to the dispatch collaborators.
type DispatchSettings struct {
	Timeout     time.Duration `yaml:"timeout" split_words:"true"`
	Concurrency int           `yaml:"concurrency" split_words:"true"`
	// RatePerSec throttles dispatcher calls. 0 disables throttling.
	RatePerSec int `yaml:"rate_per_sec" split_words:"true"`
}

// ReminderSettings holds the reminder preferences.
type ReminderSettings struct {
	Default DefaultReminder `yaml:"default" split_words:"true"`
}

// DefaultReminder is the slot given to persons that arrive without reminders.
type DefaultReminder struct {
	Enabled    bool   `yaml:"enabled" split_words:"true"`
	DaysBefore int    `yaml:"days_before" split_words:"true"`
	Channel    string `yaml:"channel" split_words:"true"`
	// TimeOfDay is "HH:MM" in the configured timezone.
	TimeOfDay string `yaml:"time_of_day" split_words:"true"`
}

// Minutes returns TimeOfDay as minutes after midnight.
func (r DefaultReminder) Minutes() (int, error) {
	return ParseTimeOfDay(r.TimeOfDay)
}

// ParseTimeOfDay converts "HH:MM" into minutes after midnight.
func ParseTimeOfDay(v string) (int, error) {
	t, err := time.Parse(TimeOfDayLayout, v)
	if err != nil {
		return 0, fmt.Errorf("%s %q", ErrTimeOfDay, v)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// DefaultSettings returns the configuration used when no file is present.
func DefaultSettings() Settings {
	return Settings{
		Language:          DefaultLanguage,
		RecomputeInterval: DefaultRecomputeInterval,
		Store: StoreSettings{
			Driver:      StoreDriverSQLite,
			Path:        DefaultDataPath(StoreFileName),
			BusyTimeout: DefaultSQLiteBusyTimeout,
		},
		Server: ServerSettings{
			Enabled: true,
			Port:    DefaultPort,
		},
		Contacts: ContactsSettings{
			Mode: SourceModeLocal,
		},
		Dispatch: DispatchSettings{
			Timeout:     DefaultDispatchTimeout,
			Concurrency: DefaultDispatchWorkers,
		},
		Reminders: ReminderSettings{
			Default: DefaultReminder{
				Enabled:    true,
				DaysBefore: DefaultReminderDays,
				Channel:    DefaultReminderChannel,
				TimeOfDay:  DefaultReminderTime,
			},
		},
	}
}

// DefaultDataPath places name inside the per-user configuration directory.
// It falls back to the working directory when that directory is unknown.
func DefaultDataPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, AppID, name)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// LoadSettings reads the YAML file at path (a missing file yields defaults),
// applies environment overrides and validates the result.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &s); err != nil {
				return Settings{}, fmt.Errorf("%s: %w", ErrSettingsParse, err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// Defaults only.
		default:
			return Settings{}, fmt.Errorf("%s: %w", ErrSettingsRead, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return Settings{}, fmt.Errorf("%s: %w", ErrSettingsEnv, err)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate rejects settings the host cannot run with.
func (s Settings) Validate() error {
	invalid := func(msg string, args ...any) error {
		return fmt.Errorf("%s: %s", ErrInvalidSettings, fmt.Sprintf(msg, args...))
	}

	if _, err := s.Location(); err != nil {
		return invalid("%s %q", ErrTimezone, s.Timezone)
	}
	if !slices.Contains(SupportedLanguages, s.Language) {
		return invalid("%s %q", ErrLanguage, s.Language)
	}
	if s.RecomputeInterval < MinRecomputeInterval {
		return invalid("%s (%s < %s)", ErrInterval, s.RecomputeInterval, MinRecomputeInterval)
	}

	switch s.Store.Driver {
	case StoreDriverMemory:
	case StoreDriverSQLite:
		if s.Store.Path == "" {
			return invalid(ErrStorePath)
		}
	default:
		return invalid("%s %q", ErrStoreDriver, s.Store.Driver)
	}

	if s.Server.Enabled {
		if err := ValidatePort(s.Server.Port); err != nil {
			return invalid("%s", err)
		}
	}

	switch s.Contacts.Mode {
	case SourceModeLocal, SourceModeWeb:
	default:
		return invalid("%s %q", ErrModeUnsupport, s.Contacts.Mode)
	}

	if s.Dispatch.Timeout <= 0 {
		return invalid(ErrDispatchTimeout)
	}
	if s.Dispatch.Concurrency <= 0 {
		return invalid(ErrDispatchWorkers)
	}

	if d := s.Reminders.Default; d.Enabled {
		if d.DaysBefore < 0 || d.DaysBefore > MaxDaysBefore {
			return invalid("%s: %d", ErrDaysBefore, d.DaysBefore)
		}
		if d.Channel == "" {
			return invalid(ErrReminderChannel)
		}
		if _, err := d.Minutes(); err != nil {
			return invalid("%s", err)
		}
	}
	return nil
}

// Location resolves the configured timezone.
func (s Settings) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// ValidatePort checks that port is a number in the TCP port range.
func ValidatePort(port string) error {
	if port == "" {
		return errors.New(ErrPortRequired)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return errors.New(ErrPortNumber)
	}
	if n < MinPort || n > MaxPort {
		return errors.New(ErrPortRange)
	}
	return nil
}
