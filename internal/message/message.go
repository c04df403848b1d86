// Package message turns plan entries into localized text at dispatch time.
// Plans never carry rendered strings, so a language change only affects
// what is rendered next.
package message

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/engine"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Message is a rendered plan entry, ready for a notification or a composer.
type Message struct {
	Key       model.Key     `json:"key"`
	Channel   model.Channel `json:"channel"`
	FireAt    time.Time     `json:"fire_at"`
	Recipient string        `json:"recipient,omitempty"`
	Title     string        `json:"title"`
	Body      string        `json:"body"`
}

// Renderer localizes plan entries using the embedded locale files.
type Renderer struct {
	bundle    *i18n.Bundle
	languages []string
}

// NewRenderer loads every embedded active.<lang>.json file.
func NewRenderer() (*Renderer, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrLocalesAccess, err)
	}

	r := &Renderer{bundle: bundle}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		langCode := strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json")
		if langCode == "" {
			slog.Warn(config.MsgLocaleBadName,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			return nil, fmt.Errorf("%s %s: %w", config.ErrLocaleLoad, name, err)
		}
		r.languages = append(r.languages, langCode)
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyLang, langCode,
			config.LogKeyFile, name,
		)
	}
	return r, nil
}

// Languages lists the languages found in the embedded locales.
func (r *Renderer) Languages() []string {
	return append([]string(nil), r.languages...)
}

// Render produces the text of one entry in lang.
func (r *Renderer) Render(e model.PlanEntry, lang string) Message {
	loc := r.localizer(lang)
	m := Message{Key: e.Key, Channel: e.Key.Channel, FireAt: e.FireAt}

	switch p := e.Payload.(type) {
	case model.LocalPayload:
		data := map[string]any{"Name": p.Name}
		m.Title = localize(loc, &i18n.LocalizeConfig{MessageID: config.TKeyNotifTitle, TemplateData: data},
			fmt.Sprintf(config.FallbackTitle, p.Name))

		if e.DaysBefore == 0 {
			m.Body = localize(loc, &i18n.LocalizeConfig{MessageID: config.TKeyNotifBodyToday, TemplateData: data},
				fmt.Sprintf(config.FallbackBodyToday, p.Name))
		} else {
			m.Body = localize(loc, &i18n.LocalizeConfig{
				MessageID:    config.TKeyNotifBodyDays,
				TemplateData: map[string]any{"Name": p.Name, "Count": e.DaysBefore},
				PluralCount:  e.DaysBefore,
			}, fmt.Sprintf(config.FallbackBodyDays, p.Name, e.DaysBefore))
		}

	case model.ExternalPayload:
		m.Recipient = p.Recipient
		age, ageKnown := engine.AgeAt(p.BirthYear, e.Occurrence)
		data := map[string]any{"Name": p.Name, "Age": ""}
		if ageKnown {
			data["Age"] = age
		}

		m.Title = localize(loc, &i18n.LocalizeConfig{MessageID: config.TKeyMsgSubject, TemplateData: data},
			fmt.Sprintf(config.FallbackSubject, p.Name))
		m.Body = r.greeting(loc, p, data)

		if p.IncludeAge && ageKnown && age > 0 {
			line := localize(loc, &i18n.LocalizeConfig{MessageID: config.TKeyMsgAgeLine, TemplateData: data},
				fmt.Sprintf(config.FallbackAgeLine, age))
			m.Body += "\n" + line
		}

	default:
		m.Title = fmt.Sprintf(config.FallbackTitle, config.FallbackName)
	}
	return m
}

// greeting renders the custom template when present, else the channel default.
func (r *Renderer) greeting(loc *i18n.Localizer, p model.ExternalPayload, data map[string]any) string {
	fallback := fmt.Sprintf(config.FallbackGreeting, p.Name)
	if p.Template == "" {
		return localize(loc, &i18n.LocalizeConfig{MessageID: config.TKeyMsgGreeting, TemplateData: data}, fallback)
	}

	msg, err := loc.Localize(&i18n.LocalizeConfig{
		DefaultMessage: &i18n.Message{ID: config.TKeyCustomTemplate, Other: p.Template},
		TemplateData:   data,
	})
	if msg != "" && (err == nil || isNotFound(err)) {
		return msg
	}
	slog.Warn(config.ErrTemplateCustomBad,
		config.LogKeyComponent, config.CompI18n,
		config.LogKeyError, err,
	)
	return localize(loc, &i18n.LocalizeConfig{MessageID: config.TKeyMsgGreeting, TemplateData: data}, fallback)
}

// Summary is the feed event title of an entry.
func (r *Renderer) Summary(e model.PlanEntry, lang string) string {
	name := config.FallbackName
	switch p := e.Payload.(type) {
	case model.LocalPayload:
		name = p.Name
	case model.ExternalPayload:
		name = p.Name
	}
	return localize(r.localizer(lang), &i18n.LocalizeConfig{
		MessageID:    config.TKeyFeedSummary,
		TemplateData: map[string]any{"Name": name, "Channel": string(e.Key.Channel)},
	}, fmt.Sprintf(config.FallbackSummary, name, e.Key.Channel))
}

func (r *Renderer) localizer(lang string) *i18n.Localizer {
	if lang == "" {
		lang = config.DefaultLanguage
	}
	return i18n.NewLocalizer(r.bundle, lang, config.DefaultLanguage)
}

// localize is a helper to translate a key safely.
func localize(loc *i18n.Localizer, lc *i18n.LocalizeConfig, fallback string) string {
	msg, err := loc.Localize(lc)
	if err != nil || msg == "" {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, lc.MessageID,
			config.LogKeyError, err,
		)
		return fallback
	}
	return msg
}

func isNotFound(err error) bool {
	var nf *i18n.MessageNotFoundErr
	return errors.As(err, &nf)
}
