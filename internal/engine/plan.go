package engine

import (
	"log/slog"
	"time"

	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

// BuildPersonPlan expands every enabled method of every reminder slot of p
// into a plan entry firing strictly after ref. ref's location is the local
// timezone used to resolve each method's time of day.
//
// A person without a usable birthday has no plan. Malformed reminders are
// skipped rather than rejected; validation belongs to the edit boundary.
func BuildPersonPlan(p model.Person, ref time.Time) []model.PlanEntry {
	if p.Birthday == nil {
		return nil
	}
	log := slog.With(config.LogKeyComponent, config.CompPlanner, config.LogKeyPerson, p.ID)

	b := *p.Birthday
	if !b.Valid() {
		log.Warn(config.MsgInvalidBirthday, config.LogKeyValue, b.String())
		return nil
	}

	name := p.FullName()
	if name == "" {
		name = config.FallbackName
	}

	occurrence := NextOccurrence(b, ref)

	var entries []model.PlanEntry
	seen := make(map[model.Key]bool)

	for slot, r := range p.Reminders {
		if slot >= config.MaxReminderSlots {
			log.Warn(config.MsgSlotIgnored, config.LogKeySlot, slot)
			break
		}
		if r.DaysBefore < 0 {
			log.Debug(config.MsgNegativeDays, config.LogKeySlot, slot)
			continue
		}

		for _, m := range r.Methods() {
			var (
				key       model.Key
				timeOfDay int
				payload   model.Payload
			)

			switch m := m.(type) {
			case model.LocalMethod:
				if !m.Enabled {
					continue
				}
				if m.Channel.Kind() != model.KindLocal {
					log.Debug(config.MsgMethodSkipped, config.LogKeyChannel, m.Channel)
					continue
				}
				key = model.Key{PersonID: p.ID, Slot: slot, Channel: m.Channel}
				timeOfDay = m.TimeOfDay
				payload = model.LocalPayload{
					Name:               name,
					DaysBefore:         r.DaysBefore,
					Sound:              m.Sound,
					Vibrate:            m.Vibrate,
					WakeScreen:         m.WakeScreen,
					OverrideSilentMode: m.OverrideSilentMode,
					Priority:           m.Priority,
				}

			case model.ExternalMethod:
				if !m.Enabled {
					continue
				}
				if m.Channel.Kind() != model.KindExternal {
					log.Debug(config.MsgMethodSkipped, config.LogKeyChannel, m.Channel)
					continue
				}
				key = model.Key{PersonID: p.ID, Slot: slot, Channel: m.Channel}
				timeOfDay = m.TimeOfDay
				payload = model.ExternalPayload{
					Name:       name,
					BirthYear:  b.Year,
					Template:   m.CustomTemplate,
					IncludeAge: m.IncludeAge,
					Recipient:  m.Recipient,
				}

			default:
				continue
			}

			if seen[key] {
				log.Debug(config.MsgMethodDuplicate, config.LogKeyKey, key.String())
				continue
			}
			seen[key] = true

			fireAt, occ := fireInstant(b, occurrence, r.DaysBefore, timeOfDay, ref)
			entries = append(entries, model.PlanEntry{
				Key:        key,
				FireAt:     fireAt,
				Occurrence: occ,
				DaysBefore: r.DaysBefore,
				Payload:    payload,
			})
		}
	}

	log.Debug(config.MsgPlanBuilt, config.LogKeyEntries, len(entries))
	return entries
}

// fireInstant resolves the trigger date of one method and its time of day.
// When that instant is not after ref, the next year's occurrence is used once.
// Occurrences are at most 366 days apart so one retry always lands in the future.
func fireInstant(b model.Birthday, occurrence time.Time, daysBefore, timeOfDay int, ref time.Time) (time.Time, time.Time) {
	trigger, occ := TriggerDate(b, occurrence, daysBefore, ref)
	fireAt := atTimeOfDay(trigger, timeOfDay)
	if fireAt.After(ref) {
		return fireAt, occ
	}

	occ = OccurrenceIn(b, occ.Year()+1, occ.Location())
	return atTimeOfDay(ShiftByDaysBefore(occ, daysBefore), timeOfDay), occ
}
