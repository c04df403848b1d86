package engine

import (
	"time"

	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

// OccurrenceIn returns local midnight of the birthday's month/day in year.
// A Feb 29 birthday falls on Feb 28 in non-leap years. time.Date would
// normalize it to March 1st, which is never what we want.
func OccurrenceIn(b model.Birthday, year int, loc *time.Location) time.Time {
	day := b.Day
	if b.Month == int(time.February) && day == 29 && !isLeap(year) {
		day = 28
	}
	return time.Date(year, time.Month(b.Month), day, 0, 0, 0, 0, loc)
}

// NextOccurrence returns the next date, on or after ref's calendar date, on
// which the birthday recurs. The time-of-day of ref is ignored and the result
// is midnight in ref's location. A birthday that falls on ref's date is
// returned as is.
func NextOccurrence(b model.Birthday, ref time.Time) time.Time {
	today := dateOf(ref)
	candidate := OccurrenceIn(b, today.Year(), ref.Location())
	if candidate.Before(today) {
		candidate = OccurrenceIn(b, today.Year()+1, ref.Location())
	}
	return candidate
}

// ShiftByDaysBefore moves an occurrence date back by daysBefore calendar days,
// crossing month and year boundaries.
func ShiftByDaysBefore(occurrence time.Time, daysBefore int) time.Time {
	y, m, d := occurrence.Date()
	return time.Date(y, m, d-daysBefore, 0, 0, 0, 0, occurrence.Location())
}

// TriggerDate shifts occurrence by daysBefore. While the trigger lands before
// ref's calendar date, the following year's occurrence is used instead, so the
// returned trigger is never in the past. It returns the trigger and the
// occurrence it belongs to.
func TriggerDate(b model.Birthday, occurrence time.Time, daysBefore int, ref time.Time) (time.Time, time.Time) {
	today := dateOf(ref)
	trigger := ShiftByDaysBefore(occurrence, daysBefore)
	for trigger.Before(today) {
		occurrence = OccurrenceIn(b, occurrence.Year()+1, occurrence.Location())
		trigger = ShiftByDaysBefore(occurrence, daysBefore)
	}
	return trigger, occurrence
}

// AgeAt returns the age reached on occurrence. The boolean is false when the
// birth year is unknown or lies after the occurrence.
func AgeAt(birthYear int, occurrence time.Time) (int, bool) {
	if birthYear == 0 {
		return 0, false
	}
	age := occurrence.Year() - birthYear
	if age < 0 {
		return 0, false
	}
	return age, true
}

// atTimeOfDay combines a date with a minute-of-day in the date's location.
// Out of range minutes are clamped to the day.
func atTimeOfDay(date time.Time, minute int) time.Time {
	minute = max(0, min(minute, config.MinutesPerDay-1))
	y, m, d := date.Date()
	return time.Date(y, m, d, minute/60, minute%60, 0, 0, date.Location())
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
