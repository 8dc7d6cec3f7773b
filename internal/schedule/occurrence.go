package schedule

import "time"

// maxRuleSteps bounds the forward stepping loop. A well-formed rule reaches
// any realistic as-of instant in far fewer steps; hitting the cap means the
// rule failed to advance and is reported as "no next occurrence".
const maxRuleSteps = 1000

// Definition is the scheduling view of an event: an anchor instant, three
// phase durations and a recurrence rule.
type Definition struct {
	Start    time.Time
	Arrival  time.Duration
	Practice time.Duration
	Close    time.Duration
	Rule     Rule
}

// Total is the full length of one occurrence.
func (d Definition) Total() time.Duration {
	return d.Arrival + d.Practice + d.Close
}

// Occurrence is one concrete instance of a possibly-recurring event. It is
// derived on demand, never stored.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// NextOccurrence returns the earliest occurrence whose end is strictly after
// asOf: the occurrence currently in progress, or the next one to start. The
// second return value is false when no such occurrence exists (a finished
// non-recurring event, or a rule that failed to advance within maxRuleSteps).
//
// The function is pure: the same (d, asOf) always yields the same result.
func NextOccurrence(d Definition, asOf time.Time) (Occurrence, bool) {
	total := d.Total()

	if !d.Rule.Recurring() {
		occ := Occurrence{Start: d.Start, End: d.Start.Add(total)}
		if occ.End.After(asOf) {
			return occ, true
		}
		return Occurrence{}, false
	}

	if d.Start.After(asOf) {
		return Occurrence{Start: d.Start, End: d.Start.Add(total)}, true
	}

	cursor := d.Start
	for i := 0; i < maxRuleSteps; i++ {
		if start, ok := d.Rule.occurrenceAt(cursor); ok && !start.Before(d.Start) {
			if end := start.Add(total); end.After(asOf) {
				return Occurrence{Start: start, End: end}, true
			}
		}
		next := d.Rule.advance(cursor)
		if !next.After(cursor) {
			break
		}
		cursor = next
	}
	return Occurrence{}, false
}

// IsLive reports whether an occurrence of d is in progress at asOf.
func IsLive(d Definition, asOf time.Time) bool {
	occ, ok := NextOccurrence(d, asOf)
	if !ok {
		return false
	}
	return !asOf.Before(occ.Start) && !asOf.After(occ.End)
}

// occurrenceAt maps a cursor instant to the occurrence start it stands for.
// For daily and weekly rules the cursor is the start itself. For monthly
// rules the cursor marks a month (at the anchor time-of-day) and the start is
// located within it; ok is false when the month has no matching slot.
func (r Rule) occurrenceAt(cursor time.Time) (time.Time, bool) {
	switch r.Kind {
	case KindDaily, KindWeekly:
		return cursor, true
	case KindMonthlyDate:
		year, month, _ := cursor.Date()
		day := r.DayOfMonth
		if last := daysInMonth(year, month); day > last {
			day = last
		}
		return timeOfDayOn(cursor, year, month, day), true
	case KindMonthlyWeekday:
		year, month, _ := cursor.Date()
		day, ok := nthWeekdayOfMonth(year, month, r.Ordinal, r.Weekday)
		if !ok {
			return time.Time{}, false
		}
		return timeOfDayOn(cursor, year, month, day), true
	}
	return time.Time{}, false
}

// advance moves the cursor one rule interval forward, preserving the anchor
// time-of-day. Monthly cursors land on the 1st of the target month so that
// occurrenceAt can clamp or locate the real day.
func (r Rule) advance(cursor time.Time) time.Time {
	switch r.Kind {
	case KindDaily:
		return cursor.AddDate(0, 0, r.Interval)
	case KindWeekly:
		return cursor.AddDate(0, 0, 7*r.Interval)
	case KindMonthlyDate, KindMonthlyWeekday:
		year, month, _ := cursor.Date()
		return timeOfDayOn(cursor, year, month+time.Month(r.Interval), 1)
	}
	return cursor
}

// timeOfDayOn places src's clock time onto the given date. Month values
// outside 1..12 normalize per the time package.
func timeOfDayOn(src time.Time, year int, month time.Month, day int) time.Time {
	hour, minute, sec := src.Clock()
	return time.Date(year, month, day, hour, minute, sec, src.Nanosecond(), src.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// nthWeekdayOfMonth finds the day-of-month of the ordinal-th weekday, or the
// last one when ordinal is OrdinalLast. ok is false when the month holds no
// such slot, which makes the evaluator skip the month rather than clamp.
func nthWeekdayOfMonth(year int, month time.Month, ordinal int, weekday time.Weekday) (int, bool) {
	last := daysInMonth(year, month)
	if ordinal == OrdinalLast {
		lastWeekday := time.Date(year, month, last, 0, 0, 0, 0, time.UTC).Weekday()
		return last - int((lastWeekday-weekday+7)%7), true
	}
	firstWeekday := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
	day := 1 + int((weekday-firstWeekday+7)%7) + 7*(ordinal-1)
	if day > last {
		return 0, false
	}
	return day, true
}
