package schedule

import (
	"fmt"
	"time"
)

// Kind identifies the recurrence pattern of an event.
type Kind string

const (
	KindNone           Kind = "none"
	KindDaily          Kind = "daily"
	KindWeekly         Kind = "weekly"
	KindMonthlyDate    Kind = "monthly_date"
	KindMonthlyWeekday Kind = "monthly_weekday"
)

// OrdinalLast selects the last occurrence of a weekday in a month.
const OrdinalLast = -1

// Rule describes how an event repeats. Interval counts days, weeks or months
// depending on Kind.
//
// DaysOfWeek is a bitmask with bit 0 = Sunday. It is validated and stored for
// display, but the weekly evaluator advances whole weeks from the anchor day
// rather than enumerating every flagged weekday within the week.
type Rule struct {
	Kind       Kind
	Interval   int
	DaysOfWeek uint8
	DayOfMonth int
	Ordinal    int
	Weekday    time.Weekday
}

// Validate rejects malformed rules before they can reach the evaluator.
func (r Rule) Validate() error {
	switch r.Kind {
	case KindNone, "":
		return nil
	case KindDaily:
		if r.Interval < 1 {
			return fmt.Errorf("daily rule: interval %d must be >= 1", r.Interval)
		}
	case KindWeekly:
		if r.Interval < 1 {
			return fmt.Errorf("weekly rule: interval %d must be >= 1", r.Interval)
		}
		if r.DaysOfWeek&^0x7f != 0 {
			return fmt.Errorf("weekly rule: days-of-week mask %#x has bits outside Sunday..Saturday", r.DaysOfWeek)
		}
	case KindMonthlyDate:
		if r.Interval < 1 {
			return fmt.Errorf("monthly rule: interval %d must be >= 1", r.Interval)
		}
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return fmt.Errorf("monthly rule: day-of-month %d out of range 1..31", r.DayOfMonth)
		}
	case KindMonthlyWeekday:
		if r.Interval < 1 {
			return fmt.Errorf("monthly rule: interval %d must be >= 1", r.Interval)
		}
		if (r.Ordinal < 1 || r.Ordinal > 4) && r.Ordinal != OrdinalLast {
			return fmt.Errorf("monthly rule: ordinal %d must be 1..4 or -1", r.Ordinal)
		}
		if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
			return fmt.Errorf("monthly rule: weekday %d out of range 0..6", r.Weekday)
		}
	default:
		return fmt.Errorf("unknown recurrence kind %q", r.Kind)
	}
	return nil
}

// Recurring reports whether the rule produces more than one occurrence.
func (r Rule) Recurring() bool {
	return r.Kind != KindNone && r.Kind != ""
}

// MaskFromDays builds a DaysOfWeek bitmask from weekday numbers (0 = Sunday).
func MaskFromDays(days []int) (uint8, error) {
	var mask uint8
	for _, d := range days {
		if d < 0 || d > 6 {
			return 0, fmt.Errorf("day-of-week %d out of range 0..6", d)
		}
		mask |= 1 << uint(d)
	}
	return mask, nil
}

// Days expands the DaysOfWeek bitmask back into weekday numbers.
func (r Rule) Days() []int {
	var days []int
	for d := 0; d < 7; d++ {
		if r.DaysOfWeek&(1<<uint(d)) != 0 {
			days = append(days, d)
		}
	}
	return days
}
