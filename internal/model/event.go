package model

import (
	"time"

	"habit-session-backend/internal/schedule"
)

// Event is an organizer-defined practice event. The recurrence rule is
// flattened into columns; the schedule package owns its semantics. An event
// is mutable only by its organizer and only while no occurrence is live;
// edits that change the schedule are expected to be saved as a whole row.
type Event struct {
	ID        int64     `gorm:"primaryKey"`
	Title     string    `gorm:"size:256;not null"`
	CreatedBy string    `gorm:"size:64;not null;index"`
	StartAt   time.Time `gorm:"not null"`

	ArrivalSeconds  int `gorm:"not null"`
	PracticeSeconds int `gorm:"not null"`
	CloseSeconds    int `gorm:"not null"`

	RecurrenceKind     string `gorm:"size:32;not null"`
	RecurrenceInterval int    `gorm:"not null;default:0"`
	DaysOfWeekMask     uint8  `gorm:"not null;default:0"`
	DayOfMonth         int    `gorm:"not null;default:0"`
	Ordinal            int    `gorm:"not null;default:0"`
	Weekday            int    `gorm:"not null;default:0"`

	CapacityPerBatch int  `gorm:"not null"`
	OverflowActive   bool `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Batches []Batch `gorm:"foreignKey:EventID"`
}

// Rule reconstructs the recurrence rule from the flattened columns.
func (e *Event) Rule() schedule.Rule {
	return schedule.Rule{
		Kind:       schedule.Kind(e.RecurrenceKind),
		Interval:   e.RecurrenceInterval,
		DaysOfWeek: e.DaysOfWeekMask,
		DayOfMonth: e.DayOfMonth,
		Ordinal:    e.Ordinal,
		Weekday:    time.Weekday(e.Weekday),
	}
}

// Definition is the scheduling engine's view of the event.
func (e *Event) Definition() schedule.Definition {
	return schedule.Definition{
		Start:    e.StartAt,
		Arrival:  time.Duration(e.ArrivalSeconds) * time.Second,
		Practice: time.Duration(e.PracticeSeconds) * time.Second,
		Close:    time.Duration(e.CloseSeconds) * time.Second,
		Rule:     e.Rule(),
	}
}
