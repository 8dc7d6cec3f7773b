package model

import "time"

// BudgetEntry is the authoritative remaining-seconds counter for one device
// and session-day key. Entries for older keys are garbage and are purged by
// the rollover job.
type BudgetEntry struct {
	DeviceID         string `gorm:"primaryKey;size:128"`
	DayKey           string `gorm:"primaryKey;size:16"`
	RemainingSeconds int    `gorm:"not null"`
	UpdatedAt        time.Time
}
