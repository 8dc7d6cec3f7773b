package model

import "time"

// Batch is a numbered sub-group of an event's participants, created lazily on
// first join. Rows persist even when empty so numbering stays dense from 1.
type Batch struct {
	EventID   int64 `gorm:"primaryKey;autoIncrement:false"`
	Number    int   `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
}

// BatchMember maps one user into one of an event's batches. The
// (event_id, user_id) primary key is the atomic add-if-absent primitive:
// concurrent joins of the same user conflict instead of overwriting each
// other, and a user can never sit in two batches of one event.
type BatchMember struct {
	EventID     int64  `gorm:"primaryKey;autoIncrement:false"`
	UserID      string `gorm:"primaryKey;size:64"`
	BatchNumber int    `gorm:"not null;index"`
	CreatedAt   time.Time
}
