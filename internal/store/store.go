package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"habit-session-backend/internal/batch"
	"habit-session-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	CreateEvent(ctx context.Context, ev *model.Event) error
	GetEvent(ctx context.Context, id int64) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	SaveEvent(ctx context.Context, ev *model.Event) error
	DeleteEvent(ctx context.Context, id int64) error

	BatchSnapshots(ctx context.Context, eventID int64) ([]batch.Snapshot, error)
	JoinBatch(ctx context.Context, eventID int64, number int, userID string, limit int) (int, error)
	SetOverflowActive(ctx context.Context, eventID int64, active bool) error

	LoadBudget(ctx context.Context, deviceID, dayKey string) (int, bool, error)
	SaveBudget(ctx context.Context, deviceID, dayKey string, seconds int) error
	PurgeBudgetsBefore(ctx context.Context, dayKey string) (int64, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) CreateEvent(ctx context.Context, ev *model.Event) error {
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (s *gormStore) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	var ev model.Event
	err := s.db.WithContext(ctx).First(&ev, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %d: %w", id, err)
	}
	return &ev, nil
}

func (s *gormStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	var events []model.Event
	if err := s.db.WithContext(ctx).Order("start_at").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

func (s *gormStore) SaveEvent(ctx context.Context, ev *model.Event) error {
	if err := s.db.WithContext(ctx).Save(ev).Error; err != nil {
		return fmt.Errorf("failed to save event %d: %w", ev.ID, err)
	}
	return nil
}

// DeleteEvent removes the event together with its batches and memberships.
func (s *gormStore) DeleteEvent(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&model.BatchMember{}).Error; err != nil {
			return fmt.Errorf("failed to delete batch members of event %d: %w", id, err)
		}
		if err := tx.Where("event_id = ?", id).Delete(&model.Batch{}).Error; err != nil {
			return fmt.Errorf("failed to delete batches of event %d: %w", id, err)
		}
		res := tx.Delete(&model.Event{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete event %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// BatchSnapshots reads the event's batches, including empty ones, in
// ascending batch-number order.
func (s *gormStore) BatchSnapshots(ctx context.Context, eventID int64) ([]batch.Snapshot, error) {
	var batches []model.Batch
	if err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("number").
		Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("failed to load batches of event %d: %w", eventID, err)
	}

	var members []model.BatchMember
	if err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to load members of event %d: %w", eventID, err)
	}

	byNumber := make(map[int][]string)
	for _, m := range members {
		byNumber[m.BatchNumber] = append(byNumber[m.BatchNumber], m.UserID)
	}

	snapshots := make([]batch.Snapshot, 0, len(batches))
	for _, b := range batches {
		snapshots = append(snapshots, batch.Snapshot{
			Number:  b.Number,
			Members: byNumber[b.Number],
		})
	}
	return snapshots, nil
}

// JoinBatch adds userID to the given batch if it still has room under limit.
// The batch row is locked for the capacity re-check, so two concurrent
// joiners cannot both take the last slot; the loser gets ErrBatchFull and is
// expected to re-evaluate against a fresh snapshot. Joining is idempotent:
// a user already in some batch of the event keeps their batch.
func (s *gormStore) JoinBatch(ctx context.Context, eventID int64, number int, userID string, limit int) (int, error) {
	var joined int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.BatchMember
		err := tx.Where("event_id = ? AND user_id = ?", eventID, userID).First(&existing).Error
		if err == nil {
			joined = existing.BatchNumber
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check membership: %w", err)
		}

		// Create the batch row lazily, then lock it for the capacity check.
		row := model.Batch{EventID: eventID, Number: number}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to ensure batch %d/%d: %w", eventID, number, err)
		}
		var locked model.Batch
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("event_id = ? AND number = ?", eventID, number).
			First(&locked).Error; err != nil {
			return fmt.Errorf("failed to lock batch %d/%d: %w", eventID, number, err)
		}

		var count int64
		if err := tx.Model(&model.BatchMember{}).
			Where("event_id = ? AND batch_number = ?", eventID, number).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count batch members: %w", err)
		}
		if int(count) >= limit {
			return ErrBatchFull
		}

		member := model.BatchMember{EventID: eventID, UserID: userID, BatchNumber: number}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member)
		if res.Error != nil {
			return fmt.Errorf("failed to add batch member: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Same user raced themselves in; adopt the winning row.
			if err := tx.Where("event_id = ? AND user_id = ?", eventID, userID).First(&existing).Error; err != nil {
				return fmt.Errorf("failed to re-read membership: %w", err)
			}
			joined = existing.BatchNumber
			return nil
		}
		joined = number
		return nil
	})
	if err != nil {
		return 0, err
	}
	return joined, nil
}

func (s *gormStore) SetOverflowActive(ctx context.Context, eventID int64, active bool) error {
	res := s.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("id = ?", eventID).
		Update("overflow_active", active)
	if res.Error != nil {
		return fmt.Errorf("failed to update overflow flag of event %d: %w", eventID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) LoadBudget(ctx context.Context, deviceID, dayKey string) (int, bool, error) {
	var entry model.BudgetEntry
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND day_key = ?", deviceID, dayKey).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load budget %s/%s: %w", deviceID, dayKey, err)
	}
	return entry.RemainingSeconds, true, nil
}

func (s *gormStore) SaveBudget(ctx context.Context, deviceID, dayKey string, seconds int) error {
	entry := model.BudgetEntry{
		DeviceID:         deviceID,
		DayKey:           dayKey,
		RemainingSeconds: seconds,
		UpdatedAt:        time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}, {Name: "day_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"remaining_seconds", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to save budget %s/%s: %w", deviceID, dayKey, err)
	}
	return nil
}

// PurgeBudgetsBefore deletes entries for session-day keys older than dayKey.
// Keys are ISO dates, so lexicographic order is chronological order.
func (s *gormStore) PurgeBudgetsBefore(ctx context.Context, dayKey string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("day_key < ?", dayKey).
		Delete(&model.BudgetEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge stale budgets: %w", res.Error)
	}
	return res.RowsAffected, nil
}
