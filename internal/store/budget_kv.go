package store

import (
	"context"

	"habit-session-backend/internal/budget"
)

// BudgetKV adapts the store to budget.KV for a single device, so a budget
// clock can run directly against the database. It carries its own context
// because the KV interface is context-free by design (the engine performs no
// I/O of its own); callers should scope it to the owning view's lifetime.
type BudgetKV struct {
	ctx      context.Context
	store    Store
	deviceID string
}

// NewBudgetKV builds a KV view over the budget rows of one device.
func NewBudgetKV(ctx context.Context, s Store, deviceID string) *BudgetKV {
	return &BudgetKV{ctx: ctx, store: s, deviceID: deviceID}
}

func (b *BudgetKV) Load(key string) (int, bool, error) {
	return b.store.LoadBudget(b.ctx, b.deviceID, key)
}

func (b *BudgetKV) Store(key string, seconds int) error {
	return b.store.SaveBudget(b.ctx, b.deviceID, key, seconds)
}

var _ budget.KV = (*BudgetKV)(nil)
