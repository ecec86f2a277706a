package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopcore/order-inventory/internal/apperr"
)

// fakeStore reproduces the repo's conditional-update semantics in memory:
// the guard and the write happen under one lock, a failed guard mutates
// nothing, and every applied delta records exactly one movement.
type fakeStore struct {
	mu        sync.Mutex
	records   map[string]*InventoryRecord
	movements []StockMovement
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*InventoryRecord{}}
}

func (f *fakeStore) Create(_ context.Context, rec *InventoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*InventoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, apperr.NotFound("inventory record %s not found", id)
	}
	cp := *rec
	cp.AvailableStock = Available(cp.CurrentStock, cp.ReservedStock)
	return &cp, nil
}

func (f *fakeStore) GetBySKU(_ context.Context, sku string) (*InventoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.SKU == sku {
			cp := *rec
			cp.AvailableStock = Available(cp.CurrentStock, cp.ReservedStock)
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("inventory record for sku %s not found", sku)
}

func (f *fakeStore) List(_ context.Context) ([]InventoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []InventoryRecord
	for _, rec := range f.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (f *fakeStore) ListLowStock(_ context.Context) ([]InventoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []InventoryRecord
	for _, rec := range f.records {
		if rec.Status == StatusLowStock || rec.Status == StatusOutOfStock {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeStore) ApplyAdjustment(_ context.Context, id string, delta int, mv *StockMovement) (*InventoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, apperr.NotFound("inventory record %s not found", id)
	}
	if rec.CurrentStock+delta < 0 {
		return nil, apperr.Conflict("insufficient stock")
	}
	rec.CurrentStock += delta
	rec.Status = DeriveStatus(rec.CurrentStock, rec.MinStock)
	now := time.Now()
	if delta > 0 {
		rec.LastRestocked = &now
	} else {
		rec.LastSold = &now
	}
	mv.ProductID = rec.ProductID
	f.movements = append(f.movements, *mv)
	cp := *rec
	cp.AvailableStock = Available(cp.CurrentStock, cp.ReservedStock)
	return &cp, nil
}

func (f *fakeStore) ApplyReservation(_ context.Context, id string, delta int, mv *StockMovement) (*InventoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, apperr.NotFound("inventory record %s not found", id)
	}
	if rec.ReservedStock+delta < 0 {
		return nil, apperr.Conflict("release exceeds reserved stock")
	}
	rec.ReservedStock += delta
	mv.ProductID = rec.ProductID
	f.movements = append(f.movements, *mv)
	cp := *rec
	cp.AvailableStock = Available(cp.CurrentStock, cp.ReservedStock)
	return &cp, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return apperr.NotFound("inventory record %s not found", id)
	}
	delete(f.records, id)
	kept := f.movements[:0]
	for _, m := range f.movements {
		if m.InventoryID != id {
			kept = append(kept, m)
		}
	}
	f.movements = kept
	return nil
}

func (f *fakeStore) MovementsByProduct(_ context.Context, productID string) ([]StockMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []StockMovement
	for _, m := range f.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (f *fakeStore) MovementsByType(_ context.Context, t MovementType) ([]StockMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []StockMovement
	for _, m := range f.movements {
		if m.Type == t {
			out = append(out, m)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (f *fakeStore) MovementsBetween(_ context.Context, from, to time.Time) ([]StockMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []StockMovement
	for _, m := range f.movements {
		if !m.CreatedAt.Before(from) && m.CreatedAt.Before(to) {
			out = append(out, m)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(ms []StockMovement) {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].CreatedAt.After(ms[j].CreatedAt)
	})
}
