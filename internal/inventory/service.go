package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopcore/order-inventory/internal/apperr"
)

// Store is the persistence surface the ledger needs. *Repo is the
// Postgres implementation; tests supply an in-memory fake.
type Store interface {
	Create(ctx context.Context, rec *InventoryRecord) error
	Get(ctx context.Context, id string) (*InventoryRecord, error)
	GetBySKU(ctx context.Context, sku string) (*InventoryRecord, error)
	List(ctx context.Context) ([]InventoryRecord, error)
	ListLowStock(ctx context.Context) ([]InventoryRecord, error)
	ApplyAdjustment(ctx context.Context, id string, delta int, mv *StockMovement) (*InventoryRecord, error)
	ApplyReservation(ctx context.Context, id string, delta int, mv *StockMovement) (*InventoryRecord, error)
	Delete(ctx context.Context, id string) error
	MovementsByProduct(ctx context.Context, productID string) ([]StockMovement, error)
	MovementsByType(ctx context.Context, t MovementType) ([]StockMovement, error)
	MovementsBetween(ctx context.Context, from, to time.Time) ([]StockMovement, error)
}

type Service struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// AdjustStock applies a signed delta to current stock and records one
// immutable movement. A delta that would push the counter negative fails
// with a conflict and leaves the record untouched.
func (s *Service) AdjustStock(ctx context.Context, inventoryID string, delta int, reason, reference, actor string) (*InventoryRecord, *StockMovement, error) {
	if delta == 0 {
		return nil, nil, apperr.Validation("delta must be non-zero")
	}
	mvType := MovementIn
	qty := delta
	if delta < 0 {
		mvType = MovementOut
		qty = -delta
	}
	mv := s.newMovement(inventoryID, mvType, qty, reason, reference, actor)

	rec, err := s.store.ApplyAdjustment(ctx, inventoryID, delta, mv)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("stock adjusted",
		zap.String("inventory_id", inventoryID),
		zap.Int("delta", delta),
		zap.Int("current_stock", rec.CurrentStock),
		zap.String("status", string(rec.Status)))
	return rec, mv, nil
}

// ReserveStock holds quantity against fulfillment without touching
// current stock.
func (s *Service) ReserveStock(ctx context.Context, inventoryID string, quantity int, reason, reference, actor string) (*InventoryRecord, *StockMovement, error) {
	if quantity <= 0 {
		return nil, nil, apperr.Validation("quantity must be positive")
	}
	mv := s.newMovement(inventoryID, MovementReserved, quantity, reason, reference, actor)
	rec, err := s.store.ApplyReservation(ctx, inventoryID, quantity, mv)
	if err != nil {
		return nil, nil, err
	}
	return rec, mv, nil
}

// ReleaseStock returns a held quantity. Releasing more than is held is
// a conflict.
func (s *Service) ReleaseStock(ctx context.Context, inventoryID string, quantity int, reason, reference, actor string) (*InventoryRecord, *StockMovement, error) {
	if quantity <= 0 {
		return nil, nil, apperr.Validation("quantity must be positive")
	}
	mv := s.newMovement(inventoryID, MovementUnreserved, quantity, reason, reference, actor)
	rec, err := s.store.ApplyReservation(ctx, inventoryID, -quantity, mv)
	if err != nil {
		return nil, nil, err
	}
	return rec, mv, nil
}

func (s *Service) CreateRecord(ctx context.Context, productID, sku string, initialStock, minStock, maxStock int, location, supplier string) (*InventoryRecord, error) {
	if sku == "" || productID == "" {
		return nil, apperr.Validation("product id and sku are required")
	}
	if initialStock < 0 {
		return nil, apperr.Validation("initial stock cannot be negative")
	}
	rec := &InventoryRecord{
		ID:           uuid.NewString(),
		ProductID:    productID,
		SKU:          sku,
		CurrentStock: initialStock,
		MinStock:     minStock,
		MaxStock:     maxStock,
		Status:       DeriveStatus(initialStock, minStock),
		Location:     location,
		Supplier:     supplier,
	}
	rec.AvailableStock = Available(rec.CurrentStock, rec.ReservedStock)
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) GetRecord(ctx context.Context, id string) (*InventoryRecord, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetRecordBySKU(ctx context.Context, sku string) (*InventoryRecord, error) {
	return s.store.GetBySKU(ctx, sku)
}

func (s *Service) ListRecords(ctx context.Context) ([]InventoryRecord, error) {
	return s.store.List(ctx)
}

func (s *Service) ListLowStock(ctx context.Context) ([]InventoryRecord, error) {
	return s.store.ListLowStock(ctx)
}

// DeleteRecord removes the record and its movement history. This is the
// only path that ever deletes movements.
func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("inventory record deleted", zap.String("inventory_id", id))
	return nil
}

func (s *Service) MovementsByProduct(ctx context.Context, productID string) ([]StockMovement, error) {
	return s.store.MovementsByProduct(ctx, productID)
}

func (s *Service) MovementsByType(ctx context.Context, t MovementType) ([]StockMovement, error) {
	return s.store.MovementsByType(ctx, t)
}

func (s *Service) MovementsBetween(ctx context.Context, from, to time.Time) ([]StockMovement, error) {
	return s.store.MovementsBetween(ctx, from, to)
}

func (s *Service) newMovement(inventoryID string, t MovementType, qty int, reason, reference, actor string) *StockMovement {
	return &StockMovement{
		ID:          uuid.NewString(),
		InventoryID: inventoryID,
		Type:        t,
		Quantity:    qty,
		Reason:      reason,
		Reference:   reference,
		Actor:       actor,
		CreatedAt:   s.now().UTC(),
	}
}
