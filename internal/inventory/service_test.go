package inventory

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/shopcore/order-inventory/internal/apperr"
)

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	return NewService(store, zap.NewNop()), store
}

func seedRecord(t *testing.T, svc *Service, stock, minStock int) *InventoryRecord {
	t.Helper()
	rec, err := svc.CreateRecord(context.Background(), "prod-1", "SKU-001", stock, minStock, 100, "A1", "acme")
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return rec
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		current, min int
		want         Status
	}{
		{0, 5, StatusOutOfStock},
		{3, 5, StatusLowStock},
		{5, 5, StatusLowStock},
		{6, 5, StatusInStock},
		{1, 0, StatusInStock},
	}
	for _, c := range cases {
		if got := DeriveStatus(c.current, c.min); got != c.want {
			t.Errorf("DeriveStatus(%d, %d) = %s, want %s", c.current, c.min, got, c.want)
		}
	}
}

func TestAdjustStockRecomputesDerivedFields(t *testing.T) {
	svc, _ := newTestService(t)
	rec := seedRecord(t, svc, 10, 3)
	ctx := context.Background()

	if _, _, err := svc.ReserveStock(ctx, rec.ID, 4, "order hold", "", "u1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	got, mv, err := svc.AdjustStock(ctx, rec.ID, -7, "sale", "ord-1", "u1")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if got.CurrentStock != 3 {
		t.Errorf("current stock = %d, want 3", got.CurrentStock)
	}
	// reserved 4 > current 3, derived availability clamps at zero
	if got.AvailableStock != 0 {
		t.Errorf("available stock = %d, want 0", got.AvailableStock)
	}
	if got.Status != StatusLowStock {
		t.Errorf("status = %s, want %s", got.Status, StatusLowStock)
	}
	if mv.Type != MovementOut || mv.Quantity != 7 {
		t.Errorf("movement = %s/%d, want out/7", mv.Type, mv.Quantity)
	}
}

func TestAdjustStockRoundTrip(t *testing.T) {
	svc, store := newTestService(t)
	rec := seedRecord(t, svc, 8, 2)
	ctx := context.Background()

	if _, _, err := svc.AdjustStock(ctx, rec.ID, 5, "restock", "", "u1"); err != nil {
		t.Fatalf("adjust up: %v", err)
	}
	got, _, err := svc.AdjustStock(ctx, rec.ID, -5, "correction", "", "u1")
	if err != nil {
		t.Fatalf("adjust down: %v", err)
	}
	if got.CurrentStock != 8 {
		t.Errorf("current stock = %d, want original 8", got.CurrentStock)
	}

	ms, err := store.MovementsByProduct(ctx, "prod-1")
	if err != nil {
		t.Fatalf("movements: %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("got %d movements, want 2", len(ms))
	}
	if sum := ms[0].Signed() + ms[1].Signed(); sum != 0 {
		t.Errorf("signed movement sum = %d, want 0", sum)
	}
}

func TestAdjustStockInsufficientLeavesRecordUntouched(t *testing.T) {
	svc, store := newTestService(t)
	rec := seedRecord(t, svc, 4, 1)
	ctx := context.Background()

	_, _, err := svc.AdjustStock(ctx, rec.ID, -5, "sale", "", "u1")
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}

	got, err := svc.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CurrentStock != 4 {
		t.Errorf("current stock = %d, want untouched 4", got.CurrentStock)
	}
	if len(store.movements) != 0 {
		t.Errorf("got %d movements, want none on failed adjustment", len(store.movements))
	}
}

func TestAdjustStockDrainToZero(t *testing.T) {
	svc, _ := newTestService(t)
	rec := seedRecord(t, svc, 2, 1)

	got, _, err := svc.AdjustStock(context.Background(), rec.ID, -2, "sale", "", "u1")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if got.Status != StatusOutOfStock {
		t.Errorf("status = %s, want %s", got.Status, StatusOutOfStock)
	}
}

func TestAdjustStockValidation(t *testing.T) {
	svc, _ := newTestService(t)
	rec := seedRecord(t, svc, 2, 1)

	_, _, err := svc.AdjustStock(context.Background(), rec.ID, 0, "noop", "", "u1")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("err = %v, want validation", err)
	}
	_, _, err = svc.AdjustStock(context.Background(), "missing", -1, "sale", "", "u1")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestReserveAndRelease(t *testing.T) {
	svc, _ := newTestService(t)
	rec := seedRecord(t, svc, 10, 2)
	ctx := context.Background()

	held, mv, err := svc.ReserveStock(ctx, rec.ID, 3, "checkout hold", "ord-9", "u1")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if held.CurrentStock != 10 || held.ReservedStock != 3 || held.AvailableStock != 7 {
		t.Errorf("after reserve: current=%d reserved=%d available=%d",
			held.CurrentStock, held.ReservedStock, held.AvailableStock)
	}
	if mv.Type != MovementReserved {
		t.Errorf("movement type = %s, want reserved", mv.Type)
	}

	_, _, err = svc.ReleaseStock(ctx, rec.ID, 5, "over-release", "", "u1")
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("over-release err = %v, want conflict", err)
	}

	freed, mv, err := svc.ReleaseStock(ctx, rec.ID, 3, "hold released", "", "u1")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if freed.ReservedStock != 0 || freed.AvailableStock != 10 {
		t.Errorf("after release: reserved=%d available=%d", freed.ReservedStock, freed.AvailableStock)
	}
	if mv.Type != MovementUnreserved {
		t.Errorf("movement type = %s, want unreserved", mv.Type)
	}
}

func TestDeleteRecordCascadesMovements(t *testing.T) {
	svc, store := newTestService(t)
	rec := seedRecord(t, svc, 5, 1)
	ctx := context.Background()

	if _, _, err := svc.AdjustStock(ctx, rec.ID, -1, "sale", "", "u1"); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if err := svc.DeleteRecord(ctx, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.movements) != 0 {
		t.Errorf("got %d movements after cascade delete, want 0", len(store.movements))
	}
	if _, err := svc.GetRecord(ctx, rec.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("get after delete = %v, want not found", err)
	}
}
