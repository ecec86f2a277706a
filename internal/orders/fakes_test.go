package orders

import (
	"context"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/shopcore/order-inventory/internal/apperr"
	"github.com/shopcore/order-inventory/internal/inventory"
)

// fakeOrderStore mirrors the repo's transactional semantics in memory:
// guards fail before any mutation, and a create/cancel/delete either
// applies all of its effects or none.
type fakeOrderStore struct {
	mu          sync.Mutex
	products    map[string]*fakeProduct
	inventories map[string]*fakeInventory // keyed by product id
	movements   []inventory.StockMovement
	orders      map[string]*Order
}

type fakeProduct struct {
	priceCents int64
	active     bool
	stock      int
}

type fakeInventory struct {
	id       string
	current  int
	minStock int
	status   inventory.Status
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		products:    map[string]*fakeProduct{},
		inventories: map[string]*fakeInventory{},
		orders:      map[string]*Order{},
	}
}

func (f *fakeOrderStore) Create(_ context.Context, o *Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// validate everything before touching counters
	for _, it := range o.Items {
		p, ok := f.products[it.ProductID]
		if !ok {
			return apperr.NotFound("product %s not found", it.ProductID)
		}
		if !p.active {
			return apperr.Validation("product %s is inactive", it.ProductID)
		}
		if p.stock < it.Quantity {
			return apperr.Conflict("insufficient stock for product %s", it.ProductID)
		}
		if inv, ok := f.inventories[it.ProductID]; ok && inv.current < it.Quantity {
			return apperr.Conflict("insufficient stock for product %s", it.ProductID)
		}
	}

	var total int64
	for i, it := range o.Items {
		p := f.products[it.ProductID]
		p.stock -= it.Quantity
		f.adjustInventoryLocked(it.ProductID, -it.Quantity, inventory.MovementOut, "order created", o.ID)
		o.Items[i].PriceCents = p.priceCents
		total += p.priceCents * int64(it.Quantity)
	}
	o.TotalCents = total
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrderStore) Get(_ context.Context, orderID string) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, apperr.NotFound("order not found")
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) ListByUser(_ context.Context, userID string) ([]Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) Cancel(_ context.Context, orderID, _ string) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, apperr.NotFound("order not found")
	}
	if o.Status != StatusPending {
		return nil, apperr.State("only pending orders can be cancelled, order is %s", o.Status)
	}
	f.restoreLocked(o, "order cancelled")
	o.Status = StatusCancelled
	o.StockRestored = true
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) Delete(_ context.Context, orderID, _ string) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, apperr.NotFound("order not found")
	}
	if !o.Status.Deletable() {
		return nil, apperr.Conflict("only cancelled or completed orders can be deleted, order is %s", o.Status)
	}
	if o.Status == StatusCancelled && !o.StockRestored {
		f.restoreLocked(o, "order deleted")
	}
	delete(f.orders, orderID)
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) UpdateStatus(_ context.Context, orderID string, from, to Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return apperr.NotFound("order %s not found", orderID)
	}
	if o.Status != from {
		return apperr.State("order %s is no longer %s", orderID, from)
	}
	o.Status = to
	return nil
}

func (f *fakeOrderStore) SetPaymentStatus(_ context.Context, orderID string, ps PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return apperr.NotFound("order %s not found", orderID)
	}
	o.PaymentStatus = ps
	return nil
}

func (f *fakeOrderStore) restoreLocked(o *Order, reason string) {
	for _, it := range o.Items {
		f.products[it.ProductID].stock += it.Quantity
		f.adjustInventoryLocked(it.ProductID, it.Quantity, inventory.MovementIn, reason, o.ID)
	}
}

func (f *fakeOrderStore) adjustInventoryLocked(productID string, delta int, t inventory.MovementType, reason, orderID string) {
	inv, ok := f.inventories[productID]
	if ok {
		inv.current += delta
		inv.status = inventory.DeriveStatus(inv.current, inv.minStock)
	}
	qty := delta
	if qty < 0 {
		qty = -qty
	}
	invID := ""
	if ok {
		invID = inv.id
	}
	f.movements = append(f.movements, inventory.StockMovement{
		ProductID:   productID,
		InventoryID: invID,
		Type:        t,
		Quantity:    qty,
		Reason:      reason,
		Reference:   orderID,
		CreatedAt:   time.Now(),
	})
}

type fakeStats struct {
	mu    sync.Mutex
	fail  error
	calls []statsCall
}

type statsCall struct {
	userID string
	orders int
	spent  int64
}

func (f *fakeStats) Increment(_ context.Context, userID string, orders int, spentCents int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.calls = append(f.calls, statsCall{userID: userID, orders: orders, spent: spentCents})
	return nil
}

type fixedGenerator struct {
	numbers []string
	err     error
	i       int
}

func (g *fixedGenerator) Generate(context.Context) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	n := g.numbers[g.i%len(g.numbers)]
	g.i++
	return n, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (f *fakePublisher) Publish(_, value []byte, _ ...kafkago.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, value)
}
