package inventory

import "time"

type Status string

const (
	StatusInStock      Status = "in_stock"
	StatusLowStock     Status = "low_stock"
	StatusOutOfStock   Status = "out_of_stock"
	StatusDiscontinued Status = "discontinued"
)

type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementAdjustment MovementType = "adjustment"
	MovementReserved   MovementType = "reserved"
	MovementUnreserved MovementType = "unreserved"
	MovementTransfer   MovementType = "transfer"
)

// InventoryRecord tracks one SKU's stock counters. AvailableStock is
// derived, never stored.
type InventoryRecord struct {
	ID             string     `json:"id"`
	ProductID      string     `json:"product_id"`
	SKU            string     `json:"sku"`
	CurrentStock   int        `json:"current_stock"`
	MinStock       int        `json:"min_stock"`
	MaxStock       int        `json:"max_stock"`
	ReservedStock  int        `json:"reserved_stock"`
	AvailableStock int        `json:"available_stock"`
	Status         Status     `json:"status"`
	Location       string     `json:"location"`
	Supplier       string     `json:"supplier"`
	LastRestocked  *time.Time `json:"last_restocked,omitempty"`
	LastSold       *time.Time `json:"last_sold,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// StockMovement is the immutable audit record of one stock delta.
// Quantity is always a positive magnitude; Type carries the direction.
type StockMovement struct {
	ID          string       `json:"id"`
	ProductID   string       `json:"product_id"`
	InventoryID string       `json:"inventory_id"`
	Type        MovementType `json:"type"`
	Quantity    int          `json:"quantity"`
	Reason      string       `json:"reason"`
	Reference   string       `json:"reference,omitempty"`
	Actor       string       `json:"actor"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Signed returns the movement's quantity with direction applied.
func (m *StockMovement) Signed() int {
	switch m.Type {
	case MovementOut, MovementReserved:
		return -m.Quantity
	default:
		return m.Quantity
	}
}

// DeriveStatus recomputes the stock status after a mutation.
func DeriveStatus(current, min int) Status {
	switch {
	case current == 0:
		return StatusOutOfStock
	case current <= min:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// Available computes the sellable quantity; holds never push it below zero.
func Available(current, reserved int) int {
	if a := current - reserved; a > 0 {
		return a
	}
	return 0
}
