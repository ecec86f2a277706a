package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopcore/order-inventory/internal/apperr"
)

type Repo struct{ DB *pgxpool.Pool }

const recordColumns = `id, product_id, sku, current_stock, min_stock, max_stock,
	reserved_stock, status, location, supplier, last_restocked, last_sold,
	created_at, updated_at`

func scanRecord(row pgx.Row) (*InventoryRecord, error) {
	var r InventoryRecord
	err := row.Scan(&r.ID, &r.ProductID, &r.SKU, &r.CurrentStock, &r.MinStock,
		&r.MaxStock, &r.ReservedStock, &r.Status, &r.Location, &r.Supplier,
		&r.LastRestocked, &r.LastSold, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.AvailableStock = Available(r.CurrentStock, r.ReservedStock)
	return &r, nil
}

func (r *Repo) Create(ctx context.Context, rec *InventoryRecord) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO inventory_records
			(id, product_id, sku, current_stock, min_stock, max_stock,
			 reserved_stock, status, location, supplier)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rec.ID, rec.ProductID, rec.SKU, rec.CurrentStock, rec.MinStock,
		rec.MaxStock, rec.ReservedStock, rec.Status, rec.Location, rec.Supplier)
	if err != nil {
		return apperr.Internal("insert inventory record", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*InventoryRecord, error) {
	rec, err := scanRecord(r.DB.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM inventory_records WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("inventory record %s not found", id)
	}
	if err != nil {
		return nil, apperr.Internal("get inventory record", err)
	}
	return rec, nil
}

func (r *Repo) GetBySKU(ctx context.Context, sku string) (*InventoryRecord, error) {
	rec, err := scanRecord(r.DB.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM inventory_records WHERE sku=$1`, sku))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("inventory record for sku %s not found", sku)
	}
	if err != nil {
		return nil, apperr.Internal("get inventory record by sku", err)
	}
	return rec, nil
}

func (r *Repo) List(ctx context.Context) ([]InventoryRecord, error) {
	return r.list(ctx, `SELECT `+recordColumns+` FROM inventory_records ORDER BY sku`)
}

func (r *Repo) ListLowStock(ctx context.Context) ([]InventoryRecord, error) {
	return r.list(ctx, `SELECT `+recordColumns+` FROM inventory_records
		WHERE status IN ('low_stock','out_of_stock') ORDER BY sku`)
}

func (r *Repo) list(ctx context.Context, q string, args ...any) ([]InventoryRecord, error) {
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.Internal("list inventory records", err)
	}
	defer rows.Close()

	var out []InventoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, apperr.Internal("scan inventory record", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("list inventory records", err)
	}
	return out, nil
}

// ApplyAdjustment moves current_stock by delta and records the movement in
// one transaction. The UPDATE carries the non-negative guard so the check
// and the write are a single round trip.
func (r *Repo) ApplyAdjustment(ctx context.Context, id string, delta int, mv *StockMovement) (*InventoryRecord, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, apperr.Internal("begin adjustment", err)
	}
	defer tx.Rollback(ctx)

	rec, err := scanRecord(tx.QueryRow(ctx, `
		UPDATE inventory_records
		SET current_stock = current_stock + $2,
		    last_restocked = CASE WHEN $2 > 0 THEN now() ELSE last_restocked END,
		    last_sold      = CASE WHEN $2 < 0 THEN now() ELSE last_sold END,
		    updated_at = now()
		WHERE id = $1 AND current_stock + $2 >= 0
		RETURNING `+recordColumns, id, delta))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.classifyMiss(ctx, id)
	}
	if err != nil {
		return nil, apperr.Internal("adjust stock", err)
	}

	if next := DeriveStatus(rec.CurrentStock, rec.MinStock); next != rec.Status {
		if _, err := tx.Exec(ctx,
			`UPDATE inventory_records SET status=$2 WHERE id=$1`, id, next); err != nil {
			return nil, apperr.Internal("update stock status", err)
		}
		rec.Status = next
	}

	mv.ProductID = rec.ProductID
	if err := insertMovement(ctx, tx, mv); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Internal("commit adjustment", err)
	}
	return rec, nil
}

// ApplyReservation moves reserved_stock by delta, leaving current_stock
// untouched. Releasing more than is held fails the guard.
func (r *Repo) ApplyReservation(ctx context.Context, id string, delta int, mv *StockMovement) (*InventoryRecord, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, apperr.Internal("begin reservation", err)
	}
	defer tx.Rollback(ctx)

	rec, err := scanRecord(tx.QueryRow(ctx, `
		UPDATE inventory_records
		SET reserved_stock = reserved_stock + $2, updated_at = now()
		WHERE id = $1 AND reserved_stock + $2 >= 0
		RETURNING `+recordColumns, id, delta))
	if errors.Is(err, pgx.ErrNoRows) {
		if miss := r.classifyMiss(ctx, id); apperr.IsKind(miss, apperr.KindNotFound) {
			return nil, miss
		}
		return nil, apperr.Conflict("release exceeds reserved stock")
	}
	if err != nil {
		return nil, apperr.Internal("adjust reserved stock", err)
	}

	mv.ProductID = rec.ProductID
	if err := insertMovement(ctx, tx, mv); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Internal("commit reservation", err)
	}
	return rec, nil
}

// classifyMiss tells an absent record apart from a failed stock guard.
func (r *Repo) classifyMiss(ctx context.Context, id string) error {
	var exists bool
	err := r.DB.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM inventory_records WHERE id=$1)`, id).Scan(&exists)
	if err != nil {
		return apperr.Internal("check inventory record", err)
	}
	if !exists {
		return apperr.NotFound("inventory record %s not found", id)
	}
	return apperr.Conflict("insufficient stock")
}

// Delete removes a record and cascades its movement history.
func (r *Repo) Delete(ctx context.Context, id string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.Internal("begin delete", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM stock_movements WHERE inventory_id=$1`, id); err != nil {
		return apperr.Internal("delete movements", err)
	}
	ct, err := tx.Exec(ctx, `DELETE FROM inventory_records WHERE id=$1`, id)
	if err != nil {
		return apperr.Internal("delete inventory record", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("inventory record %s not found", id)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Internal("commit delete", err)
	}
	return nil
}

func insertMovement(ctx context.Context, tx pgx.Tx, mv *StockMovement) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_movements
			(id, product_id, inventory_id, type, quantity, reason, reference, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		mv.ID, mv.ProductID, mv.InventoryID, mv.Type, mv.Quantity,
		mv.Reason, mv.Reference, mv.Actor, mv.CreatedAt)
	if err != nil {
		return apperr.Internal("insert stock movement", err)
	}
	return nil
}

const movementColumns = `id, product_id, inventory_id, type, quantity, reason,
	reference, actor, created_at`

func (r *Repo) MovementsByProduct(ctx context.Context, productID string) ([]StockMovement, error) {
	return r.movements(ctx, `SELECT `+movementColumns+` FROM stock_movements
		WHERE product_id=$1 ORDER BY created_at DESC`, productID)
}

func (r *Repo) MovementsByType(ctx context.Context, t MovementType) ([]StockMovement, error) {
	return r.movements(ctx, `SELECT `+movementColumns+` FROM stock_movements
		WHERE type=$1 ORDER BY created_at DESC`, t)
}

func (r *Repo) MovementsBetween(ctx context.Context, from, to time.Time) ([]StockMovement, error) {
	return r.movements(ctx, `SELECT `+movementColumns+` FROM stock_movements
		WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at DESC`, from, to)
}

func (r *Repo) movements(ctx context.Context, q string, args ...any) ([]StockMovement, error) {
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.Internal("list stock movements", err)
	}
	defer rows.Close()

	var out []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.InventoryID, &m.Type,
			&m.Quantity, &m.Reason, &m.Reference, &m.Actor, &m.CreatedAt); err != nil {
			return nil, apperr.Internal("scan stock movement", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("list stock movements", err)
	}
	return out, nil
}
