package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopcore/order-inventory/internal/apperr"
	"github.com/shopcore/order-inventory/internal/inventory"
)

type Repo struct{ DB *pgxpool.Pool }

// NextSequence bumps the per-day order counter atomically and returns
// the new value in one round trip.
func (r *Repo) NextSequence(ctx context.Context, day time.Time) (int, error) {
	var seq int
	err := r.DB.QueryRow(ctx, `
		INSERT INTO order_counters(day, seq) VALUES ($1::date, 1)
		ON CONFLICT (day) DO UPDATE SET seq = order_counters.seq + 1
		RETURNING seq`, day).Scan(&seq)
	if err != nil {
		return 0, apperr.Internal("next order sequence", err)
	}
	return seq, nil
}

func (r *Repo) NumberTaken(ctx context.Context, number string) (bool, error) {
	var taken bool
	err := r.DB.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM orders WHERE order_number=$1)`, number).Scan(&taken)
	if err != nil {
		return false, apperr.Internal("check order number", err)
	}
	return taken, nil
}

// Create persists an order in one transaction: price snapshots are read
// in-tx, each product's stock is decremented with a conditional UPDATE
// (no read-then-write), and the matching inventory record - when one
// exists for the product - is moved in the same step with an audit
// movement. Any failed guard rolls everything back.
func (r *Repo) Create(ctx context.Context, o *Order) error {
	if len(o.Items) == 0 {
		return apperr.Validation("order requires at least one item")
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.Internal("begin create order", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	rows, err := tx.Query(ctx, `
		SELECT id, price_cents, active FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return apperr.Internal("load products", err)
	}
	type productInfo struct {
		price  int64
		active bool
	}
	products := map[string]productInfo{}
	for rows.Next() {
		var id string
		var p productInfo
		if err := rows.Scan(&id, &p.price, &p.active); err != nil {
			rows.Close()
			return apperr.Internal("scan product", err)
		}
		products[id] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperr.Internal("load products", err)
	}

	var total int64
	for i, it := range o.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return apperr.NotFound("product %s not found", it.ProductID)
		}
		if !p.active {
			return apperr.Validation("product %s is inactive", it.ProductID)
		}

		ct, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $2
			WHERE id = $1 AND stock >= $2`, it.ProductID, it.Quantity)
		if err != nil {
			return apperr.Internal("decrement product stock", err)
		}
		if ct.RowsAffected() == 0 {
			return apperr.Conflict("insufficient stock for product %s", it.ProductID)
		}

		if err := adjustInventory(ctx, tx, it.ProductID, -it.Quantity, inventory.MovementOut,
			"order created", o.ID, o.UserID); err != nil {
			return err
		}

		o.Items[i].PriceCents = p.price
		total += p.price * int64(it.Quantity)
	}
	o.TotalCents = total

	_, err = tx.Exec(ctx, `
		INSERT INTO orders
			(id, order_number, user_id, status, total_cents,
			 shipping_name, shipping_phone, shipping_address, shipping_city, shipping_district,
			 payment_method, payment_status, notes, stock_restored, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,false,$14,$14)`,
		o.ID, o.OrderNumber, o.UserID, o.Status, o.TotalCents,
		o.ShippingAddress.Name, o.ShippingAddress.Phone, o.ShippingAddress.Address,
		o.ShippingAddress.City, o.ShippingAddress.District,
		o.PaymentMethod, o.PaymentStatus, o.Notes, o.CreatedAt)
	if err != nil {
		return apperr.Internal("insert order", err)
	}
	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, quantity, price_cents, size, color)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, it.ProductID, it.Quantity, it.PriceCents, it.Size, it.Color); err != nil {
			return apperr.Internal("insert order item", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Internal("commit create order", err)
	}
	return nil
}

// Cancel flips a pending order to cancelled and restores its stock, all
// under one row lock so a concurrent cancel or delete sees the final
// status, not the one it raced against.
func (r *Repo) Cancel(ctx context.Context, orderID, actor string) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, apperr.Internal("begin cancel order", err)
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, apperr.State("only pending orders can be cancelled, order is %s", o.Status)
	}

	if err := restoreItems(ctx, tx, o, "order cancelled", actor); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, stock_restored=true, updated_at=now()
		WHERE id=$1`, orderID, StatusCancelled); err != nil {
		return nil, apperr.Internal("update order status", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Internal("commit cancel order", err)
	}
	o.Status = StatusCancelled
	o.StockRestored = true
	return o, nil
}

// Delete removes a settled order. A cancelled order that somehow still
// holds its stock gets it restored first; the stock_restored flag makes
// the restore idempotent across cancel and delete.
func (r *Repo) Delete(ctx context.Context, orderID, actor string) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, apperr.Internal("begin delete order", err)
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.Deletable() {
		return nil, apperr.Conflict("only cancelled or completed orders can be deleted, order is %s", o.Status)
	}
	if o.Status == StatusCancelled && !o.StockRestored {
		if err := restoreItems(ctx, tx, o, "order deleted", actor); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, orderID); err != nil {
		return nil, apperr.Internal("delete order items", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, orderID); err != nil {
		return nil, apperr.Internal("delete order", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Internal("commit delete order", err)
	}
	return o, nil
}

// UpdateStatus moves status from -> to with the expected value in the
// WHERE clause, so a raced transition fails instead of overwriting.
func (r *Repo) UpdateStatus(ctx context.Context, orderID string, from, to Status) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2`, orderID, from, to)
	if err != nil {
		return apperr.Internal("update order status", err)
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := r.DB.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, orderID).Scan(&exists); err != nil {
			return apperr.Internal("check order", err)
		}
		if !exists {
			return apperr.NotFound("order %s not found", orderID)
		}
		return apperr.State("order %s is no longer %s", orderID, from)
	}
	return nil
}

func (r *Repo) SetPaymentStatus(ctx context.Context, orderID string, ps PaymentStatus) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_status=$2, updated_at=now() WHERE id=$1`, orderID, ps)
	if err != nil {
		return apperr.Internal("update payment status", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("order %s not found", orderID)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, orderID string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID))
	if err != nil {
		return nil, err
	}
	o.Items, err = r.loadItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, apperr.Internal("list orders", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("list orders", err)
	}
	for i := range out {
		if out[i].Items, err = r.loadItems(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

const orderColumns = `id, order_number, user_id, status, total_cents,
	shipping_name, shipping_phone, shipping_address, shipping_city, shipping_district,
	payment_method, payment_status, notes, stock_restored, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.TotalCents,
		&o.ShippingAddress.Name, &o.ShippingAddress.Phone, &o.ShippingAddress.Address,
		&o.ShippingAddress.City, &o.ShippingAddress.District,
		&o.PaymentMethod, &o.PaymentStatus, &o.Notes, &o.StockRestored,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order not found")
	}
	if err != nil {
		return nil, apperr.Internal("scan order", err)
	}
	return &o, nil
}

func (r *Repo) loadItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, quantity, price_cents, size, color
		FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, apperr.Internal("load order items", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.PriceCents, &it.Size, &it.Color); err != nil {
			return nil, apperr.Internal("scan order item", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("load order items", err)
	}
	return items, nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (*Order, error) {
	o, err := scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity, price_cents, size, color
		FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, apperr.Internal("load order items", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.PriceCents, &it.Size, &it.Color); err != nil {
			return nil, apperr.Internal("scan order item", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("load order items", err)
	}
	return o, nil
}

func restoreItems(ctx context.Context, tx pgx.Tx, o *Order, reason, actor string) error {
	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock + $2 WHERE id=$1`,
			it.ProductID, it.Quantity); err != nil {
			return apperr.Internal("restore product stock", err)
		}
		if err := adjustInventory(ctx, tx, it.ProductID, it.Quantity, inventory.MovementIn,
			reason, o.ID, actor); err != nil {
			return err
		}
	}
	return nil
}

// adjustInventory keeps the fine-grained inventory counter in step with
// the product counter inside the caller's transaction. Products without
// an inventory record (legacy flow) are skipped; an existing record that
// cannot absorb the delta fails the whole transaction so the two
// counters never diverge.
func adjustInventory(ctx context.Context, tx pgx.Tx, productID string, delta int, mvType inventory.MovementType, reason, orderID, actor string) error {
	var invID string
	var current, minStock int
	var status inventory.Status
	err := tx.QueryRow(ctx, `
		UPDATE inventory_records
		SET current_stock = current_stock + $2,
		    last_restocked = CASE WHEN $2 > 0 THEN now() ELSE last_restocked END,
		    last_sold      = CASE WHEN $2 < 0 THEN now() ELSE last_sold END,
		    updated_at = now()
		WHERE product_id = $1 AND current_stock + $2 >= 0
		RETURNING id, current_stock, min_stock, status`,
		productID, delta).Scan(&invID, &current, &minStock, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM inventory_records WHERE product_id=$1)`,
			productID).Scan(&exists); err != nil {
			return apperr.Internal("check inventory record", err)
		}
		if !exists {
			return nil
		}
		return apperr.Conflict("insufficient stock for product %s", productID)
	}
	if err != nil {
		return apperr.Internal("adjust inventory record", err)
	}

	if next := inventory.DeriveStatus(current, minStock); next != status {
		if _, err := tx.Exec(ctx,
			`UPDATE inventory_records SET status=$2 WHERE id=$1`, invID, next); err != nil {
			return apperr.Internal("update inventory status", err)
		}
	}

	qty := delta
	if qty < 0 {
		qty = -qty
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO stock_movements
			(id, product_id, inventory_id, type, quantity, reason, reference, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())`,
		uuid.NewString(), productID, invID, mvType, qty, reason, orderID, actor)
	if err != nil {
		return apperr.Internal("insert stock movement", err)
	}
	return nil
}
