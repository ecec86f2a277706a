package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopcore/order-inventory/internal/apperr"
)

type Repo struct{ DB *pgxpool.Pool }

const productColumns = `id, sku, name, price_cents, stock, active,
	COALESCE(category_id, ''), created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Stock,
		&p.Active, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) CreateProduct(ctx context.Context, p *Product) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products (id, sku, name, price_cents, stock, active, category_id)
		VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''))`,
		p.ID, p.SKU, p.Name, p.PriceCents, p.Stock, p.Active, p.CategoryID)
	if err != nil {
		return apperr.Internal("insert product", err)
	}
	return nil
}

func (r *Repo) GetProduct(ctx context.Context, id string) (*Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("product %s not found", id)
	}
	if err != nil {
		return nil, apperr.Internal("get product", err)
	}
	return p, nil
}

// ListProducts returns active products, optionally narrowed to one category.
func (r *Repo) ListProducts(ctx context.Context, categoryID string) ([]Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE active ORDER BY name`
	args := []any{}
	if categoryID != "" {
		q = `SELECT ` + productColumns + ` FROM products
			WHERE active AND category_id=$1 ORDER BY name`
		args = append(args, categoryID)
	}
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.Internal("list products", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, apperr.Internal("scan product", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("list products", err)
	}
	return out, nil
}

// UpdateProduct rewrites the mutable fields and returns the category the
// product belonged to before the write, so callers can refresh both sides
// of a category move.
func (r *Repo) UpdateProduct(ctx context.Context, p *Product) (string, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", apperr.Internal("begin product update", err)
	}
	defer tx.Rollback(ctx)

	var prev string
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(category_id, '') FROM products WHERE id=$1 FOR UPDATE`,
		p.ID).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.NotFound("product %s not found", p.ID)
	}
	if err != nil {
		return "", apperr.Internal("lock product", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE products
		SET sku=$2, name=$3, price_cents=$4, active=$5,
		    category_id=NULLIF($6,''), updated_at=now()
		WHERE id=$1`,
		p.ID, p.SKU, p.Name, p.PriceCents, p.Active, p.CategoryID); err != nil {
		return "", apperr.Internal("update product", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", apperr.Internal("commit product update", err)
	}
	return prev, nil
}

// DeleteProduct removes the row and returns its last state for event
// publication.
func (r *Repo) DeleteProduct(ctx context.Context, id string) (*Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `
		DELETE FROM products WHERE id=$1
		RETURNING `+productColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("product %s not found", id)
	}
	if err != nil {
		return nil, apperr.Internal("delete product", err)
	}
	return p, nil
}

func (r *Repo) CreateCategory(ctx context.Context, c *Category) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO categories (id, name, product_count) VALUES ($1,$2,0)`,
		c.ID, c.Name)
	if err != nil {
		return apperr.Internal("insert category", err)
	}
	return nil
}

func (r *Repo) GetCategory(ctx context.Context, id string) (*Category, error) {
	var c Category
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, product_count, created_at FROM categories WHERE id=$1`,
		id).Scan(&c.ID, &c.Name, &c.ProductCount, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("category %s not found", id)
	}
	if err != nil {
		return nil, apperr.Internal("get category", err)
	}
	return &c, nil
}

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, product_count, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, apperr.Internal("list categories", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ProductCount, &c.CreatedAt); err != nil {
			return nil, apperr.Internal("scan category", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("list categories", err)
	}
	return out, nil
}

func (r *Repo) CountActiveProducts(ctx context.Context, categoryID string) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT count(*) FROM products WHERE active AND category_id=$1`,
		categoryID).Scan(&n)
	if err != nil {
		return 0, apperr.Internal("count products", err)
	}
	return n, nil
}

func (r *Repo) SetProductCount(ctx context.Context, categoryID string, n int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE categories SET product_count=$2 WHERE id=$1`, categoryID, n)
	if err != nil {
		return apperr.Internal("set product count", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("category %s not found", categoryID)
	}
	return nil
}
