package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/digitalstore/api/internal/domain"
	pg "github.com/digitalstore/api/internal/platform/postgres"
	"github.com/digitalstore/api/internal/repositories"
)

// ProductRepository persists the catalog in the `products` table.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository wraps a pgx pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

const productColumns = `
	id, slug, title, description,
	price_usd, price_pen, image, category,
	sort_order, in_stock, is_active,
	created_at, updated_at`

// ListActive returns the public catalog ordered by sort order.
func (r *ProductRepository) ListActive(ctx context.Context) ([]domain.Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE is_active ORDER BY sort_order, created_at`)
}

// List returns every product for the admin panel, inactive ones included.
func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products ORDER BY sort_order, created_at`)
}

func (r *ProductRepository) list(ctx context.Context, query string) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Get loads one product.
func (r *ProductRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if err != nil {
		if pg.IsNotFound(err) {
			return domain.Product{}, repositories.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// Create inserts a product and fills in the generated id and timestamps.
func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO products (
			slug, title, description,
			price_usd, price_pen, image, category,
			sort_order, in_stock, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		product.Slug, product.Title, product.Description,
		product.PriceUSD, product.PricePEN, product.Image, product.Category,
		product.SortOrder, product.InStock, product.IsActive,
	)
	if err := row.Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt); err != nil {
		if pg.IsUniqueViolation(err) {
			return fmt.Errorf("create product %s: %w", product.Slug, repositories.ErrConflict)
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// Update overwrites every mutable field of the product.
func (r *ProductRepository) Update(ctx context.Context, product *domain.Product) error {
	row := r.pool.QueryRow(ctx, `
		UPDATE products SET
			slug = $2, title = $3, description = $4,
			price_usd = $5, price_pen = $6, image = $7, category = $8,
			sort_order = $9, in_stock = $10, is_active = $11,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		product.ID,
		product.Slug, product.Title, product.Description,
		product.PriceUSD, product.PricePEN, product.Image, product.Category,
		product.SortOrder, product.InStock, product.IsActive,
	)
	if err := row.Scan(&product.UpdatedAt); err != nil {
		if pg.IsNotFound(err) {
			return repositories.ErrNotFound
		}
		if pg.IsUniqueViolation(err) {
			return fmt.Errorf("update product %s: %w", product.Slug, repositories.ErrConflict)
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// Reorder assigns ascending sort order following the given id sequence.
func (r *ProductRepository) Reorder(ctx context.Context, orderedIDs []string) error {
	if len(orderedIDs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for position, id := range orderedIDs {
		batch.Queue(`UPDATE products SET sort_order = $2, updated_at = now() WHERE id = $1`, id, position)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range orderedIDs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("reorder products: %w", err)
		}
	}
	return nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var product domain.Product
	err := row.Scan(
		&product.ID, &product.Slug, &product.Title, &product.Description,
		&product.PriceUSD, &product.PricePEN, &product.Image, &product.Category,
		&product.SortOrder, &product.InStock, &product.IsActive,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}
