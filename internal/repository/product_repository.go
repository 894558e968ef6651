package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrProductNotFound = errors.New("product not found")
	// ErrProductModified means the row changed after it was read
	ErrProductModified = errors.New("product was modified concurrently")
	// ErrSlugTaken means the slug unique constraint rejected an insert
	ErrSlugTaken = errors.New("product slug already taken")
)

const productSlugConstraint = "products_slug_key"

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// sortColumns maps public sort fields to columns. Anything else falls back to created_at.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"price":     "price",
	"title":     "title",
	"stock":     "stock",
	"ratingAvg": "rating_avg",
}

const productColumns = `id, title, slug, category, brand, description, tags, details,
	price, compare_at_price, currency, images, stock, rating_avg, rating_count,
	created_at, updated_at`

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product, prevUpdatedAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	DeleteAll(ctx context.Context) (int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, filter domain.ProductFilter, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error)
}

type productRow struct {
	ID             uuid.UUID      `db:"id"`
	Title          string         `db:"title"`
	Slug           string         `db:"slug"`
	Category       string         `db:"category"`
	Brand          string         `db:"brand"`
	Description    string         `db:"description"`
	Tags           pq.StringArray `db:"tags"`
	Details        string         `db:"details"`
	Price          float64        `db:"price"`
	CompareAtPrice *float64       `db:"compare_at_price"`
	Currency       string         `db:"currency"`
	Images         pq.StringArray `db:"images"`
	Stock          int            `db:"stock"`
	RatingAvg      float64        `db:"rating_avg"`
	RatingCount    int            `db:"rating_count"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func newProductRow(p *domain.Product) *productRow {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return &productRow{
		ID:             p.ID,
		Title:          p.Title,
		Slug:           p.Slug,
		Category:       p.Category,
		Brand:          p.Brand,
		Description:    p.Description,
		Tags:           pq.StringArray(tags),
		Details:        p.Details,
		Price:          p.Price,
		CompareAtPrice: p.CompareAtPrice,
		Currency:       p.Currency,
		Images:         pq.StringArray(images),
		Stock:          p.Stock,
		RatingAvg:      p.RatingAvg,
		RatingCount:    p.RatingCount,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (r *productRow) toDomain() *domain.Product {
	tags := []string(r.Tags)
	if tags == nil {
		tags = []string{}
	}
	images := []string(r.Images)
	if images == nil {
		images = []string{}
	}
	return &domain.Product{
		ID:             r.ID,
		Title:          r.Title,
		Slug:           r.Slug,
		Category:       r.Category,
		Brand:          r.Brand,
		Description:    r.Description,
		Tags:           tags,
		Details:        r.Details,
		Price:          r.Price,
		CompareAtPrice: r.CompareAtPrice,
		Currency:       r.Currency,
		Images:         images,
		Stock:          r.Stock,
		RatingAvg:      r.RatingAvg,
		RatingCount:    r.RatingCount,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type productRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: sqlx.NewDb(db, "pgx")}
}

// Create inserts a product. A slug collision surfaces as ErrSlugTaken so callers can retry.
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (
			id, title, slug, category, brand, description, tags, details,
			price, compare_at_price, currency, images, stock, rating_avg, rating_count,
			created_at, updated_at
		)
		VALUES (
			:id, :title, :slug, :category, :brand, :description, :tags, :details,
			:price, :compare_at_price, :currency, :images, :stock, :rating_avg, :rating_count,
			:created_at, :updated_at
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, newProductRow(product)); err != nil {
		if isUniqueViolation(err, productSlugConstraint) {
			return ErrSlugTaken
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update writes every mutable column if the row still carries prevUpdatedAt.
// Slug, ratings and created_at are never touched. A row changed since it was
// read yields ErrProductModified.
func (r *productRepository) Update(ctx context.Context, product *domain.Product, prevUpdatedAt time.Time) error {
	query := `
		UPDATE products
		SET title = :title, category = :category, brand = :brand, description = :description,
		    tags = :tags, details = :details, price = :price, compare_at_price = :compare_at_price,
		    currency = :currency, images = :images, stock = :stock, updated_at = :updated_at
		WHERE id = :id AND updated_at = :prev_updated_at
	`

	row := struct {
		productRow
		PrevUpdatedAt time.Time `db:"prev_updated_at"`
	}{*newProductRow(product), prevUpdatedAt}

	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, product.ID); err != nil {
			return fmt.Errorf("failed to check product: %w", err)
		}
		if exists {
			return ErrProductModified
		}
		return ErrProductNotFound
	}

	return nil
}

// Delete removes a product and returns the row as it was before deletion
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `DELETE FROM products WHERE id = $1 RETURNING ` + productColumns

	var row productRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}

	return row.toDomain(), nil
}

// DeleteAll empties the catalog, used by the seeder
func (r *productRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete products: %w", err)
	}
	return result.RowsAffected()
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var row productRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return row.toDomain(), nil
}

// SlugExists reports whether any product already uses slug
func (r *productRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM products WHERE slug = $1)`, slug)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

// List returns one page of products matching filter plus the total match count
func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error) {
	sortColumn, ok := sortColumns[sortBy]
	if !ok {
		sortColumn = "created_at"
		sortOrder = SortOrderDesc
	}

	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc
	}

	whereClause, args := buildProductFilter(filter)

	// Count all matches independently of the page window
	countQuery := "SELECT COUNT(*) FROM products" + whereClause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	// Pages past the end are empty. Checking before multiplying keeps huge
	// page numbers from overflowing the offset.
	if page-1 >= (total+pageSize-1)/pageSize {
		return []*domain.Product{}, total, nil
	}

	offset := (page - 1) * pageSize
	argIndex := len(args) + 1

	query := fmt.Sprintf(`
		SELECT %s
		FROM products%s
		ORDER BY %s %s, id %s
		LIMIT $%d OFFSET $%d
	`, productColumns, whereClause, sortColumn, sortOrder, sortOrder, argIndex, argIndex+1)

	args = append(args, pageSize, offset)

	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]*domain.Product, 0, len(rows))
	for i := range rows {
		products = append(products, rows[i].toDomain())
	}

	return products, total, nil
}

func buildProductFilter(filter domain.ProductFilter) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}

	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.MinPrice != nil {
		args = append(args, *filter.MinPrice)
		conditions = append(conditions, fmt.Sprintf("price >= $%d", len(args)))
	}
	if filter.MaxPrice != nil {
		args = append(args, *filter.MaxPrice)
		conditions = append(conditions, fmt.Sprintf("price <= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// escapeLike neutralises LIKE wildcards so search terms match literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
