package repository

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/domain"

	"github.com/jmoiron/sqlx"
)

// CategoryRepository reads the category facet derived from products
type CategoryRepository interface {
	List(ctx context.Context) ([]domain.CategorySummary, error)
}

type categoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(db *sql.DB) CategoryRepository {
	return &categoryRepository{db: sqlx.NewDb(db, "pgx")}
}

// List returns every distinct category with its product count, ordered by name
func (r *categoryRepository) List(ctx context.Context) ([]domain.CategorySummary, error) {
	query := `
		SELECT category AS name, COUNT(*) AS count
		FROM products
		GROUP BY category
		ORDER BY category ASC
	`

	categories := []domain.CategorySummary{}
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	return categories, nil
}
