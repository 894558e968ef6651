package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a product in the catalog
type Product struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Slug           string    `json:"slug"`
	Category       string    `json:"category"`
	Brand          string    `json:"brand"`
	Description    string    `json:"description"`
	Tags           []string  `json:"tags"`
	Details        string    `json:"details"`
	Price          float64   `json:"price"`
	CompareAtPrice *float64  `json:"compareAtPrice,omitempty"`
	Currency       string    `json:"currency,omitempty"`
	// Images is ordered; the first entry is the primary image.
	Images      []string  `json:"images"`
	Stock       int       `json:"stock"`
	RatingAvg   float64   `json:"ratingAvg"`
	RatingCount int       `json:"ratingCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PrimaryImage returns the first image reference, or "" when the product has none
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ProductFilter narrows a catalog listing. Nil bounds are open.
type ProductFilter struct {
	Search   string
	Category string
	MinPrice *float64
	MaxPrice *float64
}

// ProductQuery is a filtered, sorted page request
type ProductQuery struct {
	Filter ProductFilter
	// Sort is a public field name with an optional leading '-' for descending order.
	Sort  string
	Page  int
	Limit int
}

// ProductPage is one page of a listing plus the total match count
type ProductPage struct {
	Items []*Product `json:"items"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Pages int        `json:"pages"`
}

// CategorySummary is a distinct product category with the number of products in it
type CategorySummary struct {
	Name  string `json:"name" db:"name"`
	Count int    `json:"count" db:"count"`
}
