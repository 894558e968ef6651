package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/slug"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPage  = 1
	DefaultLimit = 12
	MaxLimit     = 100
	DefaultSort  = "-createdAt"

	// MaxSlugAttempts bounds retries when concurrent inserts race for a slug
	MaxSlugAttempts = 5

	// MaxUpdateAttempts bounds re-reads when concurrent updates touch the same product
	MaxUpdateAttempts = 3

	// MaxPrice and MaxStock are the largest values the products table stores
	MaxPrice = 9999999999.99
	MaxStock = math.MaxInt32

	// PriceDecimals is the number of fractional digits a price may carry
	PriceDecimals = 2
)

// ImageReleaser releases image references a product no longer holds
type ImageReleaser interface {
	Reconcile(ctx context.Context, oldRefs, newRefs []string)
	ReleaseAll(ctx context.Context, refs []string)
}

// ProductDraft is the input for creating a product
type ProductDraft struct {
	Title          string
	Slug           string
	Category       string
	Brand          string
	Description    string
	Tags           []string
	Details        string
	Price          *float64
	CompareAtPrice *float64
	Currency       string
	Images         []string
	Stock          int
}

// ProductPatch holds the fields of a partial update. Nil fields are left unchanged.
type ProductPatch struct {
	Title          *string
	Slug           *string
	Category       *string
	Brand          *string
	Description    *string
	Tags           *[]string
	Details        *string
	Price          *float64
	CompareAtPrice *float64
	Currency       *string
	Images         *[]string
	Stock          *int
}

// ProductService defines the interface for catalog business logic
type ProductService interface {
	Create(ctx context.Context, draft ProductDraft) (*domain.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, patch ProductPatch) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	DeleteAll(ctx context.Context) (int64, error)
	List(ctx context.Context, query domain.ProductQuery) (*domain.ProductPage, error)
	Categories(ctx context.Context) ([]domain.CategorySummary, error)
}

type productService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	images       ImageReleaser
	logger       *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	images ImageReleaser,
	logger *zap.Logger,
) ProductService {
	return &productService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		images:       images,
		logger:       logger,
	}
}

// Create validates the draft, allocates a unique slug and stores the product
func (s *productService) Create(ctx context.Context, draft ProductDraft) (*domain.Product, error) {
	now := nextTimestamp(time.Time{})
	product := &domain.Product{
		ID:             uuid.New(),
		Title:          strings.TrimSpace(draft.Title),
		Category:       strings.TrimSpace(draft.Category),
		Brand:          strings.TrimSpace(draft.Brand),
		Description:    draft.Description,
		Tags:           nonNil(draft.Tags),
		Details:        draft.Details,
		CompareAtPrice: draft.CompareAtPrice,
		Currency:       strings.ToUpper(strings.TrimSpace(draft.Currency)),
		Images:         nonNil(draft.Images),
		Stock:          draft.Stock,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	verr := &ValidationError{}
	if draft.Price == nil {
		verr.add("price", "price is required")
	} else {
		product.Price = *draft.Price
	}
	validateProduct(product, verr)
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	base := slugBase(draft.Slug, product.Title)

	// The slug probe and the insert are not atomic, so the unique constraint
	// arbitrates and a lost race re-probes.
	for attempt := 1; attempt <= MaxSlugAttempts; attempt++ {
		candidate, err := slug.ResolveUnique(ctx, base, s.productRepo.SlugExists)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve slug: %w", err)
		}
		product.Slug = candidate

		err = s.productRepo.Create(ctx, product)
		if err == nil {
			s.logger.Info("Product created",
				zap.String("product_id", product.ID.String()),
				zap.String("slug", product.Slug),
			)
			return product, nil
		}
		if !errors.Is(err, repository.ErrSlugTaken) {
			return nil, fmt.Errorf("failed to create product: %w", err)
		}

		s.logger.Debug("Slug taken by concurrent insert, retrying",
			zap.String("slug", candidate),
			zap.Int("attempt", attempt),
		)
	}

	return nil, ErrSlugConflict
}

// Get retrieves a product by ID
func (s *productService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// Update merges patch into the stored product. The slug cannot change.
// The write only lands on the version that was read; a concurrent change makes
// it re-read and re-merge. Images dropped by the patch are released after the
// update commits.
func (s *productService) Update(ctx context.Context, id uuid.UUID, patch ProductPatch) (*domain.Product, error) {
	for attempt := 1; attempt <= MaxUpdateAttempts; attempt++ {
		existing, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		if patch.Slug != nil && *patch.Slug != existing.Slug {
			return nil, NewValidationError("slug", "slug is immutable")
		}

		oldImages := append([]string(nil), existing.Images...)
		updated := *existing
		applyPatch(&updated, patch)
		updated.UpdatedAt = nextTimestamp(existing.UpdatedAt)

		verr := &ValidationError{}
		validateProduct(&updated, verr)
		if err := verr.orNil(); err != nil {
			return nil, err
		}

		err = s.productRepo.Update(ctx, &updated, existing.UpdatedAt)
		if errors.Is(err, repository.ErrProductModified) {
			s.logger.Debug("Product changed during update, retrying",
				zap.String("product_id", id.String()),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return nil, ErrProductNotFound
			}
			return nil, fmt.Errorf("failed to update product: %w", err)
		}

		if patch.Images != nil {
			s.images.Reconcile(ctx, oldImages, updated.Images)
		}

		s.logger.Info("Product updated", zap.String("product_id", id.String()))

		return &updated, nil
	}

	return nil, ErrUpdateConflict
}

// Delete removes a product and releases every image it held
func (s *productService) Delete(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	deleted, err := s.productRepo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}

	s.images.ReleaseAll(ctx, deleted.Images)

	s.logger.Info("Product deleted", zap.String("product_id", id.String()))

	return deleted, nil
}

// DeleteAll removes every product without touching image files
func (s *productService) DeleteAll(ctx context.Context) (int64, error) {
	return s.productRepo.DeleteAll(ctx)
}

// List returns one page of the filtered catalog
func (s *productService) List(ctx context.Context, query domain.ProductQuery) (*domain.ProductPage, error) {
	page, limit := NormalizePaging(query.Page, query.Limit)
	sortBy, order := ParseSort(query.Sort)

	items, total, err := s.productRepo.List(ctx, query.Filter, page, limit, sortBy, order)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return &domain.ProductPage{
		Items: items,
		Total: total,
		Page:  page,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// Categories returns the distinct categories with product counts
func (s *productService) Categories(ctx context.Context) ([]domain.CategorySummary, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// NormalizePaging applies the default page and limit and caps the limit
func NormalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// ParseSort splits "-field" into field and direction. Empty means newest first.
func ParseSort(sort string) (string, repository.SortOrder) {
	sort = strings.TrimSpace(sort)
	if sort == "" {
		sort = DefaultSort
	}
	if strings.HasPrefix(sort, "-") {
		return strings.TrimPrefix(sort, "-"), repository.SortOrderDesc
	}
	return strings.TrimPrefix(sort, "+"), repository.SortOrderAsc
}

func slugBase(requested, title string) string {
	requested = strings.TrimSpace(requested)
	if slug.IsCanonical(requested) {
		return requested
	}
	if base := slug.Slugify(title); base != "" {
		return base
	}
	return slug.Fallback
}

func validateProduct(p *domain.Product, verr *ValidationError) {
	if p.Title == "" {
		verr.add("title", "title is required")
	}
	if p.Category == "" {
		verr.add("category", "category is required")
	}
	validatePrice("price", p.Price, verr)
	if p.CompareAtPrice != nil {
		validatePrice("compareAtPrice", *p.CompareAtPrice, verr)
	}
	if p.Stock < 0 {
		verr.add("stock", "stock must be non-negative")
	} else if p.Stock > MaxStock {
		verr.add("stock", fmt.Sprintf("stock must not exceed %d", MaxStock))
	}
	if len(p.Currency) > 3 {
		verr.add("currency", "currency must be a 3-letter code")
	}
}

// validatePrice accepts non-negative amounts in whole cents up to MaxPrice
func validatePrice(field string, v float64, verr *ValidationError) {
	switch {
	case v < 0 || math.IsNaN(v) || math.IsInf(v, 0):
		verr.add(field, field+" must be a non-negative number")
	case v > MaxPrice:
		verr.add(field, fmt.Sprintf("%s must not exceed %.2f", field, MaxPrice))
	case decimalPlaces(v) > PriceDecimals:
		verr.add(field, fmt.Sprintf("%s must have at most %d decimal places", field, PriceDecimals))
	}
}

// decimalPlaces counts fractional digits in the shortest form that parses back to v
func decimalPlaces(v float64) int {
	formatted := strconv.FormatFloat(v, 'f', -1, 64)
	if i := strings.IndexByte(formatted, '.'); i >= 0 {
		return len(formatted) - i - 1
	}
	return 0
}

// nextTimestamp returns the current time at the store's microsecond precision,
// strictly after prev
func nextTimestamp(prev time.Time) time.Time {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func applyPatch(p *domain.Product, patch ProductPatch) {
	if patch.Title != nil {
		p.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Category != nil {
		p.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Brand != nil {
		p.Brand = strings.TrimSpace(*patch.Brand)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Tags != nil {
		p.Tags = nonNil(*patch.Tags)
	}
	if patch.Details != nil {
		p.Details = *patch.Details
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.CompareAtPrice != nil {
		p.CompareAtPrice = patch.CompareAtPrice
	}
	if patch.Currency != nil {
		p.Currency = strings.ToUpper(strings.TrimSpace(*patch.Currency))
	}
	if patch.Images != nil {
		p.Images = nonNil(*patch.Images)
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
