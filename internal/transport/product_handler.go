package transport

import (
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// readOnlyFields are server-managed product fields that clients commonly echo
// back. They are accepted and ignored.
type readOnlyFields struct {
	ID          json.RawMessage `json:"id,omitempty"`
	RatingAvg   json.RawMessage `json:"ratingAvg,omitempty"`
	RatingCount json.RawMessage `json:"ratingCount,omitempty"`
	CreatedAt   json.RawMessage `json:"createdAt,omitempty"`
	UpdatedAt   json.RawMessage `json:"updatedAt,omitempty"`
}

// CreateProductRequest represents the product creation payload
type CreateProductRequest struct {
	readOnlyFields
	Title          string   `json:"title" validate:"max=200"`
	Slug           string   `json:"slug" validate:"max=200"`
	Category       string   `json:"category" validate:"max=100"`
	Brand          string   `json:"brand" validate:"max=100"`
	Description    string   `json:"description"`
	Tags           []string `json:"tags" validate:"max=50"`
	Details        string   `json:"details"`
	Price          *float64 `json:"price"`
	CompareAtPrice *float64 `json:"compareAtPrice"`
	Currency       string   `json:"currency" validate:"max=3"`
	Images         []string `json:"images" validate:"max=50,dive,required"`
	Stock          int      `json:"stock"`
}

// UpdateProductRequest represents a partial product update. Absent fields are unchanged.
type UpdateProductRequest struct {
	readOnlyFields
	Title          *string   `json:"title" validate:"omitempty,max=200"`
	Slug           *string   `json:"slug"`
	Category       *string   `json:"category" validate:"omitempty,max=100"`
	Brand          *string   `json:"brand" validate:"omitempty,max=100"`
	Description    *string   `json:"description"`
	Tags           *[]string `json:"tags" validate:"omitempty,max=50"`
	Details        *string   `json:"details"`
	Price          *float64  `json:"price"`
	CompareAtPrice *float64  `json:"compareAtPrice"`
	Currency       *string   `json:"currency" validate:"omitempty,max=3"`
	Images         *[]string `json:"images" validate:"omitempty,max=50,dive,required"`
	Stock          *int      `json:"stock"`
}

func (req *CreateProductRequest) toDraft() service.ProductDraft {
	return service.ProductDraft{
		Title:          req.Title,
		Slug:           req.Slug,
		Category:       req.Category,
		Brand:          req.Brand,
		Description:    req.Description,
		Tags:           req.Tags,
		Details:        req.Details,
		Price:          req.Price,
		CompareAtPrice: req.CompareAtPrice,
		Currency:       req.Currency,
		Images:         req.Images,
		Stock:          req.Stock,
	}
}

func (req *UpdateProductRequest) toPatch() service.ProductPatch {
	return service.ProductPatch{
		Title:          req.Title,
		Slug:           req.Slug,
		Category:       req.Category,
		Brand:          req.Brand,
		Description:    req.Description,
		Tags:           req.Tags,
		Details:        req.Details,
		Price:          req.Price,
		CompareAtPrice: req.CompareAtPrice,
		Currency:       req.Currency,
		Images:         req.Images,
		Stock:          req.Stock,
	}
}

// ProductHandler handles HTTP requests for the catalog
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes mounts /products and /categories. Mutations require an admin.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Get("/categories", h.ListCategories)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(adminMiddleware)
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
	})
}

// ListProducts handles GET /products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query, err := parseProductQuery(r.URL.Query())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "list products")
		return
	}

	page, err := h.productService.List(r.Context(), query)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// GetProduct handles GET /products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// CreateProduct handles POST /products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.productService.Create(r.Context(), req.toDraft())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "create product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.productService.Update(r.Context(), id, req.toPatch())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if _, err := h.productService.Delete(r.Context(), id); err != nil {
		respondWithServiceError(w, h.logger, err, "delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListCategories handles GET /categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.productService.Categories(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "list categories")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string][]domain.CategorySummary{"items": categories})
}

// productID parses the {id} path parameter. Malformed ids cannot exist, so they are 404s.
func productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "Product not found")
		return uuid.Nil, false
	}
	return id, true
}

func parseProductQuery(values url.Values) (domain.ProductQuery, error) {
	query := domain.ProductQuery{
		Filter: domain.ProductFilter{
			Search:   strings.TrimSpace(values.Get("search")),
			Category: strings.TrimSpace(values.Get("category")),
		},
		Sort: values.Get("sort"),
	}

	verr := &service.ValidationError{}

	var err error
	if query.Filter.MinPrice, err = optionalFloat(values, "minPrice"); err != nil {
		verr.Problems = append(verr.Problems, service.FieldError{Field: "minPrice", Message: "minPrice must be a number"})
	}
	if query.Filter.MaxPrice, err = optionalFloat(values, "maxPrice"); err != nil {
		verr.Problems = append(verr.Problems, service.FieldError{Field: "maxPrice", Message: "maxPrice must be a number"})
	}
	if query.Page, err = optionalInt(values, "page"); err != nil {
		verr.Problems = append(verr.Problems, service.FieldError{Field: "page", Message: "page must be an integer"})
	}
	if query.Limit, err = optionalInt(values, "limit"); err != nil {
		verr.Problems = append(verr.Problems, service.FieldError{Field: "limit", Message: "limit must be an integer"})
	}

	if len(verr.Problems) > 0 {
		return query, verr
	}
	return query, nil
}

func optionalFloat(values url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, strconv.ErrSyntax
	}
	return &v, nil
}

func optionalInt(values url.Values, key string) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
