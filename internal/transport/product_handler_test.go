package transport

import (
	"math"
	"net/http"
	"strconv"
	"testing"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

func newProductBody(title string, price float64) map[string]interface{} {
	return map[string]interface{}{
		"title":    title,
		"category": "kitchen",
		"price":    price,
	}
}

func (a *testAPI) createProduct(t *testing.T, token string, body map[string]interface{}) *domain.Product {
	t.Helper()
	w := a.do(http.MethodPost, "/api/products", token, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var product domain.Product
	decode(t, w, &product)
	return &product
}

func TestCreateProduct_RequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	userToken := api.register(t, "shopper@example.com")
	adminToken := api.adminToken(t)

	if w := api.do(http.MethodPost, "/api/products", "", newProductBody("Mug", 9.5)); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
	if w := api.do(http.MethodPost, "/api/products", userToken, newProductBody("Mug", 9.5)); w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for a regular user, got %d", w.Code)
	}

	product := api.createProduct(t, adminToken, newProductBody("Mug", 9.5))
	if product.ID == uuid.Nil {
		t.Error("Expected a generated id")
	}
	if product.Slug != "mug" {
		t.Errorf("Expected slug mug, got %q", product.Slug)
	}
}

func TestCreateProduct_NumbersRepeatedSlugs(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken(t)

	want := []string{"blue-mug", "blue-mug-2", "blue-mug-3"}
	for _, slug := range want {
		if got := api.createProduct(t, token, newProductBody("Blue Mug!", 12)).Slug; got != slug {
			t.Errorf("Expected slug %q, got %q", slug, got)
		}
	}
}

func TestCreateProduct_ValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken(t)

	cases := map[string]interface{}{
		"missing price":  map[string]interface{}{"title": "Mug", "category": "kitchen"},
		"negative price": newProductBody("Mug", -1),
		"missing title":  map[string]interface{}{"category": "kitchen", "price": 3},
		"unknown field":  map[string]interface{}{"title": "Mug", "category": "kitchen", "price": 3, "colour": "red"},
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := api.do(http.MethodPost, "/api/products", token, body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestCreateProduct_IgnoresServerManagedFields(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken(t)

	body := newProductBody("Lamp", 40)
	body["ratingAvg"] = 5
	body["createdAt"] = "2001-01-01T00:00:00Z"

	product := api.createProduct(t, token, body)
	if product.RatingAvg != 0 {
		t.Errorf("Expected rating to stay 0, got %v", product.RatingAvg)
	}
	if product.CreatedAt.Year() == 2001 {
		t.Error("Expected createdAt to be set by the server")
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/api/products/" + uuid.NewString(), "/api/products/not-a-uuid"} {
		w := api.do(http.MethodGet, path, "", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
		if msg := errorMessage(t, w); msg != "Product not found" {
			t.Errorf("%s: unexpected message %q", path, msg)
		}
	}
}

func TestUpdateProduct_KeepsSlug(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken(t)
	created := api.createProduct(t, token, newProductBody("Desk", 120))

	w := api.do(http.MethodPut, "/api/products/"+created.ID.String(), token, map[string]interface{}{"title": "Standing Desk", "stock": 4})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated domain.Product
	decode(t, w, &updated)
	if updated.Title != "Standing Desk" || updated.Stock != 4 || updated.Price != 120 {
		t.Errorf("Unexpected update result %+v", updated)
	}
	if updated.Slug != "desk" {
		t.Errorf("Expected slug to stay desk, got %q", updated.Slug)
	}

	w = api.do(http.MethodPut, "/api/products/"+created.ID.String(), token, map[string]interface{}{"slug": "other"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 when changing slug, got %d", w.Code)
	}

	w = api.do(http.MethodPut, "/api/products/"+uuid.NewString(), token, map[string]interface{}{"title": "Ghost"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing product, got %d", w.Code)
	}
}

func TestDeleteProduct(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken(t)
	created := api.createProduct(t, token, newProductBody("Chair", 60))
	path := "/api/products/" + created.ID.String()

	if w := api.do(http.MethodDelete, path, token, nil); w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", w.Code)
	}
	if w := api.do(http.MethodGet, path, "", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
	if w := api.do(http.MethodDelete, path, token, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", w.Code)
	}
}

func TestListProducts_PagingAndFilters(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken(t)
	for i, price := range []float64{5, 15, 25, 35, 45} {
		api.createProduct(t, token, newProductBody("Item "+string(rune('A'+i)), price))
	}

	w := api.do(http.MethodGet, "/api/products?limit=2&page=2", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var page domain.ProductPage
	decode(t, w, &page)
	if page.Total != 5 || page.Pages != 3 || page.Page != 2 || len(page.Items) != 2 {
		t.Errorf("Unexpected page %+v", page)
	}

	w = api.do(http.MethodGet, "/api/products?minPrice=15&maxPrice=35", "", nil)
	decode(t, w, &page)
	if page.Total != 3 {
		t.Errorf("Expected 3 products in [15,35], got %d", page.Total)
	}
	for _, p := range page.Items {
		if p.Price < 15 || p.Price > 35 {
			t.Errorf("Price %v outside bounds", p.Price)
		}
	}
}

func TestListProducts_RejectsMalformedQuery(t *testing.T) {
	api := newTestAPI(t)

	for _, query := range []string{"minPrice=cheap", "maxPrice=NaN", "page=two", "limit=1.5"} {
		w := api.do(http.MethodGet, "/api/products?"+query, "", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", query, w.Code)
		}
	}
}

func TestListCategories(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken(t)
	api.createProduct(t, token, newProductBody("Pan", 20))
	api.createProduct(t, token, newProductBody("Pot", 25))

	w := api.do(http.MethodGet, "/api/categories", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp struct {
		Items []domain.CategorySummary `json:"items"`
	}
	decode(t, w, &resp)
	if len(resp.Items) != 1 || resp.Items[0].Name != "kitchen" || resp.Items[0].Count != 2 {
		t.Errorf("Unexpected categories %+v", resp.Items)
	}
}

func TestListProducts_HugePageIsEmpty(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken(t)
	api.createProduct(t, token, newProductBody("Kettle", 30))

	w := api.do(http.MethodGet, "/api/products?page="+strconv.Itoa(math.MaxInt/2), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var page domain.ProductPage
	decode(t, w, &page)
	if len(page.Items) != 0 || page.Total != 1 || page.Pages != 1 {
		t.Errorf("Unexpected page %+v", page)
	}
}

func TestCreateProduct_RejectsUnstorableNumbers(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken(t)

	stockTooLarge := newProductBody("Crate", 10)
	stockTooLarge["stock"] = 3000000000

	cases := map[string]map[string]interface{}{
		"sub-cent price":  newProductBody("Crate", 19.999),
		"price too large": newProductBody("Crate", 1e10),
		"stock too large": stockTooLarge,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := api.do(http.MethodPost, "/api/products", token, body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	created := api.createProduct(t, token, newProductBody("Crate", 19.99))
	w := api.do(http.MethodGet, "/api/products/"+created.ID.String(), "", nil)
	var fetched domain.Product
	decode(t, w, &fetched)
	if fetched.Price != created.Price {
		t.Errorf("Expected the stored price %v to match the created one %v", fetched.Price, created.Price)
	}
}
