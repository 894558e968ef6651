package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/images"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, exists := m.users[key]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[key] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[strings.ToLower(email)]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) SetRole(ctx context.Context, email, role string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[strings.ToLower(email)]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	user.Role = role
	return user, nil
}

// mockProductRepository lists products newest first and ignores sorting
type mockProductRepository struct {
	mu       sync.Mutex
	products []*domain.Product
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Slug == product.Slug {
			return repository.ErrSlugTaken
		}
	}
	stored := *product
	m.products = append(m.products, &stored)
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product, prevUpdatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.products {
		if p.ID == product.ID {
			if !p.UpdatedAt.Equal(prevUpdatedAt) {
				return repository.ErrProductModified
			}
			stored := *product
			stored.Slug = p.Slug
			m.products[i] = &stored
			return nil
		}
	}
	return repository.ErrProductNotFound
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.products {
		if p.ID == id {
			m.products = append(m.products[:i], m.products[i+1:]...)
			return p, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) DeleteAll(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.products))
	m.products = nil
	return n, nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.ID == id {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockProductRepository) List(ctx context.Context, filter domain.ProductFilter, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matches := []*domain.Product{}
	for i := len(m.products) - 1; i >= 0; i-- {
		p := m.products[i]
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.MinPrice != nil && p.Price < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && p.Price > *filter.MaxPrice {
			continue
		}
		matches = append(matches, p)
	}

	total := len(matches)
	if page-1 >= (total+pageSize-1)/pageSize {
		return []*domain.Product{}, total, nil
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

type mockCategoryRepository struct {
	products *mockProductRepository
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]domain.CategorySummary, error) {
	m.products.mu.Lock()
	defer m.products.mu.Unlock()

	summaries := []domain.CategorySummary{}
	index := map[string]int{}
	for _, p := range m.products.products {
		if i, ok := index[p.Category]; ok {
			summaries[i].Count++
			continue
		}
		index[p.Category] = len(summaries)
		summaries = append(summaries, domain.CategorySummary{Name: p.Category, Count: 1})
	}
	return summaries, nil
}

// testAPI is a router wired like the real server but backed by in-memory repositories
type testAPI struct {
	router   chi.Router
	users    service.UserService
	products *mockProductRepository
	store    *images.LocalStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := zap.NewNop()
	store, err := images.NewLocalStore(t.TempDir(), "/uploads/", 64*1024, logger)
	if err != nil {
		t.Fatalf("Failed to create image store: %v", err)
	}

	userRepo := newMockUserRepository()
	productRepo := &mockProductRepository{}
	userService := service.NewUserService(userRepo, "test-secret", time.Hour)
	productService := service.NewProductService(productRepo, &mockCategoryRepository{products: productRepo}, images.NewTracker(store, logger), logger)

	authMW := middleware.AuthMiddleware(userService, logger)
	adminMW := middleware.RequireAdmin(logger)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		NewUserHandler(userService, logger).RegisterRoutes(r, authMW)
		NewProductHandler(productService, logger).RegisterRoutes(r, authMW, adminMW)
		NewUploadHandler(store, 2, 64*1024, logger).RegisterRoutes(r, authMW, adminMW)
	})

	return &testAPI{router: router, users: userService, products: productRepo, store: store}
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var payload bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			payload.WriteString(raw)
		} else {
			json.NewEncoder(&payload).Encode(body)
		}
	}

	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// register creates an account and returns its token
func (a *testAPI) register(t *testing.T, email string) string {
	t.Helper()
	w := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": email, "password": "secret1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Failed to register %s: %d %s", email, w.Code, w.Body.String())
	}
	var resp AuthResponse
	decode(t, w, &resp)
	return resp.Token
}

// adminToken registers an account, promotes it and returns its token
func (a *testAPI) adminToken(t *testing.T) string {
	t.Helper()
	token := a.register(t, "admin@example.com")
	if _, err := a.users.PromoteToAdmin(context.Background(), "admin@example.com"); err != nil {
		t.Fatalf("Failed to promote admin: %v", err)
	}
	return token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp middleware.ErrorResponse
	decode(t, w, &resp)
	return resp.Error.Message
}
