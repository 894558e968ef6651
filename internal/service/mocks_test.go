package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
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

// mockProductRepository keeps products in insertion order
type mockProductRepository struct {
	mu       sync.Mutex
	products []*domain.Product
	// raceSlugs makes Create report ErrSlugTaken this many times
	raceSlugs int
	creates   int
	// beforeUpdate runs before each Update takes the lock, simulating a concurrent writer
	beforeUpdate func()
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{}
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.raceSlugs > 0 {
		m.raceSlugs--
		return repository.ErrSlugTaken
	}
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
	if m.beforeUpdate != nil {
		m.beforeUpdate()
	}

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
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(filter.Search)) {
			continue
		}
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

	if sortBy == "price" {
		sort.SliceStable(matches, func(i, j int) bool {
			if sortOrder == repository.SortOrderAsc {
				return matches[i].Price < matches[j].Price
			}
			return matches[i].Price > matches[j].Price
		})
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

	counts := map[string]int{}
	for _, p := range m.products.products {
		counts[p.Category]++
	}
	summaries := []domain.CategorySummary{}
	for name, count := range counts {
		summaries = append(summaries, domain.CategorySummary{Name: name, Count: count})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}

// recordingDeleter counts deletion attempts per image reference
type recordingDeleter struct {
	mu    sync.Mutex
	calls map[string]int
}

func newRecordingDeleter() *recordingDeleter {
	return &recordingDeleter{calls: map[string]int{}}
}

func (d *recordingDeleter) Delete(ctx context.Context, ref string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[ref]++
	return nil
}
