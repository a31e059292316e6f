package repositories

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"catalog/internal/models"
)

// MemoryProductRepository is an in-memory implementation of ProductRepository.
// It backs the service in development mode when no database DSN is configured,
// and doubles as a test double.
type MemoryProductRepository struct {
	products map[string]models.Product
	mu       sync.RWMutex
}

// NewMemoryProductRepository creates a new instance of MemoryProductRepository.
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		products: make(map[string]models.Product),
	}
}

// List returns one page of active products matching the query, plus the total
// match count ignoring paging. Filter, sort, and paging semantics mirror the
// GORM implementation.
func (r *MemoryProductRepository) List(query ListQuery) ([]models.Product, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := query.Normalize()

	matched := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if matches(p, q) {
			matched = append(matched, p)
		}
	}
	sortProducts(matched, q)

	total := int64(len(matched))
	start := q.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func matches(p models.Product, q ListQuery) bool {
	if !p.IsActive {
		return false
	}
	if q.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Search)) {
		return false
	}
	if q.Category != "" && p.Category != q.Category {
		return false
	}
	if q.Brand != "" && p.Brand != q.Brand {
		return false
	}
	if q.MinPrice != nil && p.Price < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && p.Price > *q.MaxPrice {
		return false
	}
	return true
}

func sortProducts(products []models.Product, q ListQuery) {
	asc := q.SortOrder == "asc"
	sort.SliceStable(products, func(i, j int) bool {
		a, b := products[i], products[j]
		if !asc {
			a, b = b, a
		}
		switch q.SortBy {
		case "name":
			return a.Name < b.Name
		case "price":
			return a.Price < b.Price
		case "category":
			return a.Category < b.Category
		case "brand":
			return a.Brand < b.Brand
		case "updatedAt":
			return a.UpdatedAt.Before(b.UpdatedAt)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
}

// GetByID returns a product by its ID.
func (r *MemoryProductRepository) GetByID(id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %s: %w", id, ErrProductNotFound)
	}
	return &product, nil
}

// Create adds a new product, assigning an ID and timestamps.
func (r *MemoryProductRepository) Create(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkSKU(product); err != nil {
		return err
	}
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	r.products[product.ID] = *product
	return nil
}

// Update modifies an existing product.
func (r *MemoryProductRepository) Update(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[product.ID]; !ok {
		return fmt.Errorf("product with ID %s: %w", product.ID, ErrProductNotFound)
	}
	if err := r.checkSKU(product); err != nil {
		return err
	}
	product.UpdatedAt = time.Now()
	r.products[product.ID] = *product
	return nil
}

// checkSKU enforces catalog-wide SKU uniqueness. Callers must hold the write
// lock.
func (r *MemoryProductRepository) checkSKU(product *models.Product) error {
	if product.SKU == "" {
		return nil
	}
	for _, p := range r.products {
		if p.SKU == product.SKU && p.ID != product.ID {
			return fmt.Errorf("product with SKU %s: %w", product.SKU, ErrDuplicateSKU)
		}
	}
	return nil
}

// Delete removes a product by its ID.
func (r *MemoryProductRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return fmt.Errorf("product with ID %s: %w", id, ErrProductNotFound)
	}
	delete(r.products, id)
	return nil
}

// Categories returns the distinct categories in use by active products, sorted.
func (r *MemoryProductRepository) Categories() ([]string, error) {
	return r.distinctValues(func(p models.Product) string { return p.Category }), nil
}

// Brands returns the distinct brands in use by active products, sorted.
func (r *MemoryProductRepository) Brands() ([]string, error) {
	return r.distinctValues(func(p models.Product) string { return p.Brand }), nil
}

func (r *MemoryProductRepository) distinctValues(field func(models.Product) string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	values := make([]string, 0)
	for _, p := range r.products {
		v := field(p)
		if !p.IsActive || v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
