package repositories

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog/internal/models"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// List retrieves one page of active products matching the query, plus the total
// number of matches ignoring paging. Filters combine with AND; empty filter
// values add no constraint.
func (r *GORMProductRepository) List(query ListQuery) ([]models.Product, int64, error) {
	q := query.Normalize()

	tx := r.db.Model(&models.Product{}).Where("is_active = ?", true)
	if q.Search != "" {
		tx = tx.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q.Search)+"%")
	}
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	if q.Brand != "" {
		tx = tx.Where("brand = ?", q.Brand)
	}
	if q.MinPrice != nil {
		tx = tx.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		tx = tx.Where("price <= ?", *q.MaxPrice)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	var products []models.Product
	// SortColumn comes from a whitelist and SortOrder is normalized to asc|desc,
	// so interpolating them into the ORDER BY clause is safe.
	order := fmt.Sprintf("%s %s", q.SortColumn(), strings.ToUpper(q.SortOrder))
	if err := tx.Order(order).Limit(q.Limit).Offset(q.Offset()).Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product with ID %s: %w", id, ErrProductNotFound)
		}
		return nil, fmt.Errorf("failed to get product by ID %s: %w", id, err)
	}
	return &product, nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.Create(product).Error; err != nil {
		// Requires gorm.Config{TranslateError: true} so driver-level
		// unique violations surface as ErrDuplicatedKey. SKU carries
		// the only unique index besides the primary key.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("product with SKU %s: %w", product.SKU, ErrDuplicateSKU)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update updates an existing product in the database.
func (r *GORMProductRepository) Update(product *models.Product) error {
	res := r.db.Save(product) // Save writes all fields, including zero values
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("product with SKU %s: %w", product.SKU, ErrDuplicateSKU)
		}
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// GORM's Save doesn't return ErrRecordNotFound when the row is
		// missing, so we check RowsAffected instead.
		return fmt.Errorf("product with ID %s: %w", product.ID, ErrProductNotFound)
	}
	return nil
}

// Delete hard-deletes a product by its ID from the database.
func (r *GORMProductRepository) Delete(id string) error {
	res := r.db.Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %s: %w", id, ErrProductNotFound)
	}
	return nil
}

// Categories returns the distinct category values currently in use by active
// products, sorted alphabetically.
func (r *GORMProductRepository) Categories() ([]string, error) {
	return r.distinct("category")
}

// Brands returns the distinct brand values currently in use by active
// products, sorted alphabetically.
func (r *GORMProductRepository) Brands() ([]string, error) {
	return r.distinct("brand")
}

func (r *GORMProductRepository) distinct(column string) ([]string, error) {
	var values []string
	err := r.db.Model(&models.Product{}).
		Where("is_active = ?", true).
		Where(column+" <> ''").
		Distinct().
		Order(column).
		Pluck(column, &values).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct %s values: %w", column, err)
	}
	return values, nil
}
