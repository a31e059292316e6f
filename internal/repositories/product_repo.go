package repositories

import (
	"errors"

	"catalog/internal/models"
)

// ErrProductNotFound is returned when no product exists for a given ID.
// Callers should test for it with errors.Is.
var ErrProductNotFound = errors.New("product not found")

// ErrDuplicateSKU is returned when a write would store an SKU another
// product already carries. SKUs are unique across the whole catalog.
var ErrDuplicateSKU = errors.New("sku already exists")

const (
	// DefaultPage is the page used when the request carries none or an invalid one.
	DefaultPage = 1
	// DefaultLimit is the page size used when the request carries none or an invalid one.
	DefaultLimit = 12
)

// sortColumns whitelists the fields a listing may be ordered by and maps the
// request-level names onto store columns. Anything else falls back to created_at.
var sortColumns = map[string]string{
	"name":      "name",
	"price":     "price",
	"category":  "category",
	"brand":     "brand",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// ListQuery carries the optional filter, sort, and paging parameters of a
// product listing. All filters combine with logical AND; zero values mean
// "no constraint", never "match empty".
type ListQuery struct {
	Search    string
	Category  string
	Brand     string
	MinPrice  *float64
	MaxPrice  *float64
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// Normalize coerces paging and sorting to usable values: non-positive page or
// limit fall back to the defaults rather than erroring, the sort field is
// checked against the whitelist, and the order defaults to descending.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if _, ok := sortColumns[q.SortBy]; !ok {
		q.SortBy = "createdAt"
	}
	if q.SortOrder != "asc" {
		q.SortOrder = "desc"
	}
	return q
}

// SortColumn returns the store column matching the normalized sort field.
func (q ListQuery) SortColumn() string {
	if col, ok := sortColumns[q.SortBy]; ok {
		return col
	}
	return "created_at"
}

// Offset returns the number of records to skip for the requested page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// ProductRepository defines the interface for product data access.
// List returns one page of active products matching the query together with
// the total match count ignoring paging.
type ProductRepository interface {
	List(query ListQuery) ([]models.Product, int64, error)
	GetByID(id string) (*models.Product, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	Delete(id string) error
	Categories() ([]string, error)
	Brands() ([]string, error)
}
