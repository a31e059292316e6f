package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"catalog/internal/metrics"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/pkg/rabbitmq"
)

// ValidationError reports rejected input with one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Pagination is the paging metadata returned alongside a product listing.
type Pagination struct {
	Page          int   `json:"page"`
	Limit         int   `json:"limit"`
	TotalProducts int64 `json:"totalProducts"`
	TotalPages    int   `json:"totalPages"`
	HasPrevPage   bool  `json:"hasPrevPage"`
	HasNextPage   bool  `json:"hasNextPage"`
}

// CreateProductInput carries the raw form fields of a create request.
// Price arrives as the submitted string so the service owns its parsing.
type CreateProductInput struct {
	Name     string
	Price    string
	Category string
	Brand    string
	Image    string
	SKU      string
}

// UpdateProductInput carries the form fields of an update request. Nil means
// the field was not supplied and keeps its previous value.
type UpdateProductInput struct {
	Name     *string
	Price    *string
	Category *string
	Brand    *string
	Image    *string
	IsActive *string
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo      repositories.ProductRepository
	publisher rabbitmq.Publisher
	validate  *validator.Validate
}

// NewProductService creates a new ProductService. The publisher may be nil,
// in which case change events are not emitted.
func NewProductService(repo repositories.ProductRepository, publisher rabbitmq.Publisher) *ProductService {
	return &ProductService{
		repo:      repo,
		publisher: publisher,
		validate:  validator.New(),
	}
}

// ListProducts returns one page of products matching the query together with
// pagination metadata. It never fails on empty input; an empty page is a
// normal result.
func (s *ProductService) ListProducts(query repositories.ListQuery) ([]models.Product, *Pagination, error) {
	q := query.Normalize()

	products, total, err := s.repo.List(q)
	if err != nil {
		return nil, nil, err
	}

	totalPages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	pagination := &Pagination{
		Page:          q.Page,
		Limit:         q.Limit,
		TotalProducts: total,
		TotalPages:    totalPages,
		HasPrevPage:   q.Page > 1,
		HasNextPage:   q.Page < totalPages,
	}
	return products, pagination, nil
}

// GetProduct retrieves a single product by its ID.
func (s *ProductService) GetProduct(id string) (*models.Product, error) {
	return s.repo.GetByID(id)
}

// CreateProduct validates the input, generates an SKU when none is supplied,
// and persists the new product.
func (s *ProductService) CreateProduct(input CreateProductInput) (*models.Product, error) {
	fields := make(map[string]string)

	product := models.Product{
		Name:     strings.TrimSpace(input.Name),
		Category: strings.TrimSpace(input.Category),
		Brand:    strings.TrimSpace(input.Brand),
		Image:    strings.TrimSpace(input.Image),
		SKU:      strings.ToUpper(strings.TrimSpace(input.SKU)),
		IsActive: true,
	}

	if strings.TrimSpace(input.Price) == "" {
		fields["price"] = "Price is required"
	} else if price, err := strconv.ParseFloat(strings.TrimSpace(input.Price), 64); err != nil {
		fields["price"] = "Price must be a valid number"
	} else {
		product.Price = price
	}

	if product.Category != "" && !models.ValidCategory(product.Category) {
		fields["category"] = "Please select a valid category"
	}

	s.validateStruct(product, fields)
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	// SKU generation is an explicit create step, not a store trigger, so it
	// stays visible and testable.
	if product.SKU == "" {
		product.SKU = GenerateSKU(product.Category)
	}

	if err := s.repo.Create(&product); err != nil {
		if errors.Is(err, repositories.ErrDuplicateSKU) {
			return nil, &ValidationError{Fields: map[string]string{
				"sku": "A product with this SKU already exists",
			}}
		}
		return nil, err
	}

	metrics.ProductsCreated.Inc()
	s.publish(rabbitmq.EventProductCreated, &product)
	return &product, nil
}

// UpdateProduct applies the supplied fields to an existing product. Fields not
// supplied keep their previous values; supplied fields follow the same rules
// as on create.
func (s *ProductService) UpdateProduct(id string, input UpdateProductInput) (*models.Product, error) {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string)

	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Price != nil {
		raw := strings.TrimSpace(*input.Price)
		if raw == "" {
			fields["price"] = "Price is required"
		} else if price, parseErr := strconv.ParseFloat(raw, 64); parseErr != nil {
			fields["price"] = "Price must be a valid number"
		} else {
			product.Price = price
		}
	}
	if input.Category != nil {
		category := strings.TrimSpace(*input.Category)
		if category != "" && !models.ValidCategory(category) {
			fields["category"] = "Please select a valid category"
		} else {
			product.Category = category
		}
	}
	if input.Brand != nil {
		product.Brand = strings.TrimSpace(*input.Brand)
	}
	if input.Image != nil {
		product.Image = strings.TrimSpace(*input.Image)
	}
	if input.IsActive != nil {
		active, parseErr := strconv.ParseBool(strings.TrimSpace(*input.IsActive))
		if parseErr != nil {
			fields["isActive"] = "isActive must be a boolean"
		} else {
			product.IsActive = active
		}
	}

	s.validateStruct(*product, fields)
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if err := s.repo.Update(product); err != nil {
		if errors.Is(err, repositories.ErrDuplicateSKU) {
			return nil, &ValidationError{Fields: map[string]string{
				"sku": "A product with this SKU already exists",
			}}
		}
		return nil, err
	}

	metrics.ProductsUpdated.Inc()
	s.publish(rabbitmq.EventProductUpdated, product)
	return product, nil
}

// DeleteProduct hard-removes a product by its ID.
func (s *ProductService) DeleteProduct(id string) error {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		return err
	}

	metrics.ProductsDeleted.Inc()
	s.publish(rabbitmq.EventProductDeleted, product)
	return nil
}

// ListCategories returns the distinct category values currently in use.
func (s *ProductService) ListCategories() ([]string, error) {
	return s.repo.Categories()
}

// ListBrands returns the distinct brand values currently in use.
func (s *ProductService) ListBrands() ([]string, error) {
	return s.repo.Brands()
}

// validateStruct runs the model's validate tags and merges the failures into
// fields, keeping the first message recorded for a field.
func (s *ProductService) validateStruct(product models.Product, fields map[string]string) {
	err := s.validate.Struct(product)
	if err == nil {
		return
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		fields["product"] = err.Error()
		return
	}
	for _, e := range validationErrors {
		key := strings.ToLower(e.Field()[:1]) + e.Field()[1:]
		if _, exists := fields[key]; exists {
			continue
		}
		fields[key] = fieldMessage(e)
	}
}

func fieldMessage(e validator.FieldError) string {
	switch e.Field() {
	case "Name":
		if e.Tag() == "required" {
			return "Product name is required"
		}
		return "Product name must be between 2 and 100 characters"
	case "Price":
		return "Price cannot be negative"
	case "Brand":
		return "Brand name cannot exceed 50 characters"
	case "Image":
		return "Product image is required"
	default:
		return fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
}

// GenerateSKU builds a product SKU from the category prefix and a six-digit
// time-derived suffix, e.g. "TOY-123456". Without a category the prefix is
// "PRD". The suffix takes the trailing digits of the microsecond clock so
// back-to-back creates in the same category get distinct codes.
func GenerateSKU(category string) string {
	prefix := "PRD"
	if category != "" {
		upper := []rune(strings.ToUpper(category))
		if len(upper) > 3 {
			upper = upper[:3]
		}
		prefix = string(upper)
	}
	timestamp := strconv.FormatInt(time.Now().UnixMicro(), 10)
	return fmt.Sprintf("%s-%s", prefix, timestamp[len(timestamp)-6:])
}

func (s *ProductService) publish(eventType string, product *models.Product) {
	if s.publisher == nil {
		return
	}
	event := rabbitmq.ProductEvent{
		Type:      eventType,
		ProductID: product.ID,
		Name:      product.Name,
		SKU:       product.SKU,
		Timestamp: time.Now().UTC(),
	}
	if err := s.publisher.PublishProductEvent(event); err != nil {
		// Event delivery is best-effort; the write already succeeded.
		log.Printf("Failed to publish %s event for product %s: %v", eventType, product.ID, err)
	}
}
