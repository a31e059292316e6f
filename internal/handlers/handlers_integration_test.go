package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"catalog/internal/handlers"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"
	"catalog/pkg/upload"
)

// envelope is the uniform response wrapper every endpoint renders.
type envelope struct {
	Success    bool                 `json:"success"`
	Message    string               `json:"message"`
	Errors     map[string]string    `json:"errors"`
	Data       json.RawMessage      `json:"data"`
	Pagination *services.Pagination `json:"pagination"`
}

// setupApp builds a Fiber app over an in-memory SQLite database. Each call
// uses a fresh named database so tests stay isolated.
func setupApp(t *testing.T) (*fiber.App, *upload.Store) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.Product{}))

	uploadStore, err := upload.NewStore(t.TempDir())
	assert.NoError(t, err)

	productRepo := repositories.NewGORMProductRepository(db)
	productService := services.NewProductService(productRepo, nil)
	productHandler := handlers.NewProductHandler(productService, uploadStore)

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
	})
	api := app.Group("/api")
	productHandler.RegisterRoutes(api)

	return app, uploadStore
}

type testFile struct {
	name    string
	content []byte
}

// newMultipartRequest builds a multipart form request with the given fields
// and an optional "image" file part.
func newMultipartRequest(t *testing.T, method, target string, fields map[string]string, file *testFile) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		assert.NoError(t, writer.WriteField(key, value))
	}
	if file != nil {
		part, err := writer.CreateFormFile("image", file.name)
		assert.NoError(t, err)
		_, err = part.Write(file.content)
		assert.NoError(t, err)
	}
	assert.NoError(t, writer.Close())

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (int, envelope) {
	t.Helper()

	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

// createProduct posts a product through the API and returns the stored record.
func createProduct(t *testing.T, app *fiber.App, fields map[string]string) models.Product {
	t.Helper()

	status, env := doRequest(t, app, newMultipartRequest(t, http.MethodPost, "/api/products", fields, nil))
	assert.Equal(t, http.StatusCreated, status)
	assert.True(t, env.Success)

	var product models.Product
	assert.NoError(t, json.Unmarshal(env.Data, &product))
	return product
}

func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestListProducts_Empty(t *testing.T) {
	app, _ := setupApp(t)

	status, env := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	var products []models.Product
	assert.NoError(t, json.Unmarshal(env.Data, &products))
	assert.Empty(t, products)
	assert.Equal(t, int64(0), env.Pagination.TotalProducts)
	assert.Equal(t, 0, env.Pagination.TotalPages)
	assert.Equal(t, 1, env.Pagination.Page)
	assert.Equal(t, 12, env.Pagination.Limit)
}

func TestProductLifecycle(t *testing.T) {
	app, _ := setupApp(t)

	created := createProduct(t, app, map[string]string{
		"name":     "Widget",
		"price":    "9.99",
		"category": "Toys",
		"brand":    "Acme",
		"image":    "x.png",
	})
	assert.NotEmpty(t, created.ID)
	assert.Regexp(t, regexp.MustCompile(`^TOY-\d{6}$`), created.SKU)
	assert.True(t, created.IsActive)

	// Partial update: only the price changes.
	status, env := doRequest(t, app, newMultipartRequest(t, http.MethodPut, "/api/products/"+created.ID,
		map[string]string{"price": "19.99"}, nil))
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	status, env = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/products/"+created.ID, nil))
	assert.Equal(t, http.StatusOK, status)
	var fetched models.Product
	assert.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, 19.99, fetched.Price)
	assert.Equal(t, "Widget", fetched.Name)
	assert.Equal(t, created.SKU, fetched.SKU)

	status, env = doRequest(t, app, httptest.NewRequest(http.MethodDelete, "/api/products/"+created.ID, nil))
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	assert.Contains(t, env.Message, "deleted successfully")

	// Deleted products are gone, not tombstoned.
	status, env = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/products/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
}

func TestCreateProduct_ValidationErrors(t *testing.T) {
	app, _ := setupApp(t)

	status, env := doRequest(t, app, newMultipartRequest(t, http.MethodPost, "/api/products",
		map[string]string{"name": "", "price": "-1", "image": "x.png"}, nil))

	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.Equal(t, "Validation failed", env.Message)
	assert.Equal(t, "Product name is required", env.Errors["name"])
	assert.Equal(t, "Price cannot be negative", env.Errors["price"])
}

func TestCreateProduct_RejectsLongFields(t *testing.T) {
	app, _ := setupApp(t)

	status, env := doRequest(t, app, newMultipartRequest(t, http.MethodPost, "/api/products",
		map[string]string{
			"name":  strings.Repeat("w", 101),
			"price": "9.99",
			"brand": strings.Repeat("b", 51),
			"image": "x.png",
		}, nil))

	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.Equal(t, "Product name must be between 2 and 100 characters", env.Errors["name"])
	assert.Equal(t, "Brand name cannot exceed 50 characters", env.Errors["brand"])
}

func TestCreateProduct_RejectsDuplicateSKU(t *testing.T) {
	app, _ := setupApp(t)

	createProduct(t, app, map[string]string{
		"name": "Widget", "price": "9.99", "image": "x.png", "sku": "TOY-123456",
	})

	status, env := doRequest(t, app, newMultipartRequest(t, http.MethodPost, "/api/products",
		map[string]string{"name": "Gadget", "price": "5.99", "image": "y.png", "sku": "TOY-123456"}, nil))

	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.Equal(t, "A product with this SKU already exists", env.Errors["sku"])

	// Only the first product made it into the catalog.
	status, env = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), env.Pagination.TotalProducts)
}

func TestCreateProduct_WithUploadedImage(t *testing.T) {
	app, uploadStore := setupApp(t)

	status, env := doRequest(t, app, newMultipartRequest(t, http.MethodPost, "/api/products",
		map[string]string{
			"name":     "Poster",
			"price":    "15.00",
			"category": "Other",
		}, &testFile{name: "poster.png", content: []byte("fake image bytes")}))

	assert.Equal(t, http.StatusCreated, status)
	var product models.Product
	assert.NoError(t, json.Unmarshal(env.Data, &product))
	assert.Regexp(t, regexp.MustCompile(`^/uploads/[0-9a-f-]+\.png$`), product.Image)

	// The file landed in the upload directory.
	entries, err := os.ReadDir(uploadStore.Dir())
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCreateProduct_RemovesUploadOnValidationError(t *testing.T) {
	app, uploadStore := setupApp(t)

	status, env := doRequest(t, app, newMultipartRequest(t, http.MethodPost, "/api/products",
		map[string]string{"name": "", "price": "15.00"},
		&testFile{name: "poster.png", content: []byte("fake image bytes")}))

	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)

	// The rejected request left no orphaned file behind.
	entries, err := os.ReadDir(uploadStore.Dir())
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateProduct_RejectsBadFileType(t *testing.T) {
	app, _ := setupApp(t)

	status, env := doRequest(t, app, newMultipartRequest(t, http.MethodPost, "/api/products",
		map[string]string{"name": "Poster", "price": "15.00"},
		&testFile{name: "poster.pdf", content: []byte("%PDF")}))

	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "only jpeg, jpg, png, gif, and webp")
}

func TestListProducts_FiltersAndPagination(t *testing.T) {
	app, _ := setupApp(t)

	seed := []map[string]string{
		{"name": "Gaming Laptop", "price": "1200", "category": "Electronics", "brand": "Asus", "image": "a.png"},
		{"name": "Office Laptop", "price": "700", "category": "Electronics", "brand": "Dell", "image": "b.png"},
		{"name": "Running Shoes", "price": "90", "category": "Sports", "brand": "Nike", "image": "c.png"},
		{"name": "Cook Book", "price": "25", "category": "Books", "brand": "Penguin", "image": "d.png"},
		{"name": "Desk Lamp", "price": "40", "category": "Home & Garden", "brand": "Ikea", "image": "e.png"},
	}
	for _, fields := range seed {
		createProduct(t, app, fields)
	}

	// Case-insensitive substring search on the name.
	status, env := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/products?search=laptop", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(2), env.Pagination.TotalProducts)

	// Filters combine with AND.
	status, env = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/products?category=Electronics&brand=Asus", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), env.Pagination.TotalProducts)

	// Inclusive price bounds.
	status, env = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/products?minPrice=40&maxPrice=700", nil))
	assert.Equal(t, http.StatusOK, status)
	var products []models.Product
	assert.NoError(t, json.Unmarshal(env.Data, &products))
	assert.Equal(t, int64(3), env.Pagination.TotalProducts)
	for _, p := range products {
		assert.GreaterOrEqual(t, p.Price, 40.0)
		assert.LessOrEqual(t, p.Price, 700.0)
	}

	// Sorting by price, ascending.
	status, env = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/products?sortBy=price&sortOrder=asc", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.NoError(t, json.Unmarshal(env.Data, &products))
	for i := 1; i < len(products); i++ {
		assert.LessOrEqual(t, products[i-1].Price, products[i].Price)
	}

	// Paging caps the page size and reports the page position.
	status, env = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/products?limit=2&page=2", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.NoError(t, json.Unmarshal(env.Data, &products))
	assert.Len(t, products, 2)
	assert.Equal(t, int64(5), env.Pagination.TotalProducts)
	assert.Equal(t, 3, env.Pagination.TotalPages)
	assert.True(t, env.Pagination.HasPrevPage)
	assert.True(t, env.Pagination.HasNextPage)

	// Invalid paging values fall back to defaults instead of erroring.
	status, env = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/products?page=abc&limit=-5", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, env.Pagination.Page)
	assert.Equal(t, 12, env.Pagination.Limit)
}

func TestCategoriesAndBrandsEndpoints(t *testing.T) {
	app, _ := setupApp(t)

	createProduct(t, app, map[string]string{"name": "Gaming Laptop", "price": "1200", "category": "Electronics", "brand": "Asus", "image": "a.png"})
	createProduct(t, app, map[string]string{"name": "Office Laptop", "price": "700", "category": "Electronics", "brand": "Dell", "image": "b.png"})
	createProduct(t, app, map[string]string{"name": "Cook Book", "price": "25", "category": "Books", "brand": "Penguin", "image": "c.png"})

	status, env := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/products/categories", nil))
	assert.Equal(t, http.StatusOK, status)
	var categories []string
	assert.NoError(t, json.Unmarshal(env.Data, &categories))
	assert.Equal(t, []string{"Books", "Electronics"}, categories)

	status, env = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/products/brands", nil))
	assert.Equal(t, http.StatusOK, status)
	var brands []string
	assert.NoError(t, json.Unmarshal(env.Data, &brands))
	assert.Equal(t, []string{"Asus", "Dell", "Penguin"}, brands)
}

func TestGetProduct_NotFound(t *testing.T) {
	app, _ := setupApp(t)

	status, env := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/products/"+uuid.New().String(), nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
	assert.Equal(t, "Product not found", env.Message)

	// Malformed ids behave the same as unknown ones.
	status, env = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/products/not-a-real-id", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
}

func TestUpdateProduct_NotFound(t *testing.T) {
	app, _ := setupApp(t)

	status, env := doRequest(t, app, newMultipartRequest(t, http.MethodPut, "/api/products/"+uuid.New().String(),
		map[string]string{"price": "19.99"}, nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
}

func TestDeleteProduct_NotFound(t *testing.T) {
	app, _ := setupApp(t)

	status, env := doRequest(t, app, httptest.NewRequest(http.MethodDelete, "/api/products/"+uuid.New().String(), nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
}

func TestUpdateProduct_CanDeactivate(t *testing.T) {
	app, _ := setupApp(t)

	created := createProduct(t, app, map[string]string{
		"name": "Widget", "price": "9.99", "category": "Toys", "brand": "Acme", "image": "x.png",
	})

	status, _ := doRequest(t, app, newMultipartRequest(t, http.MethodPut, "/api/products/"+created.ID,
		map[string]string{"isActive": "false"}, nil))
	assert.Equal(t, http.StatusOK, status)

	// Deactivated products drop out of listings but stay fetchable by id.
	status, env := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(0), env.Pagination.TotalProducts)

	status, _ = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/products/"+created.ID, nil))
	assert.Equal(t, http.StatusOK, status)
}
