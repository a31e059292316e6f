package handlers

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"catalog/internal/repositories"
	"catalog/internal/services"
	"catalog/pkg/upload"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service *services.ProductService
	uploads *upload.Store
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, uploads *upload.Store) *ProductHandler {
	return &ProductHandler{
		service: service,
		uploads: uploads,
	}
}

// RegisterRoutes registers the product routes with the Fiber app.
// The fixed paths must come before the ":id" route so "categories" and
// "brands" are not captured as product IDs.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleListProducts)
	productRoutes.Get("/categories", h.HandleListCategories)
	productRoutes.Get("/brands", h.HandleListBrands)
	productRoutes.Get("/:id", h.HandleGetProduct)
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Put("/:id", h.HandleUpdateProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
}

// HandleListProducts returns one page of products matching the request filters.
func (h *ProductHandler) HandleListProducts(c *fiber.Ctx) error {
	query := parseListQuery(c)

	products, pagination, err := h.service.ListProducts(query)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"data":       products,
		"pagination": pagination,
	})
}

// parseListQuery reads the optional filter, sort, and paging parameters.
// Invalid numeric values are ignored rather than rejected; paging falls back
// to its defaults during normalization.
func parseListQuery(c *fiber.Ctx) repositories.ListQuery {
	query := repositories.ListQuery{
		Search:    c.Query("search"),
		Category:  c.Query("category"),
		Brand:     c.Query("brand"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Page:      c.QueryInt("page"),
		Limit:     c.QueryInt("limit"),
	}
	if raw := c.Query("minPrice"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			query.MinPrice = &v
		}
	}
	if raw := c.Query("maxPrice"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			query.MaxPrice = &v
		}
	}
	return query
}

// HandleListCategories returns the distinct category values in use.
func (h *ProductHandler) HandleListCategories(c *fiber.Ctx) error {
	categories, err := h.service.ListCategories()
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    categories,
	})
}

// HandleListBrands returns the distinct brand values in use.
func (h *ProductHandler) HandleListBrands(c *fiber.Ctx) error {
	brands, err := h.service.ListBrands()
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    brands,
	})
}

// HandleGetProduct retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	product, err := h.service.GetProduct(c.Params("id"))
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

// HandleCreateProduct creates a new product from a multipart form. The image
// arrives either as an uploaded file or as a URL in the "image" field.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	input := services.CreateProductInput{
		Name:     c.FormValue("name"),
		Price:    c.FormValue("price"),
		Category: c.FormValue("category"),
		Brand:    c.FormValue("brand"),
		Image:    c.FormValue("image"),
		SKU:      c.FormValue("sku"),
	}

	savedImage := ""
	if file, err := c.FormFile("image"); err == nil && file != nil {
		path, saveErr := h.uploads.Save(file)
		if saveErr != nil {
			return h.renderError(c, saveErr)
		}
		input.Image = path
		savedImage = path
	}

	product, err := h.service.CreateProduct(input)
	if err != nil {
		h.removeSavedImage(savedImage)
		return h.renderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

// HandleUpdateProduct applies a partial update from a multipart form. Only
// fields present in the form are touched.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid form data",
		})
	}

	input := services.UpdateProductInput{
		Name:     formValue(form.Value, "name"),
		Price:    formValue(form.Value, "price"),
		Category: formValue(form.Value, "category"),
		Brand:    formValue(form.Value, "brand"),
		Image:    formValue(form.Value, "image"),
		IsActive: formValue(form.Value, "isActive"),
	}

	savedImage := ""
	if file, fileErr := c.FormFile("image"); fileErr == nil && file != nil {
		path, saveErr := h.uploads.Save(file)
		if saveErr != nil {
			return h.renderError(c, saveErr)
		}
		input.Image = &path
		savedImage = path
	}

	product, err := h.service.UpdateProduct(c.Params("id"), input)
	if err != nil {
		h.removeSavedImage(savedImage)
		return h.renderError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

// HandleDeleteProduct hard-deletes a product by its ID.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	if err := h.service.DeleteProduct(c.Params("id")); err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Product deleted successfully",
	})
}

// removeSavedImage discards an already-stored upload when the request it
// belonged to fails, so rejected writes leave no orphaned files behind.
func (h *ProductHandler) removeSavedImage(publicPath string) {
	if publicPath == "" {
		return
	}
	if err := h.uploads.Remove(publicPath); err != nil {
		log.Printf("Failed to remove uploaded image %s: %v", publicPath, err)
	}
}

// formValue reports whether a form field was supplied at all, so updates can
// distinguish "not sent" from "sent empty".
func formValue(values map[string][]string, key string) *string {
	if vs, ok := values[key]; ok && len(vs) > 0 {
		return &vs[0]
	}
	return nil
}

// renderError maps service and upload failures onto the uniform response
// envelope: validation and upload rejections are 400s, missing products are
// 404s, everything else is a 500.
func (h *ProductHandler) renderError(c *fiber.Ctx, err error) error {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Validation failed",
			"errors":  validationErr.Fields,
		})
	case upload.IsClientError(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	case errors.Is(err, repositories.ErrProductNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Product not found",
		})
	default:
		log.Printf("Unexpected error handling %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}
}
