package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Categories is the fixed set of product categories accepted by the catalog.
var Categories = []string{
	"Electronics",
	"Clothing",
	"Books",
	"Home & Garden",
	"Sports",
	"Beauty",
	"Toys",
	"Food",
	"Other",
}

// ValidCategory reports whether name is one of the allowed categories.
func ValidCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

// Product represents a product in the catalog.
// Timestamps are declared explicitly instead of embedding gorm.Model so that
// deletes stay hard deletes (gorm.Model's DeletedAt would make them soft).
type Product struct {
	ID        string    `json:"_id" gorm:"primaryKey;type:varchar(36)"`
	Name      string    `json:"name" gorm:"size:100;not null" validate:"required,min=2,max=100"`
	Price     float64   `json:"price" gorm:"not null" validate:"gte=0"`
	Category  string    `json:"category" gorm:"size:50;index"`
	Brand     string    `json:"brand" gorm:"size:50;index" validate:"omitempty,max=50"`
	Image     string    `json:"image" gorm:"not null" validate:"required"`
	SKU       string    `json:"sku" gorm:"uniqueIndex;size:20"`
	IsActive  bool      `json:"isActive" gorm:"default:true;index"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FormattedPrice renders the price as a display string, e.g. "$12.99".
func (p Product) FormattedPrice() string {
	return fmt.Sprintf("$%.2f", p.Price)
}

// MarshalJSON includes the computed formattedPrice field alongside the stored
// columns, matching the wire shape consumed by the storefront client.
func (p Product) MarshalJSON() ([]byte, error) {
	type alias Product
	return json.Marshal(struct {
		alias
		FormattedPrice string `json:"formattedPrice"`
	}{
		alias:          alias(p),
		FormattedPrice: p.FormattedPrice(),
	})
}
