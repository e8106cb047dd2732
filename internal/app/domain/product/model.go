// Package product holds catalogue items and listing filters.
package product

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalogue item owned by a seller.
type Product struct {
	ID          int64           `json:"id" db:"id"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Category    string          `json:"category" db:"category"`
	Size        string          `json:"size" db:"size"`
	Color       string          `json:"color" db:"color"`
	Stock       int             `json:"stock" db:"stock"`
	ImageURI    string          `json:"image_uri" db:"image_uri"`
	SellerID    int64           `json:"seller_id" db:"seller_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool { return p.Stock > 0 }

// Patch is a partial product update; nil fields are left unchanged.
type Patch struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Size        *string          `json:"size,omitempty"`
	Color       *string          `json:"color,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
	ImageURI    *string          `json:"image_uri,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Price == nil && p.Category == nil &&
		p.Size == nil && p.Color == nil && p.Stock == nil && p.ImageURI == nil
}

// Apply copies the set fields of p onto prod.
func (p Patch) Apply(prod *Product) {
	if p.Title != nil {
		prod.Title = *p.Title
	}
	if p.Description != nil {
		prod.Description = *p.Description
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	if p.Category != nil {
		prod.Category = *p.Category
	}
	if p.Size != nil {
		prod.Size = *p.Size
	}
	if p.Color != nil {
		prod.Color = *p.Color
	}
	if p.Stock != nil {
		prod.Stock = *p.Stock
	}
	if p.ImageURI != nil {
		prod.ImageURI = *p.ImageURI
	}
}

// Filter narrows product listings. The zero value matches everything.
type Filter struct {
	Search         string
	Category       string
	MinPrice       *decimal.Decimal
	MaxPrice       *decimal.Decimal
	HideOutOfStock bool
	SellerID       int64
}

// Matches reports whether p passes every criterion in f.
func (f Filter) Matches(p Product) bool {
	if f.HideOutOfStock && !p.InStock() {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.SellerID != 0 && p.SellerID != f.SellerID {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	return true
}
