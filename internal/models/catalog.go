package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const (
	ProductPhysical = "physical"
	ProductDigital  = "digital"
	ProductBundle   = "bundle"
)

// Product is a catalog entry. InventoryCount is nil for untracked stock;
// the download fields are only set for digital products and bundles.
type Product struct {
	ID             int64           `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Slug           string          `db:"slug" json:"slug"`
	Description    string          `db:"description" json:"description"`
	Price          decimal.Decimal `db:"price" json:"price"`
	Category       string          `db:"category" json:"category"`
	ProductType    string          `db:"product_type" json:"product_type"`
	ImageURL       string          `db:"image_url" json:"image_url"`
	Images         pq.StringArray  `db:"images" json:"images"`
	ArtistID       *int64          `db:"artist_id" json:"artist_id"`
	InventoryCount *int            `db:"inventory_count" json:"inventory_count"`
	Active         bool            `db:"active" json:"active"`
	DownloadURL    string          `db:"download_url" json:"-"`
	DownloadLimit  *int            `db:"download_limit" json:"download_limit"`
	ExpiryDays     *int            `db:"expiry_days" json:"expiry_days"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// TracksInventory reports whether checkout must check and decrement stock.
func (p Product) TracksInventory() bool {
	return p.ProductType == ProductPhysical && p.InventoryCount != nil
}

// IsDownloadable reports whether the product can issue download grants.
func (p Product) IsDownloadable() bool {
	return (p.ProductType == ProductDigital || p.ProductType == ProductBundle) && p.DownloadURL != ""
}

func ValidProductType(t string) bool {
	switch t {
	case ProductPhysical, ProductDigital, ProductBundle:
		return true
	}
	return false
}

// ToCents converts an amount to the smallest currency unit.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
