package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"label-platform/internal/models"
)

var ProductSpec = TableSpec{
	Name: "products",
	Columns: []string{"id", "name", "slug", "description", "price", "category", "product_type",
		"image_url", "images", "artist_id", "inventory_count", "active", "download_url",
		"download_limit", "expiry_days", "created_at", "updated_at"},
	Writable: []string{"name", "slug", "description", "price", "category", "product_type",
		"image_url", "images", "artist_id", "inventory_count", "active", "download_url",
		"download_limit", "expiry_days"},
	Filters: map[string]FilterKind{"category": FilterString, "product_type": FilterString,
		"artist_id": FilterInt, "active": FilterBool},
	Search:  []string{"name", "description"},
	OrderBy: "created_at DESC, id DESC",
	Touch:   true,
}

type Products struct {
	*Table[models.Product]
}

func NewProducts(db sqlx.ExtContext) *Products {
	return &Products{Table: NewTable[models.Product](db, ProductSpec)}
}

func (p *Products) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	return p.Get(ctx, id)
}
