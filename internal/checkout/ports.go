package checkout

import (
	"context"

	"label-platform/internal/models"
	"label-platform/internal/store"
)

type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (models.Product, error)
}

type CartStore interface {
	GetCart(ctx context.Context, key store.CartKey) (models.CartSession, error)
	DeleteCart(ctx context.Context, key store.CartKey) error
}

type OrderWriter interface {
	CreateOrder(ctx context.Context, order *models.Order, decrements map[int64]int) error
}
