package infra

import (
	"context"

	"bakery-orders/internal/domain"
)

// ProductClientInterface looks up a catalogue product. A missing product is (nil, nil).
type ProductClientInterface interface {
	GetProductById(ctx context.Context, id uint64) (*domain.Product, error)
}

var (
	_ ProductClientInterface = (*ProductClient)(nil)
	_ ProductClientInterface = (*CachedProductClient)(nil)
)
