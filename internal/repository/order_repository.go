package repository

import (
	"context"
	"errors"
	"time"

	"bakery-orders/internal/domain"
)

// ErrConflict is returned by Update when the stored version no longer matches
// the version the caller read.
var ErrConflict = errors.New("repository: concurrent modification")

// Find methods return (nil, nil) when the row does not exist.

type OrderRepository interface {
	Save(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uint64) (*domain.Order, error)
	Update(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, filter OrderFilter, page Pagination) ([]domain.Order, int64, error)
	HasReview(ctx context.Context, orderID uint64) (bool, error)
}

type OrderItemRepository interface {
	Save(ctx context.Context, item *domain.OrderItem) error
	FindByID(ctx context.Context, id uint64) (*domain.OrderItem, error)
	FindByOrderAndProduct(ctx context.Context, orderID, productID uint64) (*domain.OrderItem, error)
	Update(ctx context.Context, item *domain.OrderItem) error
	Delete(ctx context.Context, id uint64) error
	ListByOrder(ctx context.Context, orderID uint64) ([]domain.OrderItem, error)
}

type PromotionRepository interface {
	Save(ctx context.Context, promotion *domain.Promotion) error
	FindByID(ctx context.Context, id uint64) (*domain.Promotion, error)
	// DeactivateExpired flips IsActive off for active promotions whose EndDate
	// is before now and returns the number of rows changed.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type NotificationRepository interface {
	Save(ctx context.Context, n *domain.Notification) error
	ListRecent(ctx context.Context, limit int) ([]domain.Notification, error)
}

// UnitOfWork groups repository calls into one transaction. Repositories pick
// up the transaction from the context passed to fn.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type OrderFilter struct {
	Status        *domain.OrderStatus
	PaymentStatus *domain.PaymentStatus
	CustomerID    *uint64
	ChefID        *uint64
	Search        string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

type Pagination struct {
	Page  int
	Limit int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize applies the default page size and clamps out-of-range values.
func (p Pagination) Normalize() Pagination {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}
