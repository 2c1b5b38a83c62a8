package gormrepo

import (
	"context"
	"errors"

	"bakery-orders/internal/domain"
	"bakery-orders/internal/repository"

	"gorm.io/gorm"
)

// ProductRepository reads products straight from the shared catalogue table.
// It satisfies infra.ProductClientInterface for deployments without a
// separate product service.
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) GetProductById(ctx context.Context, id uint64) (*domain.Product, error) {
	var p domain.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

type notificationRepo struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) repository.NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Save(ctx context.Context, n *domain.Notification) error {
	return conn(ctx, r.db).Create(n).Error
}

func (r *notificationRepo) ListRecent(ctx context.Context, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = repository.DefaultPageLimit
	}
	var out []domain.Notification
	err := conn(ctx, r.db).Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

// Models lists every table the order core migrates.
func Models() []any {
	return []any{
		&domain.Order{},
		&domain.OrderItem{},
		&domain.Promotion{},
		&domain.Product{},
		&domain.Review{},
		&domain.Notification{},
	}
}
