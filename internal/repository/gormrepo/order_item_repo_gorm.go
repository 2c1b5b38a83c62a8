package gormrepo

import (
	"context"
	"errors"

	"bakery-orders/internal/domain"
	"bakery-orders/internal/repository"

	"gorm.io/gorm"
)

type orderItemRepo struct {
	db *gorm.DB
}

func NewOrderItemRepository(db *gorm.DB) repository.OrderItemRepository {
	return &orderItemRepo{db: db}
}

func (r *orderItemRepo) Save(ctx context.Context, item *domain.OrderItem) error {
	return conn(ctx, r.db).Create(item).Error
}

func (r *orderItemRepo) FindByID(ctx context.Context, id uint64) (*domain.OrderItem, error) {
	var item domain.OrderItem
	if err := conn(ctx, r.db).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *orderItemRepo) FindByOrderAndProduct(ctx context.Context, orderID, productID uint64) (*domain.OrderItem, error) {
	var item domain.OrderItem
	err := conn(ctx, r.db).Where("order_id = ? AND product_id = ?", orderID, productID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *orderItemRepo) Update(ctx context.Context, item *domain.OrderItem) error {
	return conn(ctx, r.db).
		Model(item).
		Select("quantity", "unit_price", "total_price", "updated_at").
		Updates(item).Error
}

func (r *orderItemRepo) Delete(ctx context.Context, id uint64) error {
	return conn(ctx, r.db).Delete(&domain.OrderItem{}, id).Error
}

func (r *orderItemRepo) ListByOrder(ctx context.Context, orderID uint64) ([]domain.OrderItem, error) {
	var out []domain.OrderItem
	if err := conn(ctx, r.db).Where("order_id = ?", orderID).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
