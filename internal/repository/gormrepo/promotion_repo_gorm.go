package gormrepo

import (
	"context"
	"errors"
	"time"

	"bakery-orders/internal/domain"
	"bakery-orders/internal/repository"

	"gorm.io/gorm"
)

type promotionRepo struct {
	db *gorm.DB
}

func NewPromotionRepository(db *gorm.DB) repository.PromotionRepository {
	return &promotionRepo{db: db}
}

func (r *promotionRepo) Save(ctx context.Context, p *domain.Promotion) error {
	return conn(ctx, r.db).Create(p).Error
}

func (r *promotionRepo) FindByID(ctx context.Context, id uint64) (*domain.Promotion, error) {
	var p domain.Promotion
	if err := conn(ctx, r.db).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *promotionRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result := conn(ctx, r.db).
		Model(&domain.Promotion{}).
		Where("is_active = ? AND end_date < ?", true, now).
		Updates(map[string]any{"is_active": false, "updated_at": now})
	return result.RowsAffected, result.Error
}
