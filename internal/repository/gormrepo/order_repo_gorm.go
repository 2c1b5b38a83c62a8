package gormrepo

import (
	"context"
	"errors"

	"bakery-orders/internal/domain"
	"bakery-orders/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type orderRepo struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewOrderRepository(db *gorm.DB, logger *zap.Logger) repository.OrderRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &orderRepo{db: db, logger: logger}
}

// Save inserts the order together with its items.
func (r *orderRepo) Save(ctx context.Context, order *domain.Order) error {
	if order.Version == 0 {
		order.Version = 1
	}
	result := conn(ctx, r.db).Create(order)
	if result.Error != nil {
		r.logger.Error("order save failed", zap.String("order_number", order.OrderNumber), zap.Error(result.Error))
		return result.Error
	}

	if order.ID == 0 {
		r.logger.Warn("order saved without id", zap.Int64("rows_affected", result.RowsAffected))
		return errors.New("failed to assign order ID")
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	var o domain.Order
	err := conn(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("order lookup failed", zap.Uint64("order_id", id), zap.Error(err))
		return nil, err
	}
	return &o, nil
}

// Update writes the order's scalar columns if the stored version still equals
// order.Version, then bumps the version on both sides.
func (r *orderRepo) Update(ctx context.Context, order *domain.Order) error {
	result := conn(ctx, r.db).
		Model(&domain.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]any{
			"subtotal":             order.Subtotal,
			"delivery_fee":         order.DeliveryFee,
			"discount_amount":      order.DiscountAmount,
			"total_amount":         order.TotalAmount,
			"promotion_id":         order.PromotionID,
			"status":               order.Status,
			"payment_status":       order.PaymentStatus,
			"actual_delivery_time": order.ActualDeliveryTime,
			"cancelled_at":         order.CancelledAt,
			"cancel_reason":        order.CancelReason,
			"updated_at":           order.UpdatedAt,
			"version":              gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		r.logger.Error("order update failed", zap.Uint64("order_id", order.ID), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrConflict
	}
	order.Version++
	return nil
}

func (r *orderRepo) Delete(ctx context.Context, id uint64) error {
	return conn(ctx, r.db).Delete(&domain.Order{}, id).Error
}

func (r *orderRepo) List(ctx context.Context, filter repository.OrderFilter, page repository.Pagination) ([]domain.Order, int64, error) {
	page = page.Normalize()
	db := conn(ctx, r.db)

	var total int64
	if err := applyOrderFilter(db.Model(&domain.Order{}), filter).Count(&total).Error; err != nil {
		r.logger.Error("order count failed", zap.Error(err))
		return nil, 0, err
	}

	var out []domain.Order
	err := applyOrderFilter(db.Model(&domain.Order{}), filter).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("created_at DESC").Order("id DESC").
		Limit(page.Limit).Offset(page.Offset()).
		Find(&out).Error
	if err != nil {
		r.logger.Error("order list failed", zap.Error(err))
		return nil, 0, err
	}
	return out, total, nil
}

func (r *orderRepo) HasReview(ctx context.Context, orderID uint64) (bool, error) {
	var n int64
	if err := conn(ctx, r.db).Model(&domain.Review{}).Where("order_id = ?", orderID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func applyOrderFilter(q *gorm.DB, f repository.OrderFilter) *gorm.DB {
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.PaymentStatus != nil {
		q = q.Where("payment_status = ?", *f.PaymentStatus)
	}
	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if f.ChefID != nil {
		q = q.Where("chef_id = ?", *f.ChefID)
	}
	if f.Search != "" {
		q = q.Where("order_number LIKE ?", "%"+f.Search+"%")
	}
	if f.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		q = q.Where("created_at <= ?", *f.CreatedTo)
	}
	return q
}
