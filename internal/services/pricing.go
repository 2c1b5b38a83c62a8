package services

import (
	"context"

	"bakery-orders/internal/domain"

	"github.com/shopspring/decimal"
)

// subtotalOf sums the line totals.
func subtotalOf(items []domain.OrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.TotalPrice)
	}
	return sum
}

// totalOf is max(0, subtotal + fee - discount).
func totalOf(subtotal, fee, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(fee).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// Recalculate recomputes an order's totals from its stored items.
func (s *OrderService) Recalculate(ctx context.Context, orderID uint64) (*domain.Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		return s.recalculate(ctx, order)
	})
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	s.cache.InvalidateOrder(ctx, order)
	return order, nil
}

// recalculate reloads the items of order, rewrites subtotal and total and
// persists the order with a version check against order.Version. It must run
// inside a unit of work.
func (s *OrderService) recalculate(ctx context.Context, order *domain.Order) error {
	items, err := s.items.ListByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	order.Items = items
	order.Subtotal = subtotalOf(items)
	order.TotalAmount = totalOf(order.Subtotal, order.DeliveryFee, order.DiscountAmount)
	order.UpdatedAt = s.now()
	return s.orders.Update(ctx, order)
}
