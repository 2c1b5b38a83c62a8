package services

import (
	"context"
	"fmt"

	"bakery-orders/internal/domain"
)

// TransitionPayment records a payment status change. Amounts are never touched.
func (s *OrderService) TransitionPayment(ctx context.Context, orderID uint64, target string) (*domain.Order, error) {
	next, ok := domain.ParsePaymentStatus(target)
	if !ok {
		return nil, detail(ErrInvalidPaymentStatus, "%q", target)
	}

	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.PaymentStatus.CanTransitionTo(next) {
		return nil, detail(ErrInvalidTransition, "payment %s -> %s", order.PaymentStatus, next)
	}

	prev := order.PaymentStatus
	order.PaymentStatus = next
	order.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, mapRepositoryError(err)
	}
	s.cache.InvalidateOrder(ctx, order)

	if prev != next {
		s.notify(ctx, order, domain.EventPaymentChanged, paymentPriority(next), "Payment status changed",
			fmt.Sprintf("Payment for order %s is now %s (was %s)", order.OrderNumber, next, prev))
	}
	return order, nil
}

func paymentPriority(s domain.PaymentStatus) domain.Priority {
	switch s {
	case domain.PaymentFailed, domain.PaymentRefunded:
		return domain.PriorityHigh
	default:
		return domain.PriorityMedium
	}
}
