package services

import (
	"context"
	"fmt"
	"strings"

	"bakery-orders/internal/domain"
)

type StatusChange struct {
	OrderID uint64
	Target  string
	Reason  string
}

// TransitionStatus moves an order along the fulfilment state machine.
// Requesting the current status is accepted and only refreshes UpdatedAt.
func (s *OrderService) TransitionStatus(ctx context.Context, in StatusChange) (*domain.Order, error) {
	target, ok := domain.ParseOrderStatus(in.Target)
	if !ok {
		return nil, detail(ErrInvalidStatus, "%q", in.Target)
	}
	return s.transition(ctx, in.OrderID, target, in.Reason, nil)
}

func (s *OrderService) Cancel(ctx context.Context, orderID uint64, reason string) (*domain.Order, error) {
	return s.transition(ctx, orderID, domain.StatusCancelled, reason, nil)
}

// Restore reopens a cancelled order as PENDING.
func (s *OrderService) Restore(ctx context.Context, orderID uint64) (*domain.Order, error) {
	return s.transition(ctx, orderID, domain.StatusPending, "", func(o *domain.Order) error {
		if o.Status != domain.StatusCancelled {
			return detail(ErrInvalidTransition, "only cancelled orders can be restored, order is %s", o.Status)
		}
		return nil
	})
}

func (s *OrderService) transition(ctx context.Context, orderID uint64, target domain.OrderStatus, reason string, guard func(*domain.Order) error) (*domain.Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if guard != nil {
		if err := guard(order); err != nil {
			return nil, err
		}
	}
	if !order.Status.CanTransitionTo(target) {
		return nil, detail(ErrInvalidTransition, "%s -> %s", order.Status, target)
	}

	prev := order.Status
	now := s.now()
	order.UpdatedAt = now
	if prev != target {
		order.Status = target
		switch target {
		case domain.StatusDelivered:
			order.ActualDeliveryTime = &now
		case domain.StatusCancelled:
			order.CancelledAt = &now
			order.CancelReason = nil
			if r := strings.TrimSpace(reason); r != "" {
				order.CancelReason = &r
			}
		case domain.StatusPending:
			order.CancelledAt = nil
			order.CancelReason = nil
		}
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, mapRepositoryError(err)
	}
	s.cache.InvalidateOrder(ctx, order)

	if prev != target {
		msg := fmt.Sprintf("Order %s moved from %s to %s", order.OrderNumber, prev, target)
		if order.CancelReason != nil && target == domain.StatusCancelled {
			msg += ": " + *order.CancelReason
		}
		s.notify(ctx, order, domain.EventStatusChanged, statusPriority(target), "Order status changed", msg)
	}
	return order, nil
}

func statusPriority(s domain.OrderStatus) domain.Priority {
	switch s {
	case domain.StatusCancelled:
		return domain.PriorityHigh
	case domain.StatusReady, domain.StatusDelivered:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}
