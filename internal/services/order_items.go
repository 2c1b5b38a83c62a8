package services

import (
	"context"
	"fmt"

	"bakery-orders/internal/domain"
)

// AddItem adds quantity of a product to the order. A product already on the
// order is merged into its existing line at the product's current price.
func (s *OrderService) AddItem(ctx context.Context, orderID, productID uint64, quantity int) (*domain.Order, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	product, err := s.availableProduct(ctx, productID, order.ChefID)
	if err != nil {
		return nil, err
	}

	var line domain.OrderItem
	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		now := s.now()
		existing, err := s.items.FindByOrderAndProduct(ctx, orderID, productID)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.Quantity += quantity
			existing.UnitPrice = product.Price
			existing.TotalPrice = existing.LineTotal()
			existing.UpdatedAt = now
			if err := s.items.Update(ctx, existing); err != nil {
				return err
			}
			line = *existing
		} else {
			item := &domain.OrderItem{
				OrderID:     orderID,
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    quantity,
				UnitPrice:   product.Price,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			item.TotalPrice = item.LineTotal()
			if err := s.items.Save(ctx, item); err != nil {
				return err
			}
			line = *item
		}
		return s.recalculate(ctx, order)
	})
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	s.afterItemsChanged(ctx, order, fmt.Sprintf("%s × %d on order %s", line.ProductName, line.Quantity, order.OrderNumber))
	return order, nil
}

// UpdateItemQuantity sets a line's quantity; zero or less removes the line.
func (s *OrderService) UpdateItemQuantity(ctx context.Context, itemID uint64, quantity int) (*domain.Order, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, itemID)
	}
	return s.mutateItem(ctx, itemID, func(ctx context.Context, item *domain.OrderItem) (string, error) {
		item.Quantity = quantity
		item.TotalPrice = item.LineTotal()
		item.UpdatedAt = s.now()
		if err := s.items.Update(ctx, item); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s quantity set to %d", item.ProductName, quantity), nil
	})
}

func (s *OrderService) RemoveItem(ctx context.Context, itemID uint64) (*domain.Order, error) {
	return s.mutateItem(ctx, itemID, func(ctx context.Context, item *domain.OrderItem) (string, error) {
		if err := s.items.Delete(ctx, item.ID); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s removed", item.ProductName), nil
	})
}

// mutateItem locks the owning order, applies fn to the item and recalculates
// the order in one unit of work.
func (s *OrderService) mutateItem(ctx context.Context, itemID uint64, fn func(ctx context.Context, item *domain.OrderItem) (string, error)) (*domain.Order, error) {
	item, err := s.findItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(item.OrderID)
	defer unlock()

	// the line may have moved or vanished while we waited for the lock
	item, err = s.findItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, item.OrderID)
	if err != nil {
		return nil, err
	}

	var summary string
	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if summary, err = fn(ctx, item); err != nil {
			return err
		}
		return s.recalculate(ctx, order)
	})
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	s.afterItemsChanged(ctx, order, fmt.Sprintf("%s on order %s", summary, order.OrderNumber))
	return order, nil
}

func (s *OrderService) findItem(ctx context.Context, itemID uint64) (*domain.OrderItem, error) {
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrOrderItemNotFound
	}
	return item, nil
}

func (s *OrderService) afterItemsChanged(ctx context.Context, order *domain.Order, message string) {
	s.cache.InvalidateOrder(ctx, order)
	s.notify(ctx, order, domain.EventOrderItemsChanged, domain.PriorityLow,
		"Order items updated",
		fmt.Sprintf("%s; total now %s", message, order.TotalAmount.StringFixed(2)))
}
