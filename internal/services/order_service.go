package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"bakery-orders/internal/domain"
	"bakery-orders/internal/infra"
	"bakery-orders/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Notifier queues a notification for asynchronous delivery. It never blocks
// and never fails the caller.
type Notifier interface {
	Emit(ctx context.Context, n domain.Notification) bool
}

// OrderCache is the read cache in front of order lookups. Implementations
// must tolerate being unavailable.
type OrderCache interface {
	GetOrder(ctx context.Context, id uint64) (*domain.Order, bool)
	SetOrder(ctx context.Context, o *domain.Order)
	GetOrderList(ctx context.Context, key string) ([]domain.Order, int64, bool)
	SetOrderList(ctx context.Context, key string, orders []domain.Order, total int64)
	InvalidateOrder(ctx context.Context, o *domain.Order)
}

// Deps enumerates collaborators required to construct an OrderService.
type Deps struct {
	Orders        repository.OrderRepository
	Items         repository.OrderItemRepository
	Promotions    repository.PromotionRepository
	Notifications repository.NotificationRepository
	Products      infra.ProductClientInterface
	UnitOfWork    repository.UnitOfWork
	Notifier      Notifier
	Cache         OrderCache
	Clock         func() time.Time
	Logger        *zap.Logger
}

type OrderService struct {
	orders        repository.OrderRepository
	items         repository.OrderItemRepository
	promotions    repository.PromotionRepository
	notifications repository.NotificationRepository
	products      infra.ProductClientInterface
	uow           repository.UnitOfWork
	notifier      Notifier
	cache         OrderCache
	clock         func() time.Time
	logger        *zap.Logger

	locks *keyedMutex
	seq   atomic.Uint64
}

func NewOrderService(deps Deps) (*OrderService, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("order service: order repository is required")
	case deps.Items == nil:
		return nil, errors.New("order service: order item repository is required")
	case deps.Promotions == nil:
		return nil, errors.New("order service: promotion repository is required")
	case deps.Products == nil:
		return nil, errors.New("order service: product client is required")
	case deps.UnitOfWork == nil:
		return nil, errors.New("order service: unit of work is required")
	}

	s := &OrderService{
		orders:        deps.Orders,
		items:         deps.Items,
		promotions:    deps.Promotions,
		notifications: deps.Notifications,
		products:      deps.Products,
		uow:           deps.UnitOfWork,
		notifier:      deps.Notifier,
		cache:         deps.Cache,
		clock:         deps.Clock,
		logger:        deps.Logger,
		locks:         newKeyedMutex(),
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.cache == nil {
		s.cache = nopCache{}
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

func (s *OrderService) now() time.Time {
	return s.clock().UTC()
}

type CreateOrderItem struct {
	ProductID uint64
	Quantity  int
}

type CreateOrderInput struct {
	CustomerID  uint64
	ChefID      uint64
	DeliveryFee decimal.Decimal
	Items       []CreateOrderItem
}

// CreateOrder snapshots product prices, computes totals and stores the order
// as PENDING/PENDING.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if in.CustomerID == 0 || in.ChefID == 0 {
		return nil, detail(ErrInvalidOrder, "customer and chef are required")
	}
	if len(in.Items) == 0 {
		return nil, detail(ErrInvalidOrder, "at least one item is required")
	}
	if in.DeliveryFee.IsNegative() {
		return nil, detail(ErrInvalidOrder, "delivery fee must not be negative")
	}

	// repeated products collapse into one line
	quantities := make(map[uint64]int, len(in.Items))
	var productIDs []uint64
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, detail(ErrInvalidQuantity, "product %d", it.ProductID)
		}
		if _, seen := quantities[it.ProductID]; !seen {
			productIDs = append(productIDs, it.ProductID)
		}
		quantities[it.ProductID] += it.Quantity
	}

	now := s.now()
	order := &domain.Order{
		OrderNumber:    s.nextOrderNumber(now),
		CustomerID:     in.CustomerID,
		ChefID:         in.ChefID,
		DeliveryFee:    in.DeliveryFee.Round(2),
		DiscountAmount: decimal.Zero,
		Status:         domain.StatusPending,
		PaymentStatus:  domain.PaymentPending,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, id := range productIDs {
		product, err := s.availableProduct(ctx, id, in.ChefID)
		if err != nil {
			return nil, err
		}
		item := domain.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    quantities[id],
			UnitPrice:   product.Price,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		item.TotalPrice = item.LineTotal()
		order.Items = append(order.Items, item)
	}
	order.Subtotal = subtotalOf(order.Items)
	order.TotalAmount = totalOf(order.Subtotal, order.DeliveryFee, order.DiscountAmount)

	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		return s.orders.Save(ctx, order)
	})
	if err != nil {
		s.logger.Error("create order failed", zap.String("order_number", order.OrderNumber), zap.Error(err))
		return nil, mapRepositoryError(err)
	}

	s.cache.InvalidateOrder(ctx, order)
	s.notify(ctx, order, domain.EventOrderCreated, domain.PriorityMedium,
		"New order",
		fmt.Sprintf("Order %s placed with %d item(s), total %s", order.OrderNumber, len(order.Items), order.TotalAmount.StringFixed(2)))
	return order, nil
}

// nextOrderNumber returns ORD-<epochMillis>-<sequence>.
func (s *OrderService) nextOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%d", now.UnixMilli(), s.seq.Add(1))
}

// GetOrder reads through the cache. Misses are filled under the order lock so
// a fill cannot land after a local mutation has invalidated the entry. Writes
// from other server instances are only bounded by the cache TTL.
func (s *OrderService) GetOrder(ctx context.Context, id uint64) (*domain.Order, error) {
	if cached, ok := s.cache.GetOrder(ctx, id); ok {
		return cached, nil
	}
	unlock := s.locks.Lock(id)
	defer unlock()
	o, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetOrder(ctx, o)
	return o, nil
}

type OrderPage struct {
	Orders []domain.Order
	Total  int64
	Page   int
	Limit  int
}

func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter, page repository.Pagination) (OrderPage, error) {
	page = page.Normalize()
	key := listCacheKey(filter, page)
	if orders, total, ok := s.cache.GetOrderList(ctx, key); ok {
		return OrderPage{Orders: orders, Total: total, Page: page.Page, Limit: page.Limit}, nil
	}

	orders, total, err := s.orders.List(ctx, filter, page)
	if err != nil {
		s.logger.Error("list orders failed", zap.Error(err))
		return OrderPage{}, err
	}
	s.cache.SetOrderList(ctx, key, orders, total)
	return OrderPage{Orders: orders, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

func listCacheKey(f repository.OrderFilter, p repository.Pagination) string {
	parts := []string{fmt.Sprintf("p=%d", p.Page), fmt.Sprintf("l=%d", p.Limit)}
	if f.Status != nil {
		parts = append(parts, "s="+string(*f.Status))
	}
	if f.PaymentStatus != nil {
		parts = append(parts, "ps="+string(*f.PaymentStatus))
	}
	if f.CustomerID != nil {
		parts = append(parts, fmt.Sprintf("c=%d", *f.CustomerID))
	}
	if f.ChefID != nil {
		parts = append(parts, fmt.Sprintf("ch=%d", *f.ChefID))
	}
	if f.Search != "" {
		parts = append(parts, "q="+f.Search)
	}
	if f.CreatedFrom != nil {
		parts = append(parts, fmt.Sprintf("from=%d", f.CreatedFrom.Unix()))
	}
	if f.CreatedTo != nil {
		parts = append(parts, fmt.Sprintf("to=%d", f.CreatedTo.Unix()))
	}
	sort.Strings(parts)
	return strings.Join(parts, "&")
}

// DeleteOrder removes an order that has neither items nor a review.
func (s *OrderService) DeleteOrder(ctx context.Context, id uint64) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	var deleted *domain.Order
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.loadOrder(ctx, id)
		if err != nil {
			return err
		}
		if len(order.Items) > 0 {
			return detail(ErrOrderHasDependents, "%d item(s)", len(order.Items))
		}
		reviewed, err := s.orders.HasReview(ctx, id)
		if err != nil {
			return err
		}
		if reviewed {
			return detail(ErrOrderHasDependents, "order has a review")
		}
		deleted = order
		return s.orders.Delete(ctx, id)
	})
	if err != nil {
		return mapRepositoryError(err)
	}

	s.cache.InvalidateOrder(ctx, deleted)
	s.notify(ctx, deleted, domain.EventOrderDeleted, domain.PriorityLow,
		"Order deleted", fmt.Sprintf("Order %s was deleted", deleted.OrderNumber))
	return nil
}

// ListNotifications returns the most recent notifications, newest first.
func (s *OrderService) ListNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	if s.notifications == nil {
		return []domain.Notification{}, nil
	}
	return s.notifications.ListRecent(ctx, limit)
}

func (s *OrderService) loadOrder(ctx context.Context, id uint64) (*domain.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// availableProduct loads a product that can be sold on an order of chefID.
func (s *OrderService) availableProduct(ctx context.Context, id, chefID uint64) (*domain.Product, error) {
	p, err := s.products.GetProductById(ctx, id)
	if err != nil {
		s.logger.Error("product lookup failed", zap.Uint64("product_id", id), zap.Error(err))
		return nil, err
	}
	if p == nil {
		return nil, detail(ErrProductNotFound, "id %d", id)
	}
	if !p.IsAvailable {
		return nil, detail(ErrProductUnavailable, "%s", p.Name)
	}
	if p.ChefID != chefID {
		return nil, detail(ErrProductUnavailable, "%s is not sold by chef %d", p.Name, chefID)
	}
	return p, nil
}

func (s *OrderService) notify(ctx context.Context, order *domain.Order, kind string, priority domain.Priority, title, message string) {
	n := domain.Notification{
		Type:     kind,
		Title:    title,
		Message:  message,
		Priority: priority,
	}
	if order != nil {
		id := order.ID
		n.OrderID = &id
	}
	s.notifier.Emit(ctx, n)
}

type nopNotifier struct{}

func (nopNotifier) Emit(context.Context, domain.Notification) bool { return false }

type nopCache struct{}

func (nopCache) GetOrder(context.Context, uint64) (*domain.Order, bool) { return nil, false }
func (nopCache) SetOrder(context.Context, *domain.Order)                {}
func (nopCache) GetOrderList(context.Context, string) ([]domain.Order, int64, bool) {
	return nil, 0, false
}
func (nopCache) SetOrderList(context.Context, string, []domain.Order, int64) {}
func (nopCache) InvalidateOrder(context.Context, *domain.Order)              {}
