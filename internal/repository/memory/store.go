// Package memory is an in-process implementation of the repository
// interfaces. It backs DB_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bakery-orders/internal/domain"
	"bakery-orders/internal/repository"
)

type data struct {
	orders        map[uint64]domain.Order
	items         map[uint64]domain.OrderItem
	promotions    map[uint64]domain.Promotion
	products      map[uint64]domain.Product
	reviews       map[uint64]domain.Review
	notifications []domain.Notification

	nextOrderID     uint64
	nextItemID      uint64
	nextPromotionID uint64
}

func newData() data {
	return data{
		orders:     make(map[uint64]domain.Order),
		items:      make(map[uint64]domain.OrderItem),
		promotions: make(map[uint64]domain.Promotion),
		products:   make(map[uint64]domain.Product),
		reviews:    make(map[uint64]domain.Review),
	}
}

// Store holds every table. Reads and writes take mu. RunInTx additionally
// holds txMu for the whole unit of work, so units of work are serialized.
// Writes made through a unit-of-work context are journaled and undone when
// fn fails; writes made outside it are never rolled back.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	d    data
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{d: newData(), now: time.Now}
}

func (s *Store) Orders() repository.OrderRepository               { return &orderRepo{s} }
func (s *Store) Items() repository.OrderItemRepository            { return &itemRepo{s} }
func (s *Store) Promotions() repository.PromotionRepository       { return &promotionRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return &notificationRepo{s} }
func (s *Store) UnitOfWork() repository.UnitOfWork                { return &unitOfWork{s} }

// PutProduct upserts a catalogue row.
func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.products[p.ID] = p
}

// PutReview attaches a review to an order.
func (s *Store) PutReview(r domain.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.d.reviews[r.OrderID] = r
}

// GetProductById lets the store stand in for the product service.
func (s *Store) GetProductById(_ context.Context, id uint64) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.d.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type txKey struct{}

// txLog holds undo steps for the writes of one unit of work, oldest first.
type txLog struct {
	undo []func(d *data)
}

func txFrom(ctx context.Context) *txLog {
	l, _ := ctx.Value(txKey{}).(*txLog)
	return l
}

// The journal helpers below must be called with mu held, before the write.

func (s *Store) journalOrder(ctx context.Context, id uint64) {
	l := txFrom(ctx)
	if l == nil {
		return
	}
	prev, existed := s.d.orders[id]
	if existed {
		prev = *prev.Clone()
	}
	l.undo = append(l.undo, func(d *data) {
		if existed {
			d.orders[id] = prev
		} else {
			delete(d.orders, id)
		}
	})
}

func (s *Store) journalItem(ctx context.Context, id uint64) {
	l := txFrom(ctx)
	if l == nil {
		return
	}
	prev, existed := s.d.items[id]
	l.undo = append(l.undo, func(d *data) {
		if existed {
			d.items[id] = prev
		} else {
			delete(d.items, id)
		}
	})
}

func (s *Store) journalPromotion(ctx context.Context, id uint64) {
	l := txFrom(ctx)
	if l == nil {
		return
	}
	prev, existed := s.d.promotions[id]
	l.undo = append(l.undo, func(d *data) {
		if existed {
			d.promotions[id] = prev
		} else {
			delete(d.promotions, id)
		}
	})
}

func (s *Store) journalNotification(ctx context.Context, id string) {
	l := txFrom(ctx)
	if l == nil {
		return
	}
	l.undo = append(l.undo, func(d *data) {
		for i := len(d.notifications) - 1; i >= 0; i-- {
			if d.notifications[i].ID == id {
				d.notifications = append(d.notifications[:i], d.notifications[i+1:]...)
				return
			}
		}
	})
}

type unitOfWork struct{ s *Store }

func (u *unitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	u.s.txMu.Lock()
	defer u.s.txMu.Unlock()

	log := &txLog{}
	if err := fn(context.WithValue(ctx, txKey{}, log)); err != nil {
		u.s.mu.Lock()
		for i := len(log.undo) - 1; i >= 0; i-- {
			log.undo[i](&u.s.d)
		}
		u.s.mu.Unlock()
		return err
	}
	return nil
}

type orderRepo struct{ s *Store }

func (r *orderRepo) Save(ctx context.Context, order *domain.Order) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uint64]struct{}, len(order.Items))
	for _, it := range order.Items {
		if _, dup := seen[it.ProductID]; dup {
			return fmt.Errorf("duplicate product %d in order", it.ProductID)
		}
		seen[it.ProductID] = struct{}{}
	}

	now := s.now()
	s.d.nextOrderID++
	order.ID = s.d.nextOrderID
	if order.Version == 0 {
		order.Version = 1
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	for i := range order.Items {
		s.d.nextItemID++
		it := &order.Items[i]
		it.ID = s.d.nextItemID
		it.OrderID = order.ID
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		if it.UpdatedAt.IsZero() {
			it.UpdatedAt = it.CreatedAt
		}
		s.journalItem(ctx, it.ID)
		s.d.items[it.ID] = *it
	}

	stored := *order.Clone()
	stored.Items = nil
	s.journalOrder(ctx, order.ID)
	s.d.orders[order.ID] = stored
	return nil
}

func (r *orderRepo) FindByID(_ context.Context, id uint64) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.d.orders[id]
	if !ok {
		return nil, nil
	}
	return r.s.withItems(o), nil
}

func (r *orderRepo) Update(ctx context.Context, order *domain.Order) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.d.orders[order.ID]
	if !ok || cur.Version != order.Version {
		return repository.ErrConflict
	}
	order.Version++
	stored := *order.Clone()
	stored.Items = nil
	stored.CreatedAt = cur.CreatedAt
	stored.OrderNumber = cur.OrderNumber
	s.journalOrder(ctx, order.ID)
	s.d.orders[order.ID] = stored
	return nil
}

func (r *orderRepo) Delete(ctx context.Context, id uint64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.orders[id]; ok {
		s.journalOrder(ctx, id)
		delete(s.d.orders, id)
	}
	for itemID, it := range s.d.items {
		if it.OrderID == id {
			s.journalItem(ctx, itemID)
			delete(s.d.items, itemID)
		}
	}
	return nil
}

func (r *orderRepo) List(_ context.Context, f repository.OrderFilter, page repository.Pagination) ([]domain.Order, int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	page = page.Normalize()
	matched := make([]domain.Order, 0, len(s.d.orders))
	for _, o := range s.d.orders {
		if matches(o, f) {
			matched = append(matched, o)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := page.Offset()
	if start >= len(matched) {
		return []domain.Order{}, total, nil
	}
	end := min(start+page.Limit, len(matched))

	out := make([]domain.Order, 0, end-start)
	for _, o := range matched[start:end] {
		out = append(out, *s.withItems(o))
	}
	return out, total, nil
}

func (r *orderRepo) HasReview(_ context.Context, orderID uint64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.d.reviews[orderID]
	return ok, nil
}

func matches(o domain.Order, f repository.OrderFilter) bool {
	switch {
	case f.Status != nil && o.Status != *f.Status:
		return false
	case f.PaymentStatus != nil && o.PaymentStatus != *f.PaymentStatus:
		return false
	case f.CustomerID != nil && o.CustomerID != *f.CustomerID:
		return false
	case f.ChefID != nil && o.ChefID != *f.ChefID:
		return false
	case f.Search != "" && !strings.Contains(o.OrderNumber, f.Search):
		return false
	case f.CreatedFrom != nil && o.CreatedAt.Before(*f.CreatedFrom):
		return false
	case f.CreatedTo != nil && o.CreatedAt.After(*f.CreatedTo):
		return false
	}
	return true
}

// withItems must be called with mu held.
func (s *Store) withItems(o domain.Order) *domain.Order {
	out := o.Clone()
	out.Items = s.itemsOf(o.ID)
	return out
}

func (s *Store) itemsOf(orderID uint64) []domain.OrderItem {
	items := []domain.OrderItem{}
	for _, it := range s.d.items {
		if it.OrderID == orderID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

type itemRepo struct{ s *Store }

func (r *itemRepo) Save(ctx context.Context, item *domain.OrderItem) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.orders[item.OrderID]; !ok {
		return fmt.Errorf("order %d does not exist", item.OrderID)
	}
	for _, it := range s.d.items {
		if it.OrderID == item.OrderID && it.ProductID == item.ProductID {
			return fmt.Errorf("product %d already on order %d", item.ProductID, item.OrderID)
		}
	}
	s.d.nextItemID++
	item.ID = s.d.nextItemID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}
	s.journalItem(ctx, item.ID)
	s.d.items[item.ID] = *item
	return nil
}

func (r *itemRepo) FindByID(_ context.Context, id uint64) (*domain.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.d.items[id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (r *itemRepo) FindByOrderAndProduct(_ context.Context, orderID, productID uint64) (*domain.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, it := range r.s.d.items {
		if it.OrderID == orderID && it.ProductID == productID {
			found := it
			return &found, nil
		}
	}
	return nil, nil
}

func (r *itemRepo) Update(ctx context.Context, item *domain.OrderItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.d.items[item.ID]
	if !ok {
		return nil
	}
	cur.Quantity = item.Quantity
	cur.UnitPrice = item.UnitPrice
	cur.TotalPrice = item.TotalPrice
	cur.UpdatedAt = item.UpdatedAt
	r.s.journalItem(ctx, item.ID)
	r.s.d.items[item.ID] = cur
	return nil
}

func (r *itemRepo) Delete(ctx context.Context, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.items[id]; !ok {
		return nil
	}
	r.s.journalItem(ctx, id)
	delete(r.s.d.items, id)
	return nil
}

func (r *itemRepo) ListByOrder(_ context.Context, orderID uint64) ([]domain.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.itemsOf(orderID), nil
}

type promotionRepo struct{ s *Store }

func (r *promotionRepo) Save(ctx context.Context, p *domain.Promotion) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.nextPromotionID++
	p.ID = s.d.nextPromotionID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	s.journalPromotion(ctx, p.ID)
	s.d.promotions[p.ID] = *p
	return nil
}

func (r *promotionRepo) FindByID(_ context.Context, id uint64) (*domain.Promotion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.d.promotions[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *promotionRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, p := range r.s.d.promotions {
		if p.IsActive && p.EndDate.Before(now) {
			r.s.journalPromotion(ctx, id)
			p.IsActive = false
			p.UpdatedAt = now
			r.s.d.promotions[id] = p
			n++
		}
	}
	return n, nil
}

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Save(ctx context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.journalNotification(ctx, n.ID)
	r.s.d.notifications = append(r.s.d.notifications, *n)
	return nil
}

func (r *notificationRepo) ListRecent(_ context.Context, limit int) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if limit <= 0 {
		limit = repository.DefaultPageLimit
	}
	all := r.s.d.notifications
	out := make([]domain.Notification, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
