package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"bakery-orders/internal/domain"
	"bakery-orders/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(customer uint64, created time.Time, products ...uint64) *domain.Order {
	o := &domain.Order{
		OrderNumber:   "ORD-" + created.Format("150405.000"),
		CustomerID:    customer,
		ChefID:        7,
		Subtotal:      decimal.NewFromInt(10),
		DeliveryFee:   decimal.NewFromInt(5),
		TotalAmount:   decimal.NewFromInt(15),
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentPending,
		CreatedAt:     created,
	}
	for _, p := range products {
		o.Items = append(o.Items, domain.OrderItem{ProductID: p, Quantity: 1, UnitPrice: decimal.NewFromInt(10), TotalPrice: decimal.NewFromInt(10)})
	}
	return o
}

func TestOrderRepo_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Orders()

	o := newOrder(1, time.Now(), 11, 12)
	require.NoError(t, repo.Save(ctx, o))
	assert.NotZero(t, o.ID)
	assert.Equal(t, uint64(1), o.Version)

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Items, 2)
	assert.Equal(t, o.ID, got.Items[0].OrderID)

	// returned copies do not alias the store
	got.Items[0].Quantity = 99
	again, _ := repo.FindByID(ctx, o.ID)
	assert.Equal(t, 1, again.Items[0].Quantity)

	missing, err := repo.FindByID(ctx, 999)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderRepo_UpdateIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Orders()
	o := newOrder(1, time.Now(), 11)
	require.NoError(t, repo.Save(ctx, o))

	first, _ := repo.FindByID(ctx, o.ID)
	second, _ := repo.FindByID(ctx, o.ID)

	first.Status = domain.StatusConfirmed
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, uint64(2), first.Version)

	second.Status = domain.StatusCancelled
	err := repo.Update(ctx, second)
	assert.ErrorIs(t, err, repository.ErrConflict)

	stored, _ := repo.FindByID(ctx, o.ID)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
}

func TestOrderRepo_ListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Orders()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		customer := uint64(1)
		if i%2 == 1 {
			customer = 2
		}
		require.NoError(t, repo.Save(ctx, newOrder(customer, base.Add(time.Duration(i)*time.Minute), 11)))
	}

	all, total, err := repo.List(ctx, repository.OrderFilter{}, repository.Pagination{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, all, 2)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt), "newest first")

	customer := uint64(2)
	mine, total, err := repo.List(ctx, repository.OrderFilter{CustomerID: &customer}, repository.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, mine, 2)

	beyond, total, err := repo.List(ctx, repository.OrderFilter{}, repository.Pagination{Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, beyond)
}

func TestItemRepo_UniquePerOrderAndProduct(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	o := newOrder(1, time.Now(), 11)
	require.NoError(t, s.Orders().Save(ctx, o))

	err := s.Items().Save(ctx, &domain.OrderItem{OrderID: o.ID, ProductID: 11, Quantity: 1})
	assert.Error(t, err)

	item := &domain.OrderItem{OrderID: o.ID, ProductID: 12, Quantity: 2}
	require.NoError(t, s.Items().Save(ctx, item))

	found, err := s.Items().FindByOrderAndProduct(ctx, o.ID, 12)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, item.ID, found.ID)

	require.NoError(t, s.Orders().Delete(ctx, o.ID))
	gone, _ := s.Items().FindByID(ctx, item.ID)
	assert.Nil(t, gone)
}

func TestUnitOfWork_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	o := newOrder(1, time.Now(), 11)
	require.NoError(t, s.Orders().Save(ctx, o))

	boom := errors.New("boom")
	err := s.UnitOfWork().RunInTx(ctx, func(ctx context.Context) error {
		cur, _ := s.Orders().FindByID(ctx, o.ID)
		cur.Status = domain.StatusCancelled
		if err := s.Orders().Update(ctx, cur); err != nil {
			return err
		}
		// nested units join the outer one
		return s.UnitOfWork().RunInTx(ctx, func(ctx context.Context) error {
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)

	stored, _ := s.Orders().FindByID(ctx, o.ID)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Equal(t, uint64(1), stored.Version)
}

func TestUnitOfWork_RollbackKeepsWritesMadeOutsideIt(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := newOrder(1, time.Now(), 11)
	b := newOrder(2, time.Now(), 12)
	require.NoError(t, s.Orders().Save(ctx, a))
	require.NoError(t, s.Orders().Save(ctx, b))

	boom := errors.New("boom")
	err := s.UnitOfWork().RunInTx(ctx, func(txCtx context.Context) error {
		curA, _ := s.Orders().FindByID(txCtx, a.ID)
		curA.Status = domain.StatusCancelled
		require.NoError(t, s.Orders().Update(txCtx, curA))
		require.NoError(t, s.Items().Save(txCtx, &domain.OrderItem{OrderID: a.ID, ProductID: 13, Quantity: 1}))

		// concurrent writers that are not part of this unit of work
		curB, _ := s.Orders().FindByID(ctx, b.ID)
		curB.Status = domain.StatusConfirmed
		require.NoError(t, s.Orders().Update(ctx, curB))
		require.NoError(t, s.Notifications().Save(ctx, &domain.Notification{ID: "n-1", Type: domain.EventOrderCreated}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	storedA, _ := s.Orders().FindByID(ctx, a.ID)
	assert.Equal(t, domain.StatusPending, storedA.Status)
	assert.Equal(t, uint64(1), storedA.Version)
	assert.Len(t, storedA.Items, 1)

	storedB, _ := s.Orders().FindByID(ctx, b.ID)
	assert.Equal(t, domain.StatusConfirmed, storedB.Status)
	assert.Equal(t, uint64(2), storedB.Version)

	feed, err := s.Notifications().ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "n-1", feed[0].ID)
}

func TestUnitOfWork_RollbackUndoesDeleteAndNotifications(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	o := newOrder(1, time.Now(), 11, 12)
	require.NoError(t, s.Orders().Save(ctx, o))

	boom := errors.New("boom")
	err := s.UnitOfWork().RunInTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Orders().Delete(ctx, o.ID))
		require.NoError(t, s.Notifications().Save(ctx, &domain.Notification{ID: "n-1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, _ := s.Orders().FindByID(ctx, o.ID)
	require.NotNil(t, stored)
	assert.Len(t, stored.Items, 2)
	feed, _ := s.Notifications().ListRecent(ctx, 10)
	assert.Empty(t, feed)
}

func TestPromotionRepo_DeactivateExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Promotions()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	expired := &domain.Promotion{Title: "old", IsActive: true, StartDate: now.AddDate(0, -1, 0), EndDate: now.Add(-time.Hour)}
	current := &domain.Promotion{Title: "new", IsActive: true, StartDate: now.AddDate(0, -1, 0), EndDate: now.Add(time.Hour)}
	require.NoError(t, repo.Save(ctx, expired))
	require.NoError(t, repo.Save(ctx, current))

	n, err := repo.DeactivateExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeactivateExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, _ := repo.FindByID(ctx, current.ID)
	assert.True(t, got.IsActive)
}
