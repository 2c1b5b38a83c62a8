package services

import (
	"context"
	"testing"
	"time"

	"bakery-orders/internal/domain"
	"bakery-orders/internal/mocks"
	"bakery-orders/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "%s: want %s, got %s", field, want, got.String())
}

type fixture struct {
	store    *memory.Store
	notifier *mocks.MockNotifier
	svc      *OrderService
	promos   *PromotionService
}

// newFixture wires the services onto the in-memory store with a catalogue of
// chef 7's products priced 100, 50 and 8, one unavailable product and one
// product sold by chef 8.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.PutProduct(domain.Product{ID: 1, ChefID: 7, Name: "Celebration cake", Price: dec("100"), IsAvailable: true})
	store.PutProduct(domain.Product{ID: 2, ChefID: 7, Name: "Croissant box", Price: dec("50"), IsAvailable: true})
	store.PutProduct(domain.Product{ID: 3, ChefID: 7, Name: "Seasonal tart", Price: dec("20"), IsAvailable: false})
	store.PutProduct(domain.Product{ID: 4, ChefID: 7, Name: "Baguette", Price: dec("8"), IsAvailable: true})
	store.PutProduct(domain.Product{ID: 5, ChefID: 8, Name: "Rye loaf", Price: dec("6"), IsAvailable: true})

	notifier := new(mocks.MockNotifier)
	notifier.On("Emit", mock.Anything, mock.Anything).Return(true).Maybe()

	deps := Deps{
		Orders:        store.Orders(),
		Items:         store.Items(),
		Promotions:    store.Promotions(),
		Notifications: store.Notifications(),
		Products:      store,
		UnitOfWork:    store.UnitOfWork(),
		Notifier:      notifier,
		Clock:         func() time.Time { return testNow },
	}
	svc, err := NewOrderService(deps)
	require.NoError(t, err)
	promos, err := NewPromotionService(deps)
	require.NoError(t, err)
	return &fixture{store: store, notifier: notifier, svc: svc, promos: promos}
}

// scenarioA places two cakes and one croissant box with a 30 delivery fee.
func (f *fixture) scenarioA(t *testing.T) *domain.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID:  11,
		ChefID:      7,
		DeliveryFee: dec("30"),
		Items: []CreateOrderItem{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) promotion(t *testing.T, kind domain.DiscountType, value string, start, end time.Time) *domain.Promotion {
	t.Helper()
	p := &domain.Promotion{
		ChefID:        7,
		Title:         string(kind) + " deal",
		DiscountType:  kind,
		DiscountValue: dec(value),
		StartDate:     start,
		EndDate:       end,
		IsActive:      true,
	}
	require.NoError(t, f.store.Promotions().Save(context.Background(), p))
	return p
}

func (f *fixture) reload(t *testing.T, id uint64) *domain.Order {
	t.Helper()
	o, err := f.store.Orders().FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, o)
	return o
}

func assertTotalsInvariant(t *testing.T, o *domain.Order) {
	t.Helper()
	assertMoney(t, subtotalOf(o.Items).String(), o.Subtotal, "subtotal")
	assertMoney(t, totalOf(o.Subtotal, o.DeliveryFee, o.DiscountAmount).String(), o.TotalAmount, "totalAmount")
}

func emitted(n *mocks.MockNotifier, kind string) int {
	count := 0
	for _, c := range n.Calls {
		if c.Method == "Emit" && c.Arguments.Get(1).(domain.Notification).Type == kind {
			count++
		}
	}
	return count
}
