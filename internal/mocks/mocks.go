package mocks

import (
	"context"

	"bakery-orders/internal/domain"
	"bakery-orders/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockOrderRepository struct {
	mock.Mock
}

type MockProductClient struct {
	mock.Mock
}

type MockNotifier struct {
	mock.Mock
}

type MockOrderCache struct {
	mock.Mock
}

type MockSink struct {
	mock.Mock
}

// PassthroughUnitOfWork runs fn directly without a transaction.
type PassthroughUnitOfWork struct{}

func (PassthroughUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *MockOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) Delete(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOrderRepository) List(ctx context.Context, filter repository.OrderFilter, page repository.Pagination) ([]domain.Order, int64, error) {
	args := m.Called(ctx, filter, page)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) HasReview(ctx context.Context, orderID uint64) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductClient) GetProductById(ctx context.Context, productId uint64) (*domain.Product, error) {
	args := m.Called(ctx, productId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockNotifier) Emit(ctx context.Context, n domain.Notification) bool {
	args := m.Called(ctx, n)
	return args.Bool(0)
}

func (m *MockOrderCache) GetOrder(ctx context.Context, id uint64) (*domain.Order, bool) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*domain.Order), args.Bool(1)
}

func (m *MockOrderCache) SetOrder(ctx context.Context, o *domain.Order) {
	m.Called(ctx, o)
}

func (m *MockOrderCache) GetOrderList(ctx context.Context, key string) ([]domain.Order, int64, bool) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, 0, args.Bool(2)
	}
	return args.Get(0).([]domain.Order), args.Get(1).(int64), args.Bool(2)
}

func (m *MockOrderCache) SetOrderList(ctx context.Context, key string, orders []domain.Order, total int64) {
	m.Called(ctx, key, orders, total)
}

func (m *MockOrderCache) InvalidateOrder(ctx context.Context, o *domain.Order) {
	m.Called(ctx, o)
}

func (m *MockSink) Deliver(ctx context.Context, n domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}
