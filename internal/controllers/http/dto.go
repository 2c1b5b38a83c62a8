package http

import (
	"time"

	"bakery-orders/internal/domain"

	"github.com/shopspring/decimal"
)

type OrderItemRequest struct {
	ProductID uint64 `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderRequest struct {
	CustomerID  uint64             `json:"customerId" binding:"required"`
	ChefID      uint64             `json:"chefId" binding:"required"`
	DeliveryFee decimal.Decimal    `json:"deliveryFee"`
	Items       []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type AddItemRequest struct {
	ProductID uint64 `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type UpdateItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

type PaymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus" binding:"required"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type ApplyPromotionRequest struct {
	PromotionID uint64 `json:"promotionId" binding:"required"`
}

// OrderDetailResponse is an order plus the statuses it may move to next.
type OrderDetailResponse struct {
	*domain.Order
	NextStatuses        []domain.OrderStatus   `json:"nextStatuses"`
	NextPaymentStatuses []domain.PaymentStatus `json:"nextPaymentStatuses"`
}

func newOrderDetail(o *domain.Order) OrderDetailResponse {
	return OrderDetailResponse{
		Order:               o,
		NextStatuses:        o.Status.NextStatuses(),
		NextPaymentStatuses: o.PaymentStatus.NextStatuses(),
	}
}

type ApplyPromotionResponse struct {
	Order          *domain.Order   `json:"order"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

type CreatePromotionRequest struct {
	ChefID        uint64          `json:"chefId" binding:"required"`
	Title         string          `json:"title" binding:"required"`
	DiscountType  string          `json:"discountType" binding:"required"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	StartDate     time.Time       `json:"startDate" binding:"required"`
	EndDate       time.Time       `json:"endDate" binding:"required"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

type DeactivateExpiredResponse struct {
	Deactivated int64 `json:"deactivated"`
}
