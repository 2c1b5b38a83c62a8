package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusPreparing OrderStatus = "PREPARING"
	StatusReady     OrderStatus = "READY"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Order is a single customer purchase from one chef. TotalAmount is always
// max(0, Subtotal + DeliveryFee - DiscountAmount) once a mutation commits.
type Order struct {
	ID                 uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderNumber        string          `json:"orderNumber" gorm:"size:64;not null;uniqueIndex"`
	CustomerID         uint64          `json:"customerId" gorm:"not null;index"`
	ChefID             uint64          `json:"chefId" gorm:"not null;index"`
	Subtotal           decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	DeliveryFee        decimal.Decimal `json:"deliveryFee" gorm:"type:decimal(12,2);not null"`
	DiscountAmount     decimal.Decimal `json:"discountAmount" gorm:"type:decimal(12,2);not null"`
	TotalAmount        decimal.Decimal `json:"totalAmount" gorm:"type:decimal(12,2);not null"`
	PromotionID        *uint64         `json:"promotionId,omitempty" gorm:"index"`
	Status             OrderStatus     `json:"status" gorm:"size:16;not null;default:'PENDING';index"`
	PaymentStatus      PaymentStatus   `json:"paymentStatus" gorm:"size:16;not null;default:'PENDING';index"`
	ActualDeliveryTime *time.Time      `json:"actualDeliveryTime,omitempty"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty"`
	CancelReason       *string         `json:"cancelReason,omitempty" gorm:"size:512"`
	Version            uint64          `json:"version" gorm:"not null;default:1"`
	CreatedAt          time.Time       `json:"createdAt" gorm:"index"`
	UpdatedAt          time.Time       `json:"updatedAt"`
	Items              []OrderItem     `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem is one product line. UnitPrice is the product price when the
// product was last added to the order; later catalogue changes do not touch it.
type OrderItem struct {
	ID          uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID     uint64          `json:"orderId" gorm:"not null;uniqueIndex:idx_order_items_order_product"`
	ProductID   uint64          `json:"productId" gorm:"not null;uniqueIndex:idx_order_items_order_product"`
	ProductName string          `json:"productName" gorm:"size:255"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal `json:"unitPrice" gorm:"type:decimal(12,2);not null"`
	TotalPrice  decimal.Decimal `json:"totalPrice" gorm:"type:decimal(12,2);not null"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// LineTotal returns UnitPrice × Quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (o *Order) HasPromotion() bool {
	return o.PromotionID != nil
}

// Clone returns a deep copy, items and pointer fields included.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.PromotionID != nil {
		id := *o.PromotionID
		c.PromotionID = &id
	}
	if o.ActualDeliveryTime != nil {
		t := *o.ActualDeliveryTime
		c.ActualDeliveryTime = &t
	}
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		c.CancelledAt = &t
	}
	if o.CancelReason != nil {
		r := *o.CancelReason
		c.CancelReason = &r
	}
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	return &c
}
