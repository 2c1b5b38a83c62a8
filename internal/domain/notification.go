package domain

import "time"

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

const (
	EventOrderCreated      = "order.created"
	EventOrderDeleted      = "order.deleted"
	EventOrderItemsChanged = "order.items.changed"
	EventStatusChanged     = "order.status.changed"
	EventPaymentChanged    = "order.payment.changed"
	EventPromotionApplied  = "order.promotion.applied"
	EventPromotionsExpired = "promotion.expired"
)

// Notification is a human-readable system event recorded after a mutation.
// Type doubles as the routing key when published to the broker.
type Notification struct {
	ID        string    `json:"id" gorm:"primaryKey;size:26"`
	Type      string    `json:"type" gorm:"size:64;not null;index"`
	Title     string    `json:"title" gorm:"size:255;not null"`
	Message   string    `json:"message" gorm:"type:text"`
	Priority  Priority  `json:"priority" gorm:"size:8;not null"`
	OrderID   *uint64   `json:"orderId,omitempty" gorm:"index"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
}
