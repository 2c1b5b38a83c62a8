package domain

import (
	"slices"
	"strings"
)

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusDelivered},
	StatusDelivered: {},
	// restoring a cancelled order is the only way out of a terminal state
	StatusCancelled: {StatusPending},
}

var paymentStatusTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentPaid, PaymentFailed},
	PaymentPaid:     {PaymentRefunded},
	PaymentFailed:   {PaymentPaid},
	PaymentRefunded: {},
}

// ParseOrderStatus normalizes raw input and reports whether it names a known status.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	s := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := orderStatusTransitions[s]
	return s, ok
}

func ParsePaymentStatus(raw string) (PaymentStatus, bool) {
	s := PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := paymentStatusTransitions[s]
	return s, ok
}

// CanTransitionTo reports whether target is reachable from s in one step.
// Staying in the same status is always allowed.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if s == target {
		return true
	}
	return slices.Contains(orderStatusTransitions[s], target)
}

func (s OrderStatus) NextStatuses() []OrderStatus {
	return slices.Clone(orderStatusTransitions[s])
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	if s == target {
		return true
	}
	return slices.Contains(paymentStatusTransitions[s], target)
}

func (s PaymentStatus) NextStatuses() []PaymentStatus {
	return slices.Clone(paymentStatusTransitions[s])
}
