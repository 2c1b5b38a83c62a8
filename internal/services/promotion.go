package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bakery-orders/internal/domain"
	"bakery-orders/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// ApplyPromotion discounts the order and returns it with the discount amount.
// Checks run in a fixed order: order, promotion, active flag, date window,
// order state, existing promotion.
func (s *OrderService) ApplyPromotion(ctx context.Context, orderID, promotionID uint64) (*domain.Order, decimal.Decimal, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	promo, err := s.promotions.FindByID(ctx, promotionID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if promo == nil {
		return nil, decimal.Zero, ErrPromotionNotFound
	}
	if !promo.IsActive {
		return nil, decimal.Zero, ErrPromotionInactive
	}
	now := s.now()
	if !promo.InWindow(now) {
		return nil, decimal.Zero, detail(ErrPromotionExpiredOrNotStarted, "valid %s to %s",
			promo.StartDate.Format(time.RFC3339), promo.EndDate.Format(time.RFC3339))
	}
	if err := promotionApplicable(order, promo); err != nil {
		return nil, decimal.Zero, err
	}

	discount := discountFor(promo, subtotalOf(order.Items), order.DeliveryFee)
	order.PromotionID = &promo.ID
	order.DiscountAmount = discount

	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		return s.recalculate(ctx, order)
	})
	if err != nil {
		return nil, decimal.Zero, mapRepositoryError(err)
	}

	s.cache.InvalidateOrder(ctx, order)
	s.notify(ctx, order, domain.EventPromotionApplied, domain.PriorityMedium, "Promotion applied",
		fmt.Sprintf("%s: discount %s on order %s, new total %s",
			promo.Title, discount.StringFixed(2), order.OrderNumber, order.TotalAmount.StringFixed(2)))
	return order, discount, nil
}

func promotionApplicable(order *domain.Order, promo *domain.Promotion) error {
	if promo.ChefID != 0 && promo.ChefID != order.ChefID {
		return detail(ErrPromotionNotApplicable, "promotion belongs to another chef")
	}
	if order.PaymentStatus != domain.PaymentPending {
		return detail(ErrPromotionNotApplicable, "payment is %s", order.PaymentStatus)
	}
	if order.Status.IsTerminal() {
		return detail(ErrPromotionNotApplicable, "order is %s", order.Status)
	}
	if order.HasPromotion() {
		return ErrPromotionAlreadyApplied
	}
	return nil
}

// discountFor computes the discount against subtotal + fee. The result never
// exceeds that gross amount and is rounded to cents.
func discountFor(promo *domain.Promotion, subtotal, fee decimal.Decimal) decimal.Decimal {
	gross := subtotal.Add(fee)
	var d decimal.Decimal
	switch promo.DiscountType {
	case domain.DiscountPercentage:
		d = gross.Mul(promo.DiscountValue).Div(hundred)
	case domain.DiscountFixed:
		d = promo.DiscountValue
	case domain.DiscountFreeDelivery:
		d = fee
	}
	if d.GreaterThan(gross) {
		d = gross
	}
	if d.IsNegative() {
		d = decimal.Zero
	}
	return d.Round(2)
}

// PromotionService owns promotion records and the expiry sweep.
type PromotionService struct {
	promotions repository.PromotionRepository
	notifier   Notifier
	clock      func() time.Time
	logger     *zap.Logger
}

func NewPromotionService(deps Deps) (*PromotionService, error) {
	if deps.Promotions == nil {
		return nil, errors.New("promotion service: promotion repository is required")
	}
	s := &PromotionService{
		promotions: deps.Promotions,
		notifier:   deps.Notifier,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

type CreatePromotionInput struct {
	ChefID        uint64
	Title         string
	DiscountType  string
	DiscountValue decimal.Decimal
	StartDate     time.Time
	EndDate       time.Time
}

func (s *PromotionService) CreatePromotion(ctx context.Context, in CreatePromotionInput) (*domain.Promotion, error) {
	kind, ok := domain.ParseDiscountType(in.DiscountType)
	if !ok {
		return nil, detail(ErrInvalidPromotion, "unknown discount type %q", in.DiscountType)
	}
	title := strings.TrimSpace(in.Title)
	switch {
	case in.ChefID == 0:
		return nil, detail(ErrInvalidPromotion, "chef is required")
	case title == "":
		return nil, detail(ErrInvalidPromotion, "title is required")
	case in.StartDate.IsZero() || in.EndDate.IsZero():
		return nil, detail(ErrInvalidPromotion, "start and end dates are required")
	case in.EndDate.Before(in.StartDate):
		return nil, detail(ErrInvalidPromotion, "end date is before start date")
	}

	value := in.DiscountValue
	switch kind {
	case domain.DiscountPercentage:
		if value.LessThan(decimal.NewFromInt(1)) || value.GreaterThan(hundred) {
			return nil, detail(ErrInvalidPromotion, "percentage must be between 1 and 100")
		}
	case domain.DiscountFixed:
		if !value.IsPositive() {
			return nil, detail(ErrInvalidPromotion, "fixed discount must be positive")
		}
	case domain.DiscountFreeDelivery:
		value = decimal.Zero
	}

	now := s.clock().UTC()
	p := &domain.Promotion{
		ChefID:        in.ChefID,
		Title:         title,
		DiscountType:  kind,
		DiscountValue: value.Round(2),
		StartDate:     in.StartDate.UTC(),
		EndDate:       in.EndDate.UTC(),
		IsActive:      !in.EndDate.Before(now),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.promotions.Save(ctx, p); err != nil {
		s.logger.Error("create promotion failed", zap.Uint64("chef_id", in.ChefID), zap.Error(err))
		return nil, err
	}
	return p, nil
}

func (s *PromotionService) GetPromotion(ctx context.Context, id uint64) (*domain.Promotion, error) {
	p, err := s.promotions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPromotionNotFound
	}
	return p, nil
}

// DeactivateExpired switches off every active promotion whose end date has
// passed. Running it again is harmless.
func (s *PromotionService) DeactivateExpired(ctx context.Context) (int64, error) {
	now := s.clock().UTC()
	n, err := s.promotions.DeactivateExpired(ctx, now)
	if err != nil {
		s.logger.Error("deactivate expired promotions failed", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		s.logger.Info("deactivated expired promotions", zap.Int64("count", n))
		s.notifier.Emit(ctx, domain.Notification{
			Type:     domain.EventPromotionsExpired,
			Title:    "Promotions expired",
			Message:  fmt.Sprintf("%d promotion(s) passed their end date and were deactivated", n),
			Priority: domain.PriorityLow,
		})
	}
	return n, nil
}

// RunExpirySweep calls DeactivateExpired every interval until ctx ends.
func (s *PromotionService) RunExpirySweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := s.DeactivateExpired(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("initial promotion sweep failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.DeactivateExpired(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("promotion sweep failed", zap.Error(err))
			}
		}
	}
}
