package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage   DiscountType = "PERCENTAGE"
	DiscountFixed        DiscountType = "FIXED"
	DiscountFreeDelivery DiscountType = "FREE_DELIVERY"
)

func ParseDiscountType(raw string) (DiscountType, bool) {
	t := DiscountType(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case DiscountPercentage, DiscountFixed, DiscountFreeDelivery:
		return t, true
	}
	return t, false
}

type Promotion struct {
	ID            uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	ChefID        uint64          `json:"chefId" gorm:"not null;index"`
	Title         string          `json:"title" gorm:"size:255;not null"`
	DiscountType  DiscountType    `json:"discountType" gorm:"size:16;not null"`
	DiscountValue decimal.Decimal `json:"discountValue" gorm:"type:decimal(12,2);not null"`
	StartDate     time.Time       `json:"startDate" gorm:"not null"`
	EndDate       time.Time       `json:"endDate" gorm:"not null;index"`
	IsActive      bool            `json:"isActive" gorm:"not null;default:true;index"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// InWindow reports whether now falls within [StartDate, EndDate].
func (p *Promotion) InWindow(now time.Time) bool {
	return !now.Before(p.StartDate) && !now.After(p.EndDate)
}
