package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product and Review are owned by the catalogue and review screens; the order
// core only reads them.

type Product struct {
	ID          uint64          `json:"id" gorm:"primaryKey"`
	ChefID      uint64          `json:"chefId" gorm:"index"`
	Name        string          `json:"name" gorm:"size:255"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2)"`
	IsAvailable bool            `json:"isAvailable"`
}

type Review struct {
	ID        uint64    `json:"id" gorm:"primaryKey"`
	OrderID   uint64    `json:"orderId" gorm:"uniqueIndex"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment" gorm:"type:text"`
	CreatedAt time.Time `json:"createdAt"`
}
