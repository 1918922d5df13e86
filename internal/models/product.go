package models

import (
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product is the catalog entry orders are priced from. The order core only
// reads it.
type Product struct {
	BaseModel
	Name      string              `json:"name"`
	Price     decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"price"`
	SalePrice decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"sale_price"`
	Images    pq.StringArray      `gorm:"type:text[]" json:"images"`
}

// EffectivePrice returns the sale price when one is set, the list price otherwise.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice.Valid && p.SalePrice.Decimal.IsPositive() {
		return p.SalePrice.Decimal
	}
	return p.Price
}

// PrimaryImage returns the first image URL or an empty string.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
