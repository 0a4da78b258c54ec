package models

import "github.com/shopspring/decimal"

type RawMaterial struct {
	Record
	Description string          `gorm:"not null" json:"description"`
	Unit        string          `gorm:"size:16;not null" json:"unit"`
	CostPerUnit decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"cost_per_unit"`
	Quantity    float64         `gorm:"not null;default:0" json:"quantity"`
	MinStock    float64         `gorm:"not null;default:0" json:"min_stock"`
	Supplier    string          `json:"supplier"`
	Code        string          `gorm:"size:64;index" json:"code"`
}

// LowStock reports whether the on-hand quantity has reached the minimum threshold.
func (m RawMaterial) LowStock() bool {
	return m.Quantity <= m.MinStock
}
