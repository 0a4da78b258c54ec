package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale records one sold quantity of a product flavor. RevenueID points at the paired ledger entry.
type Sale struct {
	Record
	ProductID     string          `gorm:"size:36;index;not null" json:"product_id"`
	FlavorID      string          `gorm:"size:36;not null" json:"flavor_id"`
	ProductName   string          `json:"product_name"`
	FlavorName    string          `json:"flavor_name"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"unit_price"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"unit_cost"`
	Date          time.Time       `gorm:"index;not null" json:"date"`
	PaymentMethod string          `gorm:"size:16" json:"payment_method"`
	Location      string          `json:"location"`
	RevenueID     string          `gorm:"size:36" json:"revenue_id"`
}

// Revenue is an income ledger entry. SaleID is set when the entry was created by a sale.
type Revenue struct {
	Record
	Amount        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Date          time.Time       `gorm:"index;not null" json:"date"`
	Category      string          `json:"category"`
	Source        string          `json:"source"`
	PaymentMethod string          `gorm:"size:16" json:"payment_method"`
	Description   string          `json:"description"`
	SaleID        *string         `gorm:"size:36;uniqueIndex" json:"sale_id,omitempty"`
}

type Expense struct {
	Record
	Amount        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Date          time.Time       `gorm:"index;not null" json:"date"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	PaymentMethod string          `gorm:"size:16" json:"payment_method"`
}

// Purchase records raw material bought from a supplier.
type Purchase struct {
	Record
	RawMaterialID string          `gorm:"size:36;index;not null" json:"raw_material_id"`
	Quantity      float64         `gorm:"not null" json:"quantity"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"unit_cost"`
	TotalCost     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_cost"`
	Date          time.Time       `gorm:"index;not null" json:"date"`
	Supplier      string          `json:"supplier"`
}

// ProductionRun records units of a flavor produced from raw materials.
type ProductionRun struct {
	Record
	ProductID string          `gorm:"size:36;index;not null" json:"product_id"`
	FlavorID  string          `gorm:"size:36;not null" json:"flavor_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	TotalCost decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"total_cost"`
	Date      time.Time       `gorm:"index;not null" json:"date"`
}
