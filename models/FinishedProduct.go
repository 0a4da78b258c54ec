package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultFlavorName names the flavor created for products submitted without variants.
const DefaultFlavorName = "Default"

type FinishedProduct struct {
	Record
	Name      string          `gorm:"not null" json:"name"`
	Category  string          `gorm:"index" json:"category"`
	Unit      string          `gorm:"size:16" json:"unit"`
	Recipe    []RecipeItem    `gorm:"foreignKey:ProductID" json:"recipe"`
	Flavors   []Flavor        `gorm:"foreignKey:ProductID" json:"flavors"`
	FinalCost decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"final_cost"`
	SalePrice decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"sale_price"`
}

// FlavorByID returns the flavor with the given id, or nil.
func (p *FinishedProduct) FlavorByID(id string) *Flavor {
	for i := range p.Flavors {
		if p.Flavors[i].ID == id {
			return &p.Flavors[i]
		}
	}
	return nil
}

// RecipeItem is the quantity of one raw material consumed per produced unit.
type RecipeItem struct {
	ID              string  `gorm:"primaryKey;size:36" json:"id"`
	ProductID       string  `gorm:"size:36;index;not null" json:"-"`
	RawMaterialID   string  `gorm:"size:36;index;not null" json:"raw_material_id"`
	QuantityPerUnit float64 `gorm:"not null" json:"quantity_per_unit"`
}

func (r *RecipeItem) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Flavor is a sellable variant of a product with its own stock.
type Flavor struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	ProductID string `gorm:"size:36;index;not null" json:"-"`
	Name      string `gorm:"not null" json:"name"`
	Stock     int    `gorm:"not null;default:0" json:"stock"`
}

func (f *Flavor) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// RecipeCost prices one unit from the recipe using per-unit material costs. Materials missing from
// costs contribute nothing.
func (p *FinishedProduct) RecipeCost(costs map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, item := range p.Recipe {
		cost, ok := costs[item.RawMaterialID]
		if !ok {
			continue
		}
		total = total.Add(cost.Mul(decimal.NewFromFloat(item.QuantityPerUnit)))
	}
	return total.Round(4)
}
