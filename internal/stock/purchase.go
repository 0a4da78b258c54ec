package stock

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bizview/internal/apperr"
	"bizview/models"
)

// PurchaseRequest records Quantity units of a raw material bought at UnitCost each.
type PurchaseRequest struct {
	RawMaterialID string
	Quantity      float64
	UnitCost      decimal.Decimal
	Date          time.Time
	Supplier      string
}

func (r PurchaseRequest) validate() error {
	if err := requireID("raw_material_id", r.RawMaterialID); err != nil {
		return err
	}
	if r.Quantity <= 0 {
		return apperr.Validation("quantity must be greater than zero")
	}
	if r.UnitCost.IsNegative() {
		return apperr.Validation("unit_cost must not be negative")
	}
	return nil
}

// Purchase adds the bought quantity to the raw material, sets its unit cost to the purchase's
// unit cost, refreshes the cost of products using it and records the purchase.
func (s *Service) Purchase(ctx context.Context, accountID uint, req PurchaseRequest) (*models.Purchase, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var purchase models.Purchase
	err := s.run(ctx, KindPurchase, accountID, func(tx *gorm.DB) error {
		material, err := lockMaterial(tx, accountID, req.RawMaterialID)
		if err != nil {
			return err
		}

		quantity := roundQuantity(req.Quantity)
		if err := tx.Model(&models.RawMaterial{}).
			Where("id = ? AND account_id = ?", material.ID, accountID).
			Updates(map[string]any{
				"quantity":      gorm.Expr("quantity + ?", quantity),
				"cost_per_unit": req.UnitCost,
			}).Error; err != nil {
			return err
		}
		if !material.CostPerUnit.Equal(req.UnitCost) {
			if err := RefreshProductCosts(tx, accountID, material.ID); err != nil {
				return err
			}
		}

		supplier := strings.TrimSpace(req.Supplier)
		if supplier == "" {
			supplier = material.Supplier
		}
		purchase = models.Purchase{
			Record:        models.Record{AccountID: accountID},
			RawMaterialID: material.ID,
			Quantity:      quantity,
			UnitCost:      req.UnitCost,
			TotalCost:     req.UnitCost.Mul(decimal.NewFromFloat(quantity)).Round(2),
			Date:          s.dateOrNow(req.Date),
			Supplier:      supplier,
		}
		return tx.Create(&purchase).Error
	})
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}
