package stock

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bizview/models"
)

// RefreshProductCosts recomputes FinalCost for every product of the account whose recipe uses
// materialID. It must run on the same transaction that changed the material's cost.
func RefreshProductCosts(tx *gorm.DB, accountID uint, materialID string) error {
	var products []models.FinishedProduct
	if err := tx.Preload("Recipe").
		Where("account_id = ? AND id IN (?)", accountID,
			tx.Model(&models.RecipeItem{}).Select("product_id").Where("raw_material_id = ?", materialID)).
		Find(&products).Error; err != nil {
		return fmt.Errorf("load products using %s: %w", materialID, err)
	}
	if len(products) == 0 {
		return nil
	}

	var materials []models.RawMaterial
	if err := tx.Where("account_id = ?", accountID).Find(&materials).Error; err != nil {
		return fmt.Errorf("load material costs: %w", err)
	}
	costs := make(map[string]decimal.Decimal, len(materials))
	for _, m := range materials {
		costs[m.ID] = m.CostPerUnit
	}

	for i := range products {
		if err := tx.Model(&models.FinishedProduct{}).Where("id = ?", products[i].ID).
			Update("final_cost", products[i].RecipeCost(costs)).Error; err != nil {
			return fmt.Errorf("update cost of %q: %w", products[i].Name, err)
		}
	}
	return nil
}
