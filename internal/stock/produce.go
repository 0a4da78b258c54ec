package stock

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bizview/internal/apperr"
	"bizview/models"
)

// ProduceRequest asks for Quantity units of a product flavor to be made from its recipe.
type ProduceRequest struct {
	ProductID string
	FlavorID  string
	Quantity  int
	Date      time.Time
}

func (r ProduceRequest) validate() error {
	if err := requireID("product_id", r.ProductID); err != nil {
		return err
	}
	if err := requireID("flavor_id", r.FlavorID); err != nil {
		return err
	}
	if r.Quantity <= 0 {
		return apperr.Validation("quantity must be greater than zero")
	}
	return nil
}

// Produce consumes the recipe materials for req.Quantity units and adds them to the flavor's stock.
func (s *Service) Produce(ctx context.Context, accountID uint, req ProduceRequest) (*models.ProductionRun, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var run models.ProductionRun
	err := s.run(ctx, KindProduce, accountID, func(tx *gorm.DB) error {
		product, err := loadProduct(tx, accountID, req.ProductID)
		if err != nil {
			return err
		}
		flavor := product.FlavorByID(req.FlavorID)
		if flavor == nil {
			return apperr.NotFound("flavor", req.FlavorID)
		}
		if len(product.Recipe) == 0 {
			return apperr.Validation("product " + product.Name + " has no recipe")
		}

		order := make([]string, 0, len(product.Recipe))
		required := make(map[string]float64, len(product.Recipe))
		for _, item := range product.Recipe {
			if _, seen := required[item.RawMaterialID]; !seen {
				order = append(order, item.RawMaterialID)
			}
			required[item.RawMaterialID] += item.QuantityPerUnit * float64(req.Quantity)
		}

		var materials []models.RawMaterial
		if err := lockForUpdate(tx).
			Where("account_id = ? AND id IN ?", accountID, order).
			Find(&materials).Error; err != nil {
			return err
		}
		byID := make(map[string]models.RawMaterial, len(materials))
		for _, m := range materials {
			byID[m.ID] = m
		}

		for _, id := range order {
			material, ok := byID[id]
			if !ok {
				return apperr.NotFound("raw material", id)
			}
			need := roundQuantity(required[id])
			if material.Quantity < need {
				return apperr.InsufficientStock(material.Description, need, material.Quantity)
			}
		}

		totalCost := decimal.Zero
		for _, id := range order {
			material := byID[id]
			need := roundQuantity(required[id])
			res := tx.Model(&models.RawMaterial{}).
				Where("id = ? AND account_id = ? AND quantity >= ?", id, accountID, need).
				Update("quantity", gorm.Expr("quantity - ?", need))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperr.InsufficientStock(material.Description, need, material.Quantity)
			}
			totalCost = totalCost.Add(material.CostPerUnit.Mul(decimal.NewFromFloat(need)))
		}

		if err := tx.Model(&models.Flavor{}).
			Where("id = ? AND product_id = ?", flavor.ID, product.ID).
			Update("stock", gorm.Expr("stock + ?", req.Quantity)).Error; err != nil {
			return err
		}

		run = models.ProductionRun{
			Record:    models.Record{AccountID: accountID},
			ProductID: product.ID,
			FlavorID:  flavor.ID,
			Quantity:  req.Quantity,
			TotalCost: totalCost.Round(4),
			Date:      s.dateOrNow(req.Date),
		}
		return tx.Create(&run).Error
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func loadProduct(tx *gorm.DB, accountID uint, productID string) (*models.FinishedProduct, error) {
	var product models.FinishedProduct
	err := tx.Preload("Recipe").Preload("Flavors").
		Where("account_id = ? AND id = ?", accountID, productID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product", productID)
		}
		return nil, err
	}
	return &product, nil
}
