package stock

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bizview/internal/apperr"
	applog "bizview/internal/log"
	"bizview/models"
)

// MaterialChanges are the catalogue fields of a raw material. The on-hand quantity is not one of
// them; it only moves through stock events.
type MaterialChanges struct {
	Description string
	Unit        string
	CostPerUnit decimal.Decimal
	MinStock    float64
	Supplier    string
	Code        string
}

// AdjustRequest corrects a raw material's quantity by Delta, for counts, losses or spoilage.
type AdjustRequest struct {
	RawMaterialID string
	Delta         float64
	Reason        string
}

func (r AdjustRequest) validate() error {
	if err := requireID("raw_material_id", r.RawMaterialID); err != nil {
		return err
	}
	if r.Delta == 0 || math.IsNaN(r.Delta) || math.IsInf(r.Delta, 0) {
		return apperr.Validation("delta must be a non-zero number")
	}
	return nil
}

// UpdateMaterial writes the catalogue fields of a raw material under its row lock, so it serialises
// with produce and purchase events, and refreshes product costs when the unit cost changed.
func (s *Service) UpdateMaterial(ctx context.Context, accountID uint, id string, changes MaterialChanges) (*models.RawMaterial, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}

	var material models.RawMaterial
	err := s.run(ctx, KindEditMaterial, accountID, func(tx *gorm.DB) error {
		current, err := lockMaterial(tx, accountID, id)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.RawMaterial{}).
			Where("id = ? AND account_id = ?", id, accountID).
			Updates(map[string]any{
				"description":   changes.Description,
				"unit":          changes.Unit,
				"cost_per_unit": changes.CostPerUnit,
				"min_stock":     changes.MinStock,
				"supplier":      changes.Supplier,
				"code":          changes.Code,
			}).Error; err != nil {
			return err
		}
		if !current.CostPerUnit.Equal(changes.CostPerUnit) {
			if err := RefreshProductCosts(tx, accountID, id); err != nil {
				return err
			}
		}
		return tx.Where("id = ? AND account_id = ?", id, accountID).First(&material).Error
	})
	if err != nil {
		return nil, err
	}
	return &material, nil
}

// Adjust applies a relative quantity correction. A negative delta larger than the on-hand quantity
// fails with InsufficientStock and changes nothing.
func (s *Service) Adjust(ctx context.Context, accountID uint, req AdjustRequest) (*models.RawMaterial, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var material models.RawMaterial
	err := s.run(ctx, KindAdjust, accountID, func(tx *gorm.DB) error {
		current, err := lockMaterial(tx, accountID, req.RawMaterialID)
		if err != nil {
			return err
		}

		delta := roundQuantity(req.Delta)
		query := tx.Model(&models.RawMaterial{}).Where("id = ? AND account_id = ?", current.ID, accountID)
		if delta < 0 {
			query = query.Where("quantity >= ?", -delta)
		}
		res := query.Update("quantity", gorm.Expr("quantity + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.InsufficientStock(current.Description, -delta, current.Quantity)
		}
		return tx.Where("id = ? AND account_id = ?", current.ID, accountID).First(&material).Error
	})
	if err != nil {
		return nil, err
	}
	applog.Info(ctx, "stock adjusted", "account", accountID, "material", material.ID,
		"delta", req.Delta, "reason", strings.TrimSpace(req.Reason))
	return &material, nil
}

func lockMaterial(tx *gorm.DB, accountID uint, id string) (*models.RawMaterial, error) {
	var material models.RawMaterial
	if err := lockForUpdate(tx).
		Where("account_id = ? AND id = ?", accountID, id).
		First(&material).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("raw material", id)
		}
		return nil, err
	}
	return &material, nil
}
