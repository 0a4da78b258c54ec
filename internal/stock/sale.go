package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bizview/internal/apperr"
	"bizview/models"
)

// SellRequest describes a sale of one product flavor. A nil UnitPrice sells at the product's
// current sale price.
type SellRequest struct {
	ProductID     string
	FlavorID      string
	Quantity      int
	UnitPrice     *decimal.Decimal
	Date          time.Time
	PaymentMethod string
	Location      string
}

func (r *SellRequest) validate() error {
	if err := requireID("product_id", r.ProductID); err != nil {
		return err
	}
	if err := requireID("flavor_id", r.FlavorID); err != nil {
		return err
	}
	if r.Quantity <= 0 {
		return apperr.Validation("quantity must be greater than zero")
	}
	if r.UnitPrice != nil && r.UnitPrice.IsNegative() {
		return apperr.Validation("unit_price must not be negative")
	}
	method, ok := models.NormalizePaymentMethod(r.PaymentMethod)
	if !ok {
		return apperr.Validation("unknown payment method " + r.PaymentMethod)
	}
	r.PaymentMethod = method
	r.Location = strings.TrimSpace(r.Location)
	return nil
}

// SaleResult is the pair of records written by a sale.
type SaleResult struct {
	Sale    models.Sale    `json:"sale"`
	Revenue models.Revenue `json:"revenue"`
}

// Sell decrements the flavor stock and records the sale together with its revenue entry.
func (s *Service) Sell(ctx context.Context, accountID uint, req SellRequest) (*SaleResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var result SaleResult
	err := s.run(ctx, KindSell, accountID, func(tx *gorm.DB) error {
		product, err := loadProduct(tx, accountID, req.ProductID)
		if err != nil {
			return err
		}

		var flavor models.Flavor
		if err := lockForUpdate(tx).
			Where("id = ? AND product_id = ?", req.FlavorID, product.ID).
			First(&flavor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("flavor", req.FlavorID)
			}
			return err
		}

		item := fmt.Sprintf("%s (%s)", product.Name, flavor.Name)
		if flavor.Stock < req.Quantity {
			return apperr.InsufficientStock(item, float64(req.Quantity), float64(flavor.Stock))
		}

		res := tx.Model(&models.Flavor{}).
			Where("id = ? AND stock >= ?", flavor.ID, req.Quantity).
			Update("stock", gorm.Expr("stock - ?", req.Quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.InsufficientStock(item, float64(req.Quantity), float64(flavor.Stock))
		}

		unitPrice := product.SalePrice
		if req.UnitPrice != nil {
			unitPrice = *req.UnitPrice
		}
		total := unitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)
		date := s.dateOrNow(req.Date)

		saleID := uuid.NewString()
		revenue := models.Revenue{
			Record:        models.Record{ID: uuid.NewString(), AccountID: accountID},
			Amount:        total,
			Date:          date,
			Category:      RevenueCategorySales,
			Source:        product.Name,
			PaymentMethod: req.PaymentMethod,
			Description:   fmt.Sprintf("%d x %s", req.Quantity, item),
			SaleID:        &saleID,
		}
		sale := models.Sale{
			Record:        models.Record{ID: saleID, AccountID: accountID},
			ProductID:     product.ID,
			FlavorID:      flavor.ID,
			ProductName:   product.Name,
			FlavorName:    flavor.Name,
			Quantity:      req.Quantity,
			UnitPrice:     unitPrice,
			TotalAmount:   total,
			UnitCost:      product.FinalCost,
			Date:          date,
			PaymentMethod: req.PaymentMethod,
			Location:      req.Location,
			RevenueID:     revenue.ID,
		}

		if err := tx.Create(&sale).Error; err != nil {
			return err
		}
		if err := tx.Create(&revenue).Error; err != nil {
			return err
		}
		result = SaleResult{Sale: sale, Revenue: revenue}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelSale restores the sold quantity to the flavor and deletes the sale with its revenue entry.
// It fails without changes when the product or flavor no longer exists.
func (s *Service) CancelSale(ctx context.Context, accountID uint, saleID string) (*models.Sale, error) {
	if err := requireID("sale id", saleID); err != nil {
		return nil, err
	}

	var sale models.Sale
	err := s.run(ctx, KindCancelSale, accountID, func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			Where("account_id = ? AND id = ?", accountID, saleID).
			First(&sale).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("sale", saleID)
			}
			return err
		}

		var productCount int64
		if err := tx.Model(&models.FinishedProduct{}).
			Where("account_id = ? AND id = ?", accountID, sale.ProductID).
			Count(&productCount).Error; err != nil {
			return err
		}
		if productCount == 0 {
			return apperr.NotFound("product", sale.ProductID)
		}

		res := tx.Model(&models.Flavor{}).
			Where("id = ? AND product_id = ?", sale.FlavorID, sale.ProductID).
			Update("stock", gorm.Expr("stock + ?", sale.Quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("flavor", sale.FlavorID)
		}

		if err := tx.Where("account_id = ? AND sale_id = ?", accountID, sale.ID).
			Delete(&models.Revenue{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Sale{}, "account_id = ? AND id = ?", accountID, sale.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}
