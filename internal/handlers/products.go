package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bizview/internal/apperr"
	applog "bizview/internal/log"
	"bizview/models"
)

const productsPrefix = "/app/api/products"

type recipeItemRequest struct {
	RawMaterialID   string  `json:"raw_material_id"`
	QuantityPerUnit float64 `json:"quantity_per_unit"`
}

type flavorRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// productRequest creates or replaces a product. A nil SalePrice prices the product at its recipe
// cost plus the account's default profit margin.
type productRequest struct {
	Name      string              `json:"name"`
	Category  string              `json:"category"`
	Unit      string              `json:"unit"`
	Recipe    []recipeItemRequest `json:"recipe"`
	Flavors   []flavorRequest     `json:"flavors"`
	SalePrice *decimal.Decimal    `json:"sale_price"`
}

func (p *productRequest) normalize() error {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	p.Unit = strings.TrimSpace(p.Unit)
	if p.Name == "" {
		return apperr.Validation("name is required")
	}
	if p.Unit == "" {
		p.Unit = "un"
	}
	if p.SalePrice != nil && p.SalePrice.IsNegative() {
		return apperr.Validation("sale_price must not be negative")
	}

	seen := map[string]struct{}{}
	for i := range p.Recipe {
		item := &p.Recipe[i]
		item.RawMaterialID = strings.TrimSpace(item.RawMaterialID)
		if item.RawMaterialID == "" {
			return apperr.Validation("every recipe item needs a raw_material_id")
		}
		if item.QuantityPerUnit <= 0 {
			return apperr.Validation("recipe quantities must be greater than zero")
		}
		if _, dup := seen[item.RawMaterialID]; dup {
			return apperr.Validation("a raw material can only appear once in a recipe")
		}
		seen[item.RawMaterialID] = struct{}{}
	}

	if len(p.Flavors) == 0 {
		p.Flavors = []flavorRequest{{Name: models.DefaultFlavorName}}
	}
	names := map[string]struct{}{}
	for i := range p.Flavors {
		f := &p.Flavors[i]
		f.ID = strings.TrimSpace(f.ID)
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return apperr.Validation("flavor names must not be empty")
		}
		key := strings.ToLower(f.Name)
		if _, dup := names[key]; dup {
			return apperr.Validation(fmt.Sprintf("flavor %q is listed twice", f.Name))
		}
		names[key] = struct{}{}
	}
	return nil
}

// ProductResource handles REST-style interactions for finished products with their recipe and flavors.
func ProductResource(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	id, ok := resourcePath(r, productsPrefix)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			listProducts(w, r, userID)
		case http.MethodPost:
			saveProduct(w, r, "", userID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		showProduct(w, r, id, userID)
	case http.MethodPut:
		saveProduct(w, r, id, userID)
	case http.MethodDelete:
		deleteProduct(w, r, id, userID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listProducts(w http.ResponseWriter, r *http.Request, userID uint) {
	ctx := r.Context()
	query := database.WithContext(ctx).
		Preload("Recipe").
		Preload("Flavors", func(db *gorm.DB) *gorm.DB { return db.Order("name asc") }).
		Where("account_id = ?", userID).
		Order("name asc")
	if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
		query = query.Where("category = ?", category)
	}

	var products []models.FinishedProduct
	if err := query.Find(&products).Error; err != nil {
		applog.Error(ctx, "failed to list products", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load products")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func findProduct(ctx context.Context, db *gorm.DB, id string, userID uint) (*models.FinishedProduct, error) {
	var product models.FinishedProduct
	err := db.WithContext(ctx).
		Preload("Recipe").
		Preload("Flavors", func(db *gorm.DB) *gorm.DB { return db.Order("name asc") }).
		Where("id = ? AND account_id = ?", id, userID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product", id)
		}
		return nil, err
	}
	return &product, nil
}

func showProduct(w http.ResponseWriter, r *http.Request, id string, userID uint) {
	product, err := findProduct(r.Context(), database, id, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// saveProduct creates the product when id is empty and replaces it otherwise. Existing flavors are
// matched by id so their stock survives edits.
func saveProduct(w http.ResponseWriter, r *http.Request, id string, userID uint) {
	ctx := r.Context()

	var payload productRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	if err := payload.normalize(); err != nil {
		writeError(w, r, err)
		return
	}

	var saved *models.FinishedProduct
	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		costs, err := materialCosts(tx, userID, payload.Recipe)
		if err != nil {
			return err
		}
		settings, err := loadSettings(ctx, tx, userID)
		if err != nil {
			return err
		}

		product := &models.FinishedProduct{Record: models.Record{AccountID: userID}}
		if id != "" {
			existing, err := findProduct(ctx, tx, id, userID)
			if err != nil {
				return err
			}
			product = existing
		}

		product.Name = payload.Name
		product.Category = payload.Category
		product.Unit = payload.Unit
		product.Recipe = make([]models.RecipeItem, 0, len(payload.Recipe))
		for _, item := range payload.Recipe {
			product.Recipe = append(product.Recipe, models.RecipeItem{
				RawMaterialID:   item.RawMaterialID,
				QuantityPerUnit: item.QuantityPerUnit,
			})
		}
		product.FinalCost = product.RecipeCost(costs)
		if payload.SalePrice != nil {
			product.SalePrice = payload.SalePrice.Round(2)
		} else {
			product.SalePrice = suggestedSalePrice(product.FinalCost, settings.DefaultProfitMargin)
		}

		flavors, removed, err := mergeFlavors(product.Flavors, payload.Flavors)
		if err != nil {
			return err
		}

		if id == "" {
			product.Flavors = flavors
			if err := tx.Create(product).Error; err != nil {
				return err
			}
			saved = product
			return nil
		}

		if err := tx.Model(&models.FinishedProduct{}).Where("id = ? AND account_id = ?", product.ID, userID).
			Updates(map[string]any{
				"name":       product.Name,
				"category":   product.Category,
				"unit":       product.Unit,
				"final_cost": product.FinalCost,
				"sale_price": product.SalePrice,
			}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", product.ID).Delete(&models.RecipeItem{}).Error; err != nil {
			return err
		}
		for i := range product.Recipe {
			product.Recipe[i].ProductID = product.ID
		}
		if len(product.Recipe) > 0 {
			if err := tx.Create(&product.Recipe).Error; err != nil {
				return err
			}
		}
		if len(removed) > 0 {
			// Stock may have moved since the flavors were read, so the delete re-checks it.
			res := tx.Where("product_id = ? AND id IN ? AND stock = 0", product.ID, removed).Delete(&models.Flavor{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != int64(len(removed)) {
				return apperr.Validation("A flavor being removed received stock in the meantime. Reload the product and try again.")
			}
		}
		for i := range flavors {
			flavors[i].ProductID = product.ID
			if flavors[i].ID == "" {
				if err := tx.Create(&flavors[i]).Error; err != nil {
					return err
				}
				continue
			}
			if err := tx.Model(&models.Flavor{}).Where("id = ? AND product_id = ?", flavors[i].ID, product.ID).
				Update("name", flavors[i].Name).Error; err != nil {
				return err
			}
		}

		saved, err = findProduct(ctx, tx, product.ID, userID)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
		applog.Info(ctx, "product created", "id", saved.ID, "account", userID)
	} else {
		applog.Info(ctx, "product updated", "id", saved.ID, "account", userID)
	}
	writeJSON(w, status, saved)
}

// mergeFlavors matches requested flavors to existing ones by id. It returns the flavors to keep or
// create and the ids to delete. Flavors holding stock cannot be removed.
func mergeFlavors(existing []models.Flavor, requested []flavorRequest) ([]models.Flavor, []string, error) {
	byID := make(map[string]models.Flavor, len(existing))
	for _, f := range existing {
		byID[f.ID] = f
	}

	kept := make(map[string]struct{}, len(requested))
	result := make([]models.Flavor, 0, len(requested))
	for _, req := range requested {
		if req.ID == "" {
			result = append(result, models.Flavor{Name: req.Name})
			continue
		}
		current, ok := byID[req.ID]
		if !ok {
			return nil, nil, apperr.NotFound("flavor", req.ID)
		}
		current.Name = req.Name
		kept[req.ID] = struct{}{}
		result = append(result, current)
	}

	var removed []string
	for _, f := range existing {
		if _, ok := kept[f.ID]; ok {
			continue
		}
		if f.Stock > 0 {
			return nil, nil, apperr.Validation(fmt.Sprintf("Flavor %s still has %d units in stock and cannot be removed.", f.Name, f.Stock))
		}
		removed = append(removed, f.ID)
	}
	return result, removed, nil
}

func materialCosts(tx *gorm.DB, userID uint, recipe []recipeItemRequest) (map[string]decimal.Decimal, error) {
	costs := make(map[string]decimal.Decimal, len(recipe))
	if len(recipe) == 0 {
		return costs, nil
	}
	ids := make([]string, 0, len(recipe))
	for _, item := range recipe {
		ids = append(ids, item.RawMaterialID)
	}

	var materials []models.RawMaterial
	if err := tx.Where("account_id = ? AND id IN ?", userID, ids).Find(&materials).Error; err != nil {
		return nil, err
	}
	for _, m := range materials {
		costs[m.ID] = m.CostPerUnit
	}
	for _, id := range ids {
		if _, ok := costs[id]; !ok {
			return nil, apperr.NotFound("raw material", id)
		}
	}
	return costs, nil
}

func suggestedSalePrice(cost decimal.Decimal, margin float64) decimal.Decimal {
	if margin < 0 {
		margin = 0
	}
	return cost.Mul(decimal.NewFromFloat(1 + margin)).Round(2)
}

func deleteProduct(w http.ResponseWriter, r *http.Request, id string, userID uint) {
	ctx := r.Context()
	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findProduct(ctx, tx, id, userID); err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.RecipeItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.Flavor{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND account_id = ?", id, userID).Delete(&models.FinishedProduct{}).Error
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.Info(ctx, "product deleted", "id", id, "account", userID)
	w.WriteHeader(http.StatusNoContent)
}
