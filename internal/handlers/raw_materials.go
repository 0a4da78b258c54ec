package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bizview/internal/apperr"
	applog "bizview/internal/log"
	"bizview/internal/stock"
	"bizview/models"
)

const rawMaterialsPrefix = "/app/api/raw-materials"

// rawMaterialRequest creates or edits a raw material. Quantity only seeds the opening stock on
// create; afterwards it moves through purchases, production, sales and stock adjustments.
type rawMaterialRequest struct {
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
	Quantity    *float64        `json:"quantity"`
	MinStock    float64         `json:"min_stock"`
	Supplier    string          `json:"supplier"`
	Code        string          `json:"code"`
}

type rawMaterialResponse struct {
	models.RawMaterial
	LowStock bool `json:"low_stock"`
}

func (p *rawMaterialRequest) normalize() error {
	p.Description = strings.TrimSpace(p.Description)
	p.Unit = strings.TrimSpace(p.Unit)
	p.Supplier = strings.TrimSpace(p.Supplier)
	p.Code = strings.TrimSpace(p.Code)

	switch {
	case p.Description == "":
		return apperr.Validation("description is required")
	case p.Unit == "":
		return apperr.Validation("unit is required")
	case p.CostPerUnit.IsNegative():
		return apperr.Validation("cost_per_unit must not be negative")
	case p.Quantity != nil && *p.Quantity < 0:
		return apperr.Validation("quantity must not be negative")
	case p.MinStock < 0:
		return apperr.Validation("min_stock must not be negative")
	}
	return nil
}

func projectRawMaterial(m models.RawMaterial) rawMaterialResponse {
	return rawMaterialResponse{RawMaterial: m, LowStock: m.LowStock()}
}

// RawMaterialResource handles REST-style interactions for raw material records.
func RawMaterialResource(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	id, ok := resourcePath(r, rawMaterialsPrefix)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			listRawMaterials(w, r, userID)
		case http.MethodPost:
			createRawMaterial(w, r, userID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		showRawMaterial(w, r, id, userID)
	case http.MethodPut:
		updateRawMaterial(w, r, id, userID)
	case http.MethodDelete:
		deleteRawMaterial(w, r, id, userID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listRawMaterials(w http.ResponseWriter, r *http.Request, userID uint) {
	ctx := r.Context()
	query := database.WithContext(ctx).Where("account_id = ?", userID).Order("description asc")
	if low, _ := strconv.ParseBool(r.URL.Query().Get("low_stock")); low {
		query = query.Where("quantity <= min_stock")
	}
	if search := strings.TrimSpace(r.URL.Query().Get("q")); search != "" {
		query = query.Where("lower(description) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var results []models.RawMaterial
	if err := query.Find(&results).Error; err != nil {
		applog.Error(ctx, "failed to list raw materials", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load raw materials")
		return
	}

	responses := make([]rawMaterialResponse, 0, len(results))
	for _, m := range results {
		responses = append(responses, projectRawMaterial(m))
	}
	writeJSON(w, http.StatusOK, responses)
}

func findRawMaterial(ctx context.Context, id string, userID uint) (*models.RawMaterial, error) {
	var material models.RawMaterial
	if err := database.WithContext(ctx).Where("id = ? AND account_id = ?", id, userID).First(&material).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("raw material", id)
		}
		return nil, err
	}
	return &material, nil
}

func showRawMaterial(w http.ResponseWriter, r *http.Request, id string, userID uint) {
	material, err := findRawMaterial(r.Context(), id, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectRawMaterial(*material))
}

func createRawMaterial(w http.ResponseWriter, r *http.Request, userID uint) {
	var payload rawMaterialRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	if err := payload.normalize(); err != nil {
		writeError(w, r, err)
		return
	}

	material := models.RawMaterial{
		Record:      models.Record{AccountID: userID},
		Description: payload.Description,
		Unit:        payload.Unit,
		CostPerUnit: payload.CostPerUnit,
		MinStock:    payload.MinStock,
		Supplier:    payload.Supplier,
		Code:        payload.Code,
	}
	if payload.Quantity != nil {
		material.Quantity = *payload.Quantity
	}
	if err := database.WithContext(r.Context()).Create(&material).Error; err != nil {
		applog.Error(r.Context(), "failed to create raw material", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to create raw material")
		return
	}

	applog.Info(r.Context(), "raw material created", "id", material.ID, "account", userID)
	writeJSON(w, http.StatusCreated, projectRawMaterial(material))
}

func updateRawMaterial(w http.ResponseWriter, r *http.Request, id string, userID uint) {
	ctx := r.Context()
	if !requireStockService(w) {
		return
	}

	var payload rawMaterialRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	if err := payload.normalize(); err != nil {
		writeError(w, r, err)
		return
	}
	if payload.Quantity != nil {
		applog.Debug(ctx, "ignoring quantity on raw material update", "id", id)
	}

	updated, err := stockService.UpdateMaterial(ctx, userID, id, stock.MaterialChanges{
		Description: payload.Description,
		Unit:        payload.Unit,
		CostPerUnit: payload.CostPerUnit,
		MinStock:    payload.MinStock,
		Supplier:    payload.Supplier,
		Code:        payload.Code,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.Info(ctx, "raw material updated", "id", id, "account", userID)
	writeJSON(w, http.StatusOK, projectRawMaterial(*updated))
}

func deleteRawMaterial(w http.ResponseWriter, r *http.Request, id string, userID uint) {
	ctx := r.Context()
	if _, err := findRawMaterial(ctx, id, userID); err != nil {
		writeError(w, r, err)
		return
	}

	var usage int64
	if err := database.WithContext(ctx).Model(&models.RecipeItem{}).
		Joins("JOIN finished_products ON finished_products.id = recipe_items.product_id").
		Where("recipe_items.raw_material_id = ? AND finished_products.account_id = ?", id, userID).
		Count(&usage).Error; err != nil {
		applog.Error(ctx, "failed to check raw material usage", "error", err, "id", id)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete raw material")
		return
	}
	if usage > 0 {
		writeError(w, r, apperr.Validation("This raw material is used in product recipes. Remove it from those recipes first."))
		return
	}

	if err := database.WithContext(ctx).Where("id = ? AND account_id = ?", id, userID).Delete(&models.RawMaterial{}).Error; err != nil {
		applog.Error(ctx, "failed to delete raw material", "error", err, "id", id)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete raw material")
		return
	}
	applog.Info(ctx, "raw material deleted", "id", id, "account", userID)
	w.WriteHeader(http.StatusNoContent)
}
