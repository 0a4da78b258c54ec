package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	applog "bizview/internal/log"
	"bizview/internal/stock"
	"bizview/models"
)

const (
	productionPrefix  = "/app/api/production"
	salesPrefix       = "/app/api/sales"
	purchasesPrefix   = "/app/api/purchases"
	adjustmentsPrefix = "/app/api/stock-adjustments"
)

type produceRequest struct {
	ProductID string `json:"product_id"`
	FlavorID  string `json:"flavor_id"`
	Quantity  int    `json:"quantity"`
	Date      string `json:"date"`
}

type sellRequest struct {
	ProductID     string           `json:"product_id"`
	FlavorID      string           `json:"flavor_id"`
	Quantity      int              `json:"quantity"`
	UnitPrice     *decimal.Decimal `json:"unit_price"`
	Date          string           `json:"date"`
	PaymentMethod string           `json:"payment_method"`
	Location      string           `json:"location"`
}

type purchaseRequest struct {
	RawMaterialID string          `json:"raw_material_id"`
	Quantity      float64         `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	Date          string          `json:"date"`
	Supplier      string          `json:"supplier"`
}

type adjustmentRequest struct {
	RawMaterialID string  `json:"raw_material_id"`
	Delta         float64 `json:"delta"`
	Reason        string  `json:"reason"`
}

func requireStockService(w http.ResponseWriter) bool {
	if stockService == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return false
	}
	return true
}

// ProductionResource lists production runs and applies produce events.
func ProductionResource(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	if id, ok := resourcePath(r, productionPrefix); !ok || id != "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		var runs []models.ProductionRun
		query := database.WithContext(r.Context()).Where("account_id = ?", userID).Order("date desc")
		if productID := strings.TrimSpace(r.URL.Query().Get("product_id")); productID != "" {
			query = query.Where("product_id = ?", productID)
		}
		if err := query.Find(&runs).Error; err != nil {
			applog.Error(r.Context(), "failed to list production runs", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "unable to load production runs")
			return
		}
		writeJSON(w, http.StatusOK, runs)
	case http.MethodPost:
		if !requireStockService(w) {
			return
		}
		var payload produceRequest
		if err := decodeJSON(w, r, &payload); err != nil {
			writeActionError(w, r, err)
			return
		}
		date, err := parseDate(payload.Date)
		if err != nil {
			writeActionError(w, r, err)
			return
		}
		run, err := stockService.Produce(r.Context(), userID, stock.ProduceRequest{
			ProductID: payload.ProductID,
			FlavorID:  payload.FlavorID,
			Quantity:  payload.Quantity,
			Date:      date,
		})
		if err != nil {
			writeActionError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, actionResult{
			Success: true,
			Message: fmt.Sprintf("Produced %d units.", run.Quantity),
			Data:    run,
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SaleResource lists and shows sales, applies sell events and cancels sales on DELETE.
func SaleResource(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	id, ok := resourcePath(r, salesPrefix)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			listSales(w, r, userID)
		case http.MethodPost:
			sell(w, r, userID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		var sale models.Sale
		if err := database.WithContext(r.Context()).Where("id = ? AND account_id = ?", id, userID).First(&sale).Error; err != nil {
			if isNotFound(err) {
				http.NotFound(w, r)
				return
			}
			applog.Error(r.Context(), "failed to load sale", "error", err, "id", id)
			writeJSONError(w, http.StatusInternalServerError, "unable to load sale")
			return
		}
		writeJSON(w, http.StatusOK, sale)
	case http.MethodDelete:
		if !requireStockService(w) {
			return
		}
		sale, err := stockService.CancelSale(r.Context(), userID, id)
		if err != nil {
			writeActionError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, actionResult{
			Success: true,
			Message: fmt.Sprintf("Sale cancelled. %d units returned to stock.", sale.Quantity),
			Data:    sale,
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listSales(w http.ResponseWriter, r *http.Request, userID uint) {
	from, to, err := periodFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var sales []models.Sale
	if err := database.WithContext(r.Context()).
		Where("account_id = ? AND date >= ? AND date < ?", userID, from, to).
		Order("date desc").
		Find(&sales).Error; err != nil {
		applog.Error(r.Context(), "failed to list sales", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load sales")
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func sell(w http.ResponseWriter, r *http.Request, userID uint) {
	if !requireStockService(w) {
		return
	}
	var payload sellRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeActionError(w, r, err)
		return
	}
	date, err := parseDate(payload.Date)
	if err != nil {
		writeActionError(w, r, err)
		return
	}

	result, err := stockService.Sell(r.Context(), userID, stock.SellRequest{
		ProductID:     payload.ProductID,
		FlavorID:      payload.FlavorID,
		Quantity:      payload.Quantity,
		UnitPrice:     payload.UnitPrice,
		Date:          date,
		PaymentMethod: payload.PaymentMethod,
		Location:      payload.Location,
	})
	if err != nil {
		writeActionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, actionResult{
		Success: true,
		Message: fmt.Sprintf("Sale of %d x %s (%s) recorded.", result.Sale.Quantity, result.Sale.ProductName, result.Sale.FlavorName),
		Data:    result,
	})
}

// PurchaseResource lists purchases and applies purchase events.
func PurchaseResource(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	if id, ok := resourcePath(r, purchasesPrefix); !ok || id != "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		from, to, err := periodFromQuery(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var purchases []models.Purchase
		if err := database.WithContext(r.Context()).
			Where("account_id = ? AND date >= ? AND date < ?", userID, from, to).
			Order("date desc").
			Find(&purchases).Error; err != nil {
			applog.Error(r.Context(), "failed to list purchases", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "unable to load purchases")
			return
		}
		writeJSON(w, http.StatusOK, purchases)
	case http.MethodPost:
		if !requireStockService(w) {
			return
		}
		var payload purchaseRequest
		if err := decodeJSON(w, r, &payload); err != nil {
			writeActionError(w, r, err)
			return
		}
		date, err := parseDate(payload.Date)
		if err != nil {
			writeActionError(w, r, err)
			return
		}
		purchase, err := stockService.Purchase(r.Context(), userID, stock.PurchaseRequest{
			RawMaterialID: payload.RawMaterialID,
			Quantity:      payload.Quantity,
			UnitCost:      payload.UnitCost,
			Date:          date,
			Supplier:      payload.Supplier,
		})
		if err != nil {
			writeActionError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, actionResult{
			Success: true,
			Message: "Purchase recorded.",
			Data:    purchase,
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// StockAdjustmentResource applies relative quantity corrections to raw materials.
func StockAdjustmentResource(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	if id, ok := resourcePath(r, adjustmentsPrefix); !ok || id != "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !requireStockService(w) {
		return
	}

	var payload adjustmentRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeActionError(w, r, err)
		return
	}
	material, err := stockService.Adjust(r.Context(), userID, stock.AdjustRequest{
		RawMaterialID: payload.RawMaterialID,
		Delta:         payload.Delta,
		Reason:        payload.Reason,
	})
	if err != nil {
		writeActionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResult{
		Success: true,
		Message: fmt.Sprintf("Stock of %s adjusted.", material.Description),
		Data:    projectRawMaterial(*material),
	})
}
