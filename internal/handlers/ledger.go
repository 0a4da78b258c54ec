package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bizview/internal/apperr"
	applog "bizview/internal/log"
	"bizview/models"
)

const (
	revenuesPrefix = "/app/api/revenues"
	expensesPrefix = "/app/api/expenses"
)

type ledgerEntryRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"`
	Category      string          `json:"category"`
	Source        string          `json:"source"`
	Description   string          `json:"description"`
	PaymentMethod string          `json:"payment_method"`
}

type ledgerEntry struct {
	amount        decimal.Decimal
	date          time.Time
	category      string
	source        string
	description   string
	paymentMethod string
}

func (p ledgerEntryRequest) normalize() (ledgerEntry, error) {
	if !p.Amount.IsPositive() {
		return ledgerEntry{}, apperr.Validation("amount must be greater than zero")
	}
	date, err := parseDate(p.Date)
	if err != nil {
		return ledgerEntry{}, err
	}
	if date.IsZero() {
		date = nowFunc().UTC()
	}
	method, ok := models.NormalizePaymentMethod(p.PaymentMethod)
	if !ok {
		return ledgerEntry{}, apperr.Validation("unknown payment method " + p.PaymentMethod)
	}
	category := strings.ToLower(strings.TrimSpace(p.Category))
	if category == "" {
		category = "other"
	}
	return ledgerEntry{
		amount:        p.Amount.Round(2),
		date:          date,
		category:      category,
		source:        strings.TrimSpace(p.Source),
		description:   strings.TrimSpace(p.Description),
		paymentMethod: method,
	}, nil
}

// RevenueResource lists and records manual revenues. Revenues written by a sale can only be removed
// by cancelling the sale.
func RevenueResource(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	id, ok := resourcePath(r, revenuesPrefix)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			from, to, err := periodFromQuery(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			var revenues []models.Revenue
			if err := database.WithContext(ctx).
				Where("account_id = ? AND date >= ? AND date < ?", userID, from, to).
				Order("date desc").
				Find(&revenues).Error; err != nil {
				applog.Error(ctx, "failed to list revenues", "error", err)
				writeJSONError(w, http.StatusInternalServerError, "unable to load revenues")
				return
			}
			writeJSON(w, http.StatusOK, revenues)
		case http.MethodPost:
			var payload ledgerEntryRequest
			if err := decodeJSON(w, r, &payload); err != nil {
				writeError(w, r, err)
				return
			}
			entry, err := payload.normalize()
			if err != nil {
				writeError(w, r, err)
				return
			}
			revenue := models.Revenue{
				Record:        models.Record{AccountID: userID},
				Amount:        entry.amount,
				Date:          entry.date,
				Category:      entry.category,
				Source:        entry.source,
				Description:   entry.description,
				PaymentMethod: entry.paymentMethod,
			}
			if err := database.WithContext(ctx).Create(&revenue).Error; err != nil {
				applog.Error(ctx, "failed to create revenue", "error", err)
				writeJSONError(w, http.StatusInternalServerError, "unable to create revenue")
				return
			}
			writeJSON(w, http.StatusCreated, revenue)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var revenue models.Revenue
	if err := database.WithContext(ctx).Where("id = ? AND account_id = ?", id, userID).First(&revenue).Error; err != nil {
		if isNotFound(err) {
			writeError(w, r, apperr.NotFound("revenue", id))
			return
		}
		writeError(w, r, err)
		return
	}
	if revenue.SaleID != nil {
		writeError(w, r, apperr.Validation("This revenue was created by a sale. Cancel the sale to remove it."))
		return
	}
	if err := database.WithContext(ctx).Where("id = ? AND account_id = ? AND sale_id IS NULL", id, userID).
		Delete(&models.Revenue{}).Error; err != nil {
		applog.Error(ctx, "failed to delete revenue", "error", err, "id", id)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete revenue")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExpenseResource handles REST-style interactions for expense records.
func ExpenseResource(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	id, ok := resourcePath(r, expensesPrefix)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			from, to, err := periodFromQuery(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			query := database.WithContext(ctx).
				Where("account_id = ? AND date >= ? AND date < ?", userID, from, to).
				Order("date desc")
			if category := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category"))); category != "" {
				query = query.Where("category = ?", category)
			}
			var expenses []models.Expense
			if err := query.Find(&expenses).Error; err != nil {
				applog.Error(ctx, "failed to list expenses", "error", err)
				writeJSONError(w, http.StatusInternalServerError, "unable to load expenses")
				return
			}
			writeJSON(w, http.StatusOK, expenses)
		case http.MethodPost:
			var payload ledgerEntryRequest
			if err := decodeJSON(w, r, &payload); err != nil {
				writeError(w, r, err)
				return
			}
			entry, err := payload.normalize()
			if err != nil {
				writeError(w, r, err)
				return
			}
			expense := models.Expense{
				Record:        models.Record{AccountID: userID},
				Amount:        entry.amount,
				Date:          entry.date,
				Category:      entry.category,
				Description:   entry.description,
				PaymentMethod: entry.paymentMethod,
			}
			if err := database.WithContext(ctx).Create(&expense).Error; err != nil {
				applog.Error(ctx, "failed to create expense", "error", err)
				writeJSONError(w, http.StatusInternalServerError, "unable to create expense")
				return
			}
			writeJSON(w, http.StatusCreated, expense)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	var expense models.Expense
	if err := database.WithContext(ctx).Where("id = ? AND account_id = ?", id, userID).First(&expense).Error; err != nil {
		if isNotFound(err) {
			writeError(w, r, apperr.NotFound("expense", id))
			return
		}
		writeError(w, r, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, expense)
	case http.MethodPut:
		var payload ledgerEntryRequest
		if err := decodeJSON(w, r, &payload); err != nil {
			writeError(w, r, err)
			return
		}
		entry, err := payload.normalize()
		if err != nil {
			writeError(w, r, err)
			return
		}
		expense.Amount = entry.amount
		expense.Date = entry.date
		expense.Category = entry.category
		expense.Description = entry.description
		expense.PaymentMethod = entry.paymentMethod
		if err := database.WithContext(ctx).Save(&expense).Error; err != nil {
			applog.Error(ctx, "failed to update expense", "error", err, "id", id)
			writeJSONError(w, http.StatusInternalServerError, "unable to update expense")
			return
		}
		writeJSON(w, http.StatusOK, expense)
	case http.MethodDelete:
		if err := database.WithContext(ctx).Where("id = ? AND account_id = ?", id, userID).Delete(&models.Expense{}).Error; err != nil {
			applog.Error(ctx, "failed to delete expense", "error", err, "id", id)
			writeJSONError(w, http.StatusInternalServerError, "unable to delete expense")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
