package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"bizview/internal/apperr"
	applog "bizview/internal/log"
	"bizview/models"
)

type settingsRequest struct {
	TaxRate             float64  `json:"tax_rate"`
	CardFeeRate         float64  `json:"card_fee_rate"`
	DebitFeeRate        float64  `json:"debit_fee_rate"`
	PixFeeRate          float64  `json:"pix_fee_rate"`
	PlatformFeeRate     float64  `json:"platform_fee_rate"`
	DefaultProfitMargin float64  `json:"default_profit_margin"`
	ProductCategories   []string `json:"product_categories"`
}

func (p settingsRequest) validate() error {
	rates := []struct {
		name string
		rate float64
	}{
		{"tax_rate", p.TaxRate},
		{"card_fee_rate", p.CardFeeRate},
		{"debit_fee_rate", p.DebitFeeRate},
		{"pix_fee_rate", p.PixFeeRate},
		{"platform_fee_rate", p.PlatformFeeRate},
	}
	for _, r := range rates {
		if r.rate < 0 || r.rate >= 1 {
			return apperr.Validation(r.name + " must be a fraction between 0 and 1")
		}
	}
	if p.DefaultProfitMargin < 0 {
		return apperr.Validation("default_profit_margin must not be negative")
	}
	return nil
}

// loadSettings returns the saved settings of the account or the defaults when none exist.
func loadSettings(ctx context.Context, db *gorm.DB, userID uint) (models.Settings, error) {
	if db == nil {
		return models.Settings{}, gorm.ErrInvalidDB
	}
	var settings models.Settings
	err := db.WithContext(ctx).Where("account_id = ?", userID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultSettings(userID), nil
	}
	if err != nil {
		return models.Settings{}, err
	}
	return settings, nil
}

// SettingsResource reads and replaces the account settings. Concurrent writes are last-write-wins.
func SettingsResource(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		settings, err := loadSettings(ctx, database, userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var payload settingsRequest
		if err := decodeJSON(w, r, &payload); err != nil {
			writeError(w, r, err)
			return
		}
		if err := payload.validate(); err != nil {
			writeError(w, r, err)
			return
		}

		categories := datatypes.JSONSlice[string]{}
		seen := map[string]struct{}{}
		for _, c := range payload.ProductCategories {
			c = strings.TrimSpace(c)
			key := strings.ToLower(c)
			if _, dup := seen[key]; c == "" || dup {
				continue
			}
			seen[key] = struct{}{}
			categories = append(categories, c)
		}

		settings := models.Settings{
			AccountID:           userID,
			TaxRate:             payload.TaxRate,
			CardFeeRate:         payload.CardFeeRate,
			DebitFeeRate:        payload.DebitFeeRate,
			PixFeeRate:          payload.PixFeeRate,
			PlatformFeeRate:     payload.PlatformFeeRate,
			DefaultProfitMargin: payload.DefaultProfitMargin,
			ProductCategories:   categories,
		}
		if err := database.WithContext(ctx).Save(&settings).Error; err != nil {
			applog.Error(ctx, "failed to save settings", "error", err, "account", userID)
			writeJSONError(w, http.StatusInternalServerError, "unable to save settings")
			return
		}
		applog.Info(ctx, "settings saved", "account", userID)
		writeJSON(w, http.StatusOK, settings)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
