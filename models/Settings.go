package models

import (
	"time"

	"gorm.io/datatypes"
)

// DefaultProfitMargin is applied when an account has not saved settings yet.
const DefaultProfitMargin = 0.3

// Settings holds per-account rates and catalog options. Writes replace the whole row.
type Settings struct {
	AccountID           uint                        `gorm:"primaryKey;autoIncrement:false" json:"-"`
	TaxRate             float64                     `gorm:"not null;default:0" json:"tax_rate"`
	CardFeeRate         float64                     `gorm:"not null;default:0" json:"card_fee_rate"`
	DebitFeeRate        float64                     `gorm:"not null;default:0" json:"debit_fee_rate"`
	PixFeeRate          float64                     `gorm:"not null;default:0" json:"pix_fee_rate"`
	PlatformFeeRate     float64                     `gorm:"not null;default:0" json:"platform_fee_rate"`
	DefaultProfitMargin float64                     `gorm:"not null;default:0" json:"default_profit_margin"`
	ProductCategories   datatypes.JSONSlice[string] `json:"product_categories"`
	UpdatedAt           time.Time                   `json:"updated_at"`
}

// DefaultSettings returns the settings used before an account saves its own.
func DefaultSettings(accountID uint) Settings {
	return Settings{
		AccountID:           accountID,
		DefaultProfitMargin: DefaultProfitMargin,
		ProductCategories:   datatypes.JSONSlice[string]{},
	}
}

// FeeRate returns the processor fee for a payment method.
func (s Settings) FeeRate(method string) float64 {
	switch method {
	case PaymentCard:
		return s.CardFeeRate
	case PaymentDebit:
		return s.DebitFeeRate
	case PaymentPix:
		return s.PixFeeRate
	default:
		return 0
	}
}
