package models

import "strings"

const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentDebit    = "debit"
	PaymentPix      = "pix"
	PaymentTransfer = "transfer"
	PaymentOther    = "other"
)

var paymentMethods = map[string]struct{}{
	PaymentCash:     {},
	PaymentCard:     {},
	PaymentDebit:    {},
	PaymentPix:      {},
	PaymentTransfer: {},
	PaymentOther:    {},
}

// NormalizePaymentMethod lowercases the value and reports whether it is a known method.
// Blank input resolves to cash.
func NormalizePaymentMethod(value string) (string, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return PaymentCash, true
	}
	_, ok := paymentMethods[value]
	return value, ok
}
