package models

import "testing"

func TestNormalizePaymentMethod(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		value  string
		want   string
		wantOK bool
	}{
		{"blank defaults to cash", "  ", PaymentCash, true},
		{"card", "card", PaymentCard, true},
		{"mixed case pix", " PIX ", PaymentPix, true},
		{"unknown", "barter", "barter", false},
	}

	for _, tt := range cases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := NormalizePaymentMethod(tt.value)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("NormalizePaymentMethod(%q) = (%q, %t), want (%q, %t)", tt.value, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSettingsFeeRate(t *testing.T) {
	t.Parallel()

	s := Settings{CardFeeRate: 0.04, DebitFeeRate: 0.02, PixFeeRate: 0.01}
	if got := s.FeeRate(PaymentCard); got != 0.04 {
		t.Fatalf("card fee = %v, want 0.04", got)
	}
	if got := s.FeeRate(PaymentCash); got != 0 {
		t.Fatalf("cash fee = %v, want 0", got)
	}
}

func TestDefaultSettings(t *testing.T) {
	t.Parallel()

	s := DefaultSettings(9)
	if s.AccountID != 9 || s.DefaultProfitMargin != DefaultProfitMargin {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if s.ProductCategories == nil {
		t.Fatal("expected empty category list, got nil")
	}
}

func TestRawMaterialLowStock(t *testing.T) {
	t.Parallel()

	if !(RawMaterial{Quantity: 2, MinStock: 2}).LowStock() {
		t.Fatal("expected quantity at threshold to be low stock")
	}
	if (RawMaterial{Quantity: 3, MinStock: 2}).LowStock() {
		t.Fatal("expected quantity above threshold not to be low stock")
	}
}
