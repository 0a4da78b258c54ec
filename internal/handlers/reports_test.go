package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"bizview/internal/reports"
	"bizview/models"
)

func withFixedNow(t *testing.T, now time.Time) {
	t.Helper()
	original := nowFunc
	nowFunc = func() time.Time { return now }
	t.Cleanup(func() { nowFunc = original })
}

func seedLedger(t *testing.T, db *gorm.DB, userID uint, day time.Time) {
	t.Helper()
	saleID := "6a2b3c4d-1e2f-4a5b-8c9d-0e1f2a3b4c5d"
	records := []any{
		&models.Sale{Record: models.Record{ID: saleID, AccountID: userID}, ProductID: "p", FlavorID: "f", ProductName: "Cake", FlavorName: "Chocolate",
			Quantity: 2, UnitPrice: decimal.NewFromInt(50), TotalAmount: decimal.NewFromInt(100), UnitCost: decimal.NewFromInt(20), Date: day, PaymentMethod: models.PaymentPix},
		&models.Revenue{Record: models.Record{AccountID: userID}, Amount: decimal.NewFromInt(100), Date: day, Category: "sales", PaymentMethod: models.PaymentPix, SaleID: &saleID},
		&models.Expense{Record: models.Record{AccountID: userID}, Amount: decimal.NewFromInt(30), Date: day, Category: "rent"},
		&models.Purchase{Record: models.Record{AccountID: userID}, RawMaterialID: "m", Quantity: 1, UnitCost: decimal.NewFromInt(10), TotalCost: decimal.NewFromInt(10), Date: day},
	}
	for _, r := range records {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("seed ledger: %v", err)
		}
	}
}

func TestReportSummaryEndpoint(t *testing.T) {
	sm, cleanup := withTestSessionManager(t)
	t.Cleanup(cleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)
	user := seedUser(t, db, "owner@example.com")
	seedLedger(t, db, user.ID, time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC))

	w := httptest.NewRecorder()
	Reports(w, apiRequest(t, sm, http.MethodGet, "/app/api/reports/summary?from=2026-05-01&to=2026-05-31", nil, user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var summary reports.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if !summary.Revenue.Equal(decimal.NewFromInt(100)) || summary.UnitsSold != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	// 100 revenue - 30 expenses - 10 purchases, no fees or taxes configured.
	if !summary.NetProfit.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected net profit 60, got %s", summary.NetProfit)
	}
	if len(summary.Products) != 1 || summary.Products[0].Flavor != "Chocolate" {
		t.Fatalf("expected per-product sales, got %+v", summary.Products)
	}

	w = httptest.NewRecorder()
	Reports(w, apiRequest(t, sm, http.MethodGet, "/app/api/reports/summary?from=2026-05-31&to=2026-05-01", nil, user.ID))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted period, got %d", w.Code)
	}
}

func TestReportCashFlowEndpoint(t *testing.T) {
	sm, cleanup := withTestSessionManager(t)
	t.Cleanup(cleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)
	user := seedUser(t, db, "owner@example.com")
	withFixedNow(t, time.Date(2026, 5, 14, 15, 0, 0, 0, time.UTC))
	seedLedger(t, db, user.ID, time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC))

	w := httptest.NewRecorder()
	Reports(w, apiRequest(t, sm, http.MethodGet, "/app/api/reports/cash-flow?period=daily&count=5", nil, user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var flow reports.CashFlow
	if err := json.Unmarshal(w.Body.Bytes(), &flow); err != nil {
		t.Fatalf("decode cash flow: %v", err)
	}
	if len(flow.Buckets) != 5 {
		t.Fatalf("expected 5 buckets, got %d", len(flow.Buckets))
	}
	if !flow.Income.Equal(decimal.NewFromInt(100)) || !flow.Outflow.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected totals: income %s outflow %s", flow.Income, flow.Outflow)
	}
	if !flow.Buckets[2].Net.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected May 12 bucket to net 60, got %s", flow.Buckets[2].Net)
	}

	w = httptest.NewRecorder()
	Reports(w, apiRequest(t, sm, http.MethodGet, "/app/api/reports/cash-flow?count=zero", nil, user.ID))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid count, got %d", w.Code)
	}
}

func TestReportSalesExports(t *testing.T) {
	sm, cleanup := withTestSessionManager(t)
	t.Cleanup(cleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)
	user := seedUser(t, db, "owner@example.com")
	seedLedger(t, db, user.ID, time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC))

	w := httptest.NewRecorder()
	Reports(w, apiRequest(t, sm, http.MethodGet, "/app/api/reports/sales.csv?from=2026-05-01&to=2026-05-31", nil, user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "sales-2026-05-01-2026-05-31.csv") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 || strings.Join(rows[0], ",") != "product,flavor,quantity,revenue,cost,profit" {
		t.Fatalf("unexpected csv rows: %v", rows)
	}
	if strings.Join(rows[1], ",") != "Cake,Chocolate,2,100.00,40.00,60.00" {
		t.Fatalf("unexpected csv data row: %v", rows[1])
	}

	w = httptest.NewRecorder()
	Reports(w, apiRequest(t, sm, http.MethodGet, "/app/api/reports/sales.xlsx?from=2026-05-01&to=2026-05-31", nil, user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	book, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer book.Close()
	value, err := book.GetCellValue(reports.SalesSheet, "B2")
	if err != nil || value != "Chocolate" {
		t.Fatalf("expected flavor in B2, got %q (err=%v)", value, err)
	}

	w = httptest.NewRecorder()
	Reports(w, apiRequest(t, sm, http.MethodGet, "/app/api/reports/unknown", nil, user.ID))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown report, got %d", w.Code)
	}
}
