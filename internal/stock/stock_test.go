package stock

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bizview/internal/apperr"
	"bizview/models"
)

const testAccount uint = 1

var dsnUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]`)

type fixture struct {
	db        *gorm.DB
	service   *Service
	flour     models.RawMaterial
	cocoa     models.RawMaterial
	cake      models.FinishedProduct
	chocolate models.Flavor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:stock_" + dsnUnsafe.ReplaceAllString(t.Name(), "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.RawMaterial{},
		&models.FinishedProduct{},
		&models.RecipeItem{},
		&models.Flavor{},
		&models.Sale{},
		&models.Revenue{},
		&models.Purchase{},
		&models.ProductionRun{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	f := &fixture{db: db, service: NewService(db)}
	f.flour = models.RawMaterial{
		Record:      models.Record{AccountID: testAccount},
		Description: "Flour",
		Unit:        "kg",
		CostPerUnit: decimal.RequireFromString("4.50"),
		Quantity:    10,
		Supplier:    "Mill Co",
	}
	f.cocoa = models.RawMaterial{
		Record:      models.Record{AccountID: testAccount},
		Description: "Cocoa",
		Unit:        "kg",
		CostPerUnit: decimal.RequireFromString("20"),
		Quantity:    2,
	}
	for _, m := range []*models.RawMaterial{&f.flour, &f.cocoa} {
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("seed raw material: %v", err)
		}
	}

	f.cake = models.FinishedProduct{
		Record:    models.Record{AccountID: testAccount},
		Name:      "Cake",
		Unit:      "un",
		SalePrice: decimal.RequireFromString("35"),
		FinalCost: decimal.RequireFromString("15.5"),
		Recipe: []models.RecipeItem{
			{RawMaterialID: f.flour.ID, QuantityPerUnit: 3},
			{RawMaterialID: f.cocoa.ID, QuantityPerUnit: 0.1},
		},
		Flavors: []models.Flavor{{Name: "Chocolate", Stock: 5}},
	}
	if err := db.Create(&f.cake).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	f.chocolate = f.cake.Flavors[0]
	return f
}

func (f *fixture) material(t *testing.T, id string) models.RawMaterial {
	t.Helper()
	var m models.RawMaterial
	if err := f.db.First(&m, "id = ?", id).Error; err != nil {
		t.Fatalf("load raw material: %v", err)
	}
	return m
}

func (f *fixture) flavorStock(t *testing.T) int {
	t.Helper()
	var flavor models.Flavor
	if err := f.db.First(&flavor, "id = ?", f.chocolate.ID).Error; err != nil {
		t.Fatalf("load flavor: %v", err)
	}
	return flavor.Stock
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestProduceRejectsInsufficientMaterialWithoutChanges(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Produce(context.Background(), testAccount, ProduceRequest{
		ProductID: f.cake.ID,
		FlavorID:  f.chocolate.ID,
		Quantity:  4,
	})
	if !errors.Is(err, apperr.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	var stockErr *apperr.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %T", err)
	}
	if stockErr.Item != "Flour" || stockErr.Required != 12 || stockErr.Available != 10 {
		t.Fatalf("unexpected error detail: %+v", stockErr)
	}

	if got := f.material(t, f.flour.ID).Quantity; got != 10 {
		t.Fatalf("flour quantity changed to %v", got)
	}
	if got := f.flavorStock(t); got != 5 {
		t.Fatalf("flavor stock changed to %d", got)
	}
	if n := f.count(t, &models.ProductionRun{}); n != 0 {
		t.Fatalf("expected no production runs, got %d", n)
	}
}

func TestProduceConsumesRecipeAndAddsStock(t *testing.T) {
	f := newFixture(t)

	date := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	run, err := f.service.Produce(context.Background(), testAccount, ProduceRequest{
		ProductID: f.cake.ID,
		FlavorID:  f.chocolate.ID,
		Quantity:  3,
		Date:      date,
	})
	if err != nil {
		t.Fatalf("Produce() error = %v", err)
	}

	if got := f.material(t, f.flour.ID).Quantity; got != 1 {
		t.Fatalf("flour quantity = %v, want 1", got)
	}
	if got := f.material(t, f.cocoa.ID).Quantity; math.Abs(got-1.7) > 1e-9 {
		t.Fatalf("cocoa quantity = %v, want 1.7", got)
	}
	if got := f.flavorStock(t); got != 8 {
		t.Fatalf("flavor stock = %d, want 8", got)
	}
	// 9kg flour at 4.50 plus 0.3kg cocoa at 20.
	if !run.TotalCost.Equal(decimal.RequireFromString("46.5")) {
		t.Fatalf("total cost = %s, want 46.5", run.TotalCost)
	}
	if !run.Date.Equal(date) || run.Quantity != 3 {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestProduceValidatesRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Produce(context.Background(), testAccount, ProduceRequest{
		ProductID: f.cake.ID,
		FlavorID:  f.chocolate.ID,
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = f.service.Produce(context.Background(), testAccount, ProduceRequest{
		ProductID: f.cake.ID,
		FlavorID:  "missing",
		Quantity:  1,
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for unknown flavor, got %v", err)
	}
}

func TestSellRejectsOversellWithoutChanges(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Sell(context.Background(), testAccount, SellRequest{
		ProductID: f.cake.ID,
		FlavorID:  f.chocolate.ID,
		Quantity:  6,
	})
	if !errors.Is(err, apperr.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := apperr.Message(err); got != "Insufficient stock for Cake (Chocolate): required 6, available 5." {
		t.Fatalf("unexpected message %q", got)
	}
	if got := f.flavorStock(t); got != 5 {
		t.Fatalf("flavor stock changed to %d", got)
	}
	if n := f.count(t, &models.Sale{}); n != 0 {
		t.Fatalf("expected no sales, got %d", n)
	}
	if n := f.count(t, &models.Revenue{}); n != 0 {
		t.Fatalf("expected no revenues, got %d", n)
	}
}

func TestSellRecordsSaleAndLinkedRevenue(t *testing.T) {
	f := newFixture(t)

	price := decimal.RequireFromString("40")
	result, err := f.service.Sell(context.Background(), testAccount, SellRequest{
		ProductID:     f.cake.ID,
		FlavorID:      f.chocolate.ID,
		Quantity:      2,
		UnitPrice:     &price,
		PaymentMethod: "PIX",
		Location:      "Market",
	})
	if err != nil {
		t.Fatalf("Sell() error = %v", err)
	}

	if got := f.flavorStock(t); got != 3 {
		t.Fatalf("flavor stock = %d, want 3", got)
	}
	if !result.Sale.TotalAmount.Equal(decimal.RequireFromString("80")) {
		t.Fatalf("sale total = %s", result.Sale.TotalAmount)
	}
	if result.Sale.PaymentMethod != models.PaymentPix {
		t.Fatalf("payment method = %q", result.Sale.PaymentMethod)
	}
	if result.Sale.RevenueID != result.Revenue.ID {
		t.Fatalf("sale does not reference revenue")
	}

	var revenue models.Revenue
	if err := f.db.First(&revenue, "sale_id = ?", result.Sale.ID).Error; err != nil {
		t.Fatalf("load linked revenue: %v", err)
	}
	if !revenue.Amount.Equal(result.Sale.TotalAmount) || revenue.Category != RevenueCategorySales {
		t.Fatalf("unexpected revenue: %+v", revenue)
	}
}

func TestSellDefaultsToProductPrice(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.Sell(context.Background(), testAccount, SellRequest{
		ProductID: f.cake.ID,
		FlavorID:  f.chocolate.ID,
		Quantity:  1,
	})
	if err != nil {
		t.Fatalf("Sell() error = %v", err)
	}
	if !result.Sale.UnitPrice.Equal(f.cake.SalePrice) {
		t.Fatalf("unit price = %s, want %s", result.Sale.UnitPrice, f.cake.SalePrice)
	}
	if result.Sale.PaymentMethod != models.PaymentCash {
		t.Fatalf("payment method = %q, want cash", result.Sale.PaymentMethod)
	}
}

func TestSellRejectsUnknownPaymentMethod(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Sell(context.Background(), testAccount, SellRequest{
		ProductID:     f.cake.ID,
		FlavorID:      f.chocolate.ID,
		Quantity:      1,
		PaymentMethod: "barter",
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSellIsScopedToAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Sell(context.Background(), testAccount+1, SellRequest{
		ProductID: f.cake.ID,
		FlavorID:  f.chocolate.ID,
		Quantity:  1,
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for foreign account, got %v", err)
	}
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixture(t)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Sell(context.Background(), testAccount, SellRequest{
				ProductID: f.cake.ID,
				FlavorID:  f.chocolate.ID,
				Quantity:  1,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperr.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 || rejected != attempts-5 {
		t.Fatalf("succeeded=%d rejected=%d, want 5/%d", succeeded, rejected, attempts-5)
	}
	if got := f.flavorStock(t); got != 0 {
		t.Fatalf("flavor stock = %d, want 0", got)
	}
	if n := f.count(t, &models.Sale{}); n != 5 {
		t.Fatalf("sales = %d, want 5", n)
	}
}

func TestCancelSaleRestoresStockAndRemovesRevenue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.Sell(ctx, testAccount, SellRequest{
		ProductID: f.cake.ID,
		FlavorID:  f.chocolate.ID,
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("Sell() error = %v", err)
	}

	if _, err := f.service.CancelSale(ctx, testAccount, result.Sale.ID); err != nil {
		t.Fatalf("CancelSale() error = %v", err)
	}
	if got := f.flavorStock(t); got != 5 {
		t.Fatalf("flavor stock = %d, want 5", got)
	}
	if n := f.count(t, &models.Sale{}); n != 0 {
		t.Fatalf("sales = %d, want 0", n)
	}
	if n := f.count(t, &models.Revenue{}); n != 0 {
		t.Fatalf("revenues = %d, want 0", n)
	}

	if _, err := f.service.CancelSale(ctx, testAccount, result.Sale.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found on second cancel, got %v", err)
	}
}

func TestCancelSaleFailsWhenProductRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.Sell(ctx, testAccount, SellRequest{
		ProductID: f.cake.ID,
		FlavorID:  f.chocolate.ID,
		Quantity:  1,
	})
	if err != nil {
		t.Fatalf("Sell() error = %v", err)
	}
	if err := f.db.Delete(&models.FinishedProduct{}, "id = ?", f.cake.ID).Error; err != nil {
		t.Fatalf("delete product: %v", err)
	}

	if _, err := f.service.CancelSale(ctx, testAccount, result.Sale.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if n := f.count(t, &models.Sale{}); n != 1 {
		t.Fatalf("sale should remain, got %d", n)
	}
	if n := f.count(t, &models.Revenue{}); n != 1 {
		t.Fatalf("revenue should remain, got %d", n)
	}
}

func TestPurchaseAddsQuantityAndUpdatesCost(t *testing.T) {
	f := newFixture(t)

	purchase, err := f.service.Purchase(context.Background(), testAccount, PurchaseRequest{
		RawMaterialID: f.flour.ID,
		Quantity:      25,
		UnitCost:      decimal.RequireFromString("4"),
	})
	if err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}

	m := f.material(t, f.flour.ID)
	if m.Quantity != 35 {
		t.Fatalf("flour quantity = %v, want 35", m.Quantity)
	}
	if !m.CostPerUnit.Equal(decimal.RequireFromString("4")) {
		t.Fatalf("cost per unit = %s, want 4", m.CostPerUnit)
	}
	if !purchase.TotalCost.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("total cost = %s, want 100", purchase.TotalCost)
	}
	if purchase.Supplier != "Mill Co" {
		t.Fatalf("supplier = %q, want material supplier", purchase.Supplier)
	}

	var cake models.FinishedProduct
	if err := f.db.First(&cake, "id = ?", f.cake.ID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if !cake.FinalCost.Equal(decimal.RequireFromString("14")) {
		t.Fatalf("final cost = %s, want 14 after the purchase", cake.FinalCost)
	}
}

type failingAtomic struct {
	err error
}

func (a failingAtomic) RunAtomic(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return a.err
}

func TestServiceSurfacesAtomicFailure(t *testing.T) {
	boom := errors.New("boom")
	service := New(failingAtomic{err: boom})

	_, err := service.Purchase(context.Background(), testAccount, PurchaseRequest{
		RawMaterialID: "m1",
		Quantity:      1,
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected atomic error, got %v", err)
	}

	if _, err := service.CancelSale(context.Background(), 0, "s1"); !errors.Is(err, apperr.ErrAuthentication) {
		t.Fatalf("expected authentication error for missing account, got %v", err)
	}
}

func TestSellExactStockThenRejectsNext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.Sell(ctx, testAccount, SellRequest{ProductID: f.cake.ID, FlavorID: f.chocolate.ID, Quantity: 5}); err != nil {
		t.Fatalf("Sell(5) error = %v", err)
	}
	if got := f.flavorStock(t); got != 0 {
		t.Fatalf("flavor stock = %d, want 0", got)
	}
	_, err := f.service.Sell(ctx, testAccount, SellRequest{ProductID: f.cake.ID, FlavorID: f.chocolate.ID, Quantity: 1})
	if !errors.Is(err, apperr.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}
