package mock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	dbpkg "bizview/internal/db"
	applog "bizview/internal/log"
	"bizview/internal/stock"
	"bizview/models"
)

const (
	// DemoEmail and DemoPassword log into the seeded account.
	DemoEmail    = "demo@bizview.app"
	DemoPassword = "bizview"
)

// New returns an in-memory sqlite database seeded with a demo bakery account.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	db, err := gorm.Open(sqlite.Open("file:bizview-mock-"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		PrepareStmt:                              true,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection keeps the shared in-memory database alive and serialises writers.
	sqlDB.SetMaxOpenConns(1)

	if err := dbpkg.AutoMigrate(db); err != nil {
		return nil, err
	}

	if err := seed(ctx, db); err != nil {
		return nil, err
	}

	applog.Debug(ctx, "mock database ready")
	return db, nil
}

func seed(ctx context.Context, db *gorm.DB) error {
	applog.Debug(ctx, "seeding mock database")

	password, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &models.User{
		Name:         "Dana Baker",
		BusinessName: "Sweet Corner Bakery",
		Email:        DemoEmail,
		PasswordHash: string(password),
	}
	if err := db.WithContext(ctx).Create(user).Error; err != nil {
		return err
	}
	account := user.ID

	settings := models.DefaultSettings(account)
	settings.TaxRate = 0.06
	settings.CardFeeRate = 0.035
	settings.DebitFeeRate = 0.015
	settings.PixFeeRate = 0.0099
	settings.ProductCategories = datatypes.JSONSlice[string]{"Cakes", "Brownies", "Cookies"}
	if err := db.WithContext(ctx).Create(&settings).Error; err != nil {
		return err
	}

	material := func(description, unit, cost string, quantity, minStock float64, supplier string) models.RawMaterial {
		return models.RawMaterial{
			Record:      models.Record{AccountID: account},
			Description: description,
			Unit:        unit,
			CostPerUnit: decimal.RequireFromString(cost),
			Quantity:    quantity,
			MinStock:    minStock,
			Supplier:    supplier,
		}
	}
	flour := material("Wheat flour", "kg", "4.50", 25, 5, "Mill Co")
	eggs := material("Eggs", "un", "0.80", 90, 24, "Happy Farm")
	sugar := material("Sugar", "kg", "5.20", 12, 3, "Mill Co")
	cocoa := material("Cocoa powder", "kg", "38.00", 3, 1, "Cacau Brasil")
	butter := material("Butter", "kg", "42.00", 4, 1, "Happy Farm")
	lemons := material("Lemons", "un", "0.60", 8, 20, "Local market")

	materials := []*models.RawMaterial{&flour, &eggs, &sugar, &cocoa, &butter, &lemons}
	costs := make(map[string]decimal.Decimal, len(materials))
	for _, m := range materials {
		if err := db.WithContext(ctx).Create(m).Error; err != nil {
			return err
		}
		costs[m.ID] = m.CostPerUnit
	}

	cake := models.FinishedProduct{
		Record:    models.Record{AccountID: account},
		Name:      "Layer cake",
		Category:  "Cakes",
		Unit:      "un",
		SalePrice: decimal.RequireFromString("45.00"),
		Recipe: []models.RecipeItem{
			{RawMaterialID: flour.ID, QuantityPerUnit: 0.5},
			{RawMaterialID: eggs.ID, QuantityPerUnit: 4},
			{RawMaterialID: sugar.ID, QuantityPerUnit: 0.3},
			{RawMaterialID: butter.ID, QuantityPerUnit: 0.2},
		},
		Flavors: []models.Flavor{{Name: "Chocolate"}, {Name: "Lemon"}},
	}
	brownie := models.FinishedProduct{
		Record:    models.Record{AccountID: account},
		Name:      "Brownie",
		Category:  "Brownies",
		Unit:      "un",
		SalePrice: decimal.RequireFromString("8.00"),
		Recipe: []models.RecipeItem{
			{RawMaterialID: flour.ID, QuantityPerUnit: 0.05},
			{RawMaterialID: cocoa.ID, QuantityPerUnit: 0.03},
			{RawMaterialID: sugar.ID, QuantityPerUnit: 0.04},
			{RawMaterialID: eggs.ID, QuantityPerUnit: 0.5},
		},
		Flavors: []models.Flavor{{Name: models.DefaultFlavorName}},
	}
	for _, p := range []*models.FinishedProduct{&cake, &brownie} {
		p.FinalCost = p.RecipeCost(costs)
		if err := db.WithContext(ctx).Create(p).Error; err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	day := func(offset int) time.Time {
		return now.AddDate(0, 0, -offset)
	}

	service := stock.NewService(db)
	runs := []stock.ProduceRequest{
		{ProductID: cake.ID, FlavorID: cake.Flavors[0].ID, Quantity: 6, Date: day(6)},
		{ProductID: cake.ID, FlavorID: cake.Flavors[1].ID, Quantity: 3, Date: day(5)},
		{ProductID: brownie.ID, FlavorID: brownie.Flavors[0].ID, Quantity: 24, Date: day(4)},
	}
	for _, run := range runs {
		if _, err := service.Produce(ctx, account, run); err != nil {
			return err
		}
	}

	sales := []stock.SellRequest{
		{ProductID: cake.ID, FlavorID: cake.Flavors[0].ID, Quantity: 2, Date: day(3), PaymentMethod: models.PaymentPix, Location: "Shop"},
		{ProductID: cake.ID, FlavorID: cake.Flavors[1].ID, Quantity: 1, Date: day(2), PaymentMethod: models.PaymentCard, Location: "Farmers market"},
		{ProductID: brownie.ID, FlavorID: brownie.Flavors[0].ID, Quantity: 10, Date: day(1), PaymentMethod: models.PaymentCash, Location: "Shop"},
	}
	for _, sale := range sales {
		if _, err := service.Sell(ctx, account, sale); err != nil {
			return err
		}
	}

	if _, err := service.Purchase(ctx, account, stock.PurchaseRequest{
		RawMaterialID: flour.ID,
		Quantity:      10,
		UnitCost:      decimal.RequireFromString("4.30"),
		Date:          day(2),
	}); err != nil {
		return err
	}

	ledger := []any{
		&models.Revenue{
			Record:        models.Record{AccountID: account},
			Amount:        decimal.RequireFromString("180.00"),
			Date:          day(4),
			Category:      "catering",
			Source:        "Birthday order",
			PaymentMethod: models.PaymentTransfer,
		},
		&models.Expense{
			Record:        models.Record{AccountID: account},
			Amount:        decimal.RequireFromString("320.00"),
			Date:          day(5),
			Category:      "rent",
			Description:   "Kitchen rent",
			PaymentMethod: models.PaymentTransfer,
		},
		&models.Expense{
			Record:        models.Record{AccountID: account},
			Amount:        decimal.RequireFromString("64.90"),
			Date:          day(3),
			Category:      "utilities",
			Description:   "Gas refill",
			PaymentMethod: models.PaymentDebit,
		},
	}
	for _, entry := range ledger {
		if err := db.WithContext(ctx).Create(entry).Error; err != nil {
			return err
		}
	}

	return nil
}
