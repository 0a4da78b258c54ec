// Package reports aggregates the ledger into period summaries, per-product sales and cash-flow
// buckets, and exports sales as CSV or XLSX.
package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bizview/internal/apperr"
	"bizview/models"
)

// Summary totals one account's activity over [From, To).
type Summary struct {
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Revenue       decimal.Decimal `json:"revenue"`
	Expenses      decimal.Decimal `json:"expenses"`
	Purchases     decimal.Decimal `json:"purchases"`
	SalesCount    int             `json:"sales_count"`
	UnitsSold     int             `json:"units_sold"`
	CostOfSales   decimal.Decimal `json:"cost_of_sales"`
	PaymentFees   decimal.Decimal `json:"payment_fees"`
	Taxes         decimal.Decimal `json:"taxes"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	LowStockCount int             `json:"low_stock_count"`
	Products      []ProductSales  `json:"products"`
}

// ProductSales totals sales of one product flavor.
type ProductSales struct {
	Product  string          `json:"product"`
	Flavor   string          `json:"flavor"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
	Cost     decimal.Decimal `json:"cost"`
	Profit   decimal.Decimal `json:"profit"`
}

// MonthRange returns the calendar month containing t as [first day, first day of next month).
func MonthRange(t time.Time) (time.Time, time.Time) {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return from, from.AddDate(0, 1, 0)
}

// BuildSummary loads the ledger for [from, to) and totals it. Fees and taxes are estimated from the
// account settings.
func BuildSummary(ctx context.Context, db *gorm.DB, accountID uint, from, to time.Time, settings models.Settings) (Summary, error) {
	if db == nil {
		return Summary{}, gorm.ErrInvalidDB
	}
	if !to.After(from) {
		return Summary{}, apperr.Validation("the end of the period must be after its start")
	}

	scoped := func() *gorm.DB {
		return db.WithContext(ctx).Where("account_id = ? AND date >= ? AND date < ?", accountID, from, to)
	}

	var sales []models.Sale
	if err := scoped().Order("date").Find(&sales).Error; err != nil {
		return Summary{}, err
	}
	var revenues []models.Revenue
	if err := scoped().Find(&revenues).Error; err != nil {
		return Summary{}, err
	}
	var expenses []models.Expense
	if err := scoped().Find(&expenses).Error; err != nil {
		return Summary{}, err
	}
	var purchases []models.Purchase
	if err := scoped().Find(&purchases).Error; err != nil {
		return Summary{}, err
	}
	var lowStock int64
	if err := db.WithContext(ctx).Model(&models.RawMaterial{}).
		Where("account_id = ? AND quantity <= min_stock", accountID).
		Count(&lowStock).Error; err != nil {
		return Summary{}, err
	}

	summary := Summarize(sales, revenues, expenses, purchases, settings)
	summary.From = from
	summary.To = to
	summary.LowStockCount = int(lowStock)
	return summary, nil
}

// Summarize totals already loaded ledger records.
func Summarize(sales []models.Sale, revenues []models.Revenue, expenses []models.Expense, purchases []models.Purchase, settings models.Settings) Summary {
	s := Summary{
		Revenue:     decimal.Zero,
		Expenses:    decimal.Zero,
		Purchases:   decimal.Zero,
		CostOfSales: decimal.Zero,
		PaymentFees: decimal.Zero,
		Products:    ProductSalesFor(sales),
	}

	for _, r := range revenues {
		s.Revenue = s.Revenue.Add(r.Amount)
		s.PaymentFees = s.PaymentFees.Add(r.Amount.Mul(decimal.NewFromFloat(settings.FeeRate(r.PaymentMethod))))
	}
	for _, e := range expenses {
		s.Expenses = s.Expenses.Add(e.Amount)
	}
	for _, p := range purchases {
		s.Purchases = s.Purchases.Add(p.TotalCost)
	}
	for _, sale := range sales {
		s.SalesCount++
		s.UnitsSold += sale.Quantity
		s.CostOfSales = s.CostOfSales.Add(sale.UnitCost.Mul(decimal.NewFromInt(int64(sale.Quantity))))
	}

	rates := settings.TaxRate + settings.PlatformFeeRate
	s.Taxes = s.Revenue.Mul(decimal.NewFromFloat(rates)).Round(2)
	s.PaymentFees = s.PaymentFees.Round(2)
	s.CostOfSales = s.CostOfSales.Round(2)
	s.NetProfit = s.Revenue.Sub(s.Expenses).Sub(s.Purchases).Sub(s.PaymentFees).Sub(s.Taxes)
	return s
}

// ProductSalesFor groups sales by product and flavor, ordered by revenue then name.
func ProductSalesFor(sales []models.Sale) []ProductSales {
	type key struct{ product, flavor string }
	index := map[key]int{}
	rows := []ProductSales{}

	for _, sale := range sales {
		k := key{sale.ProductName, sale.FlavorName}
		i, ok := index[k]
		if !ok {
			i = len(rows)
			index[k] = i
			rows = append(rows, ProductSales{
				Product: sale.ProductName,
				Flavor:  sale.FlavorName,
				Revenue: decimal.Zero,
				Cost:    decimal.Zero,
			})
		}
		row := &rows[i]
		row.Quantity += sale.Quantity
		row.Revenue = row.Revenue.Add(sale.TotalAmount)
		row.Cost = row.Cost.Add(sale.UnitCost.Mul(decimal.NewFromInt(int64(sale.Quantity))))
	}

	for i := range rows {
		rows[i].Cost = rows[i].Cost.Round(2)
		rows[i].Profit = rows[i].Revenue.Sub(rows[i].Cost)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Revenue.Equal(rows[j].Revenue) {
			return rows[i].Revenue.GreaterThan(rows[j].Revenue)
		}
		if rows[i].Product != rows[j].Product {
			return rows[i].Product < rows[j].Product
		}
		return rows[i].Flavor < rows[j].Flavor
	})
	return rows
}
