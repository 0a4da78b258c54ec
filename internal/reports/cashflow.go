package reports

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bizview/internal/apperr"
	"bizview/models"
)

const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"

	maxBuckets = 366
)

// CashFlowBucket totals money in and out over [Start, End).
type CashFlowBucket struct {
	Label   string          `json:"label"`
	Start   time.Time       `json:"start"`
	End     time.Time       `json:"end"`
	Income  decimal.Decimal `json:"income"`
	Outflow decimal.Decimal `json:"outflow"`
	Net     decimal.Decimal `json:"net"`
}

// CashFlow is an ordered series of buckets ending with the one that contains "now".
type CashFlow struct {
	Period  string           `json:"period"`
	Buckets []CashFlowBucket `json:"buckets"`
	Income  decimal.Decimal  `json:"income"`
	Outflow decimal.Decimal  `json:"outflow"`
	Net     decimal.Decimal  `json:"net"`
}

// DefaultBucketCount is used when no count is requested.
func DefaultBucketCount(period string) int {
	switch period {
	case PeriodWeekly:
		return 8
	case PeriodMonthly:
		return 12
	default:
		return 7
	}
}

// Buckets lays out count empty buckets for period, the last one containing now. Weeks start on Monday.
func Buckets(period string, count int, now time.Time) ([]CashFlowBucket, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = PeriodDaily
	}
	if count <= 0 {
		count = DefaultBucketCount(period)
	}
	if count > maxBuckets {
		return nil, apperr.Validation("count is too large")
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var (
		last   time.Time
		step   func(time.Time, int) time.Time
		layout string
	)
	switch period {
	case PeriodDaily:
		last = today
		step = func(t time.Time, n int) time.Time { return t.AddDate(0, 0, n) }
		layout = "2006-01-02"
	case PeriodWeekly:
		offset := (int(today.Weekday()) + 6) % 7
		last = today.AddDate(0, 0, -offset)
		step = func(t time.Time, n int) time.Time { return t.AddDate(0, 0, 7*n) }
		layout = "2006-01-02"
	case PeriodMonthly:
		last = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		step = func(t time.Time, n int) time.Time { return t.AddDate(0, n, 0) }
		layout = "2006-01"
	default:
		return nil, apperr.Validation("period must be daily, weekly or monthly")
	}

	buckets := make([]CashFlowBucket, count)
	for i := 0; i < count; i++ {
		start := step(last, i-(count-1))
		buckets[i] = CashFlowBucket{
			Label:   start.Format(layout),
			Start:   start,
			End:     step(start, 1),
			Income:  decimal.Zero,
			Outflow: decimal.Zero,
			Net:     decimal.Zero,
		}
	}
	return buckets, nil
}

// Movement is a dated amount entering (positive) or leaving (negative) the business.
type Movement struct {
	Date   time.Time
	Amount decimal.Decimal
}

// FillBuckets adds each movement to the bucket containing its date and computes the totals.
// Movements outside every bucket are ignored.
func FillBuckets(period string, buckets []CashFlowBucket, movements []Movement) CashFlow {
	flow := CashFlow{
		Period:  period,
		Buckets: buckets,
		Income:  decimal.Zero,
		Outflow: decimal.Zero,
	}
	for _, m := range movements {
		for i := range buckets {
			b := &buckets[i]
			if m.Date.Before(b.Start) || !m.Date.Before(b.End) {
				continue
			}
			if m.Amount.IsNegative() {
				b.Outflow = b.Outflow.Add(m.Amount.Neg())
			} else {
				b.Income = b.Income.Add(m.Amount)
			}
			break
		}
	}
	for i := range buckets {
		buckets[i].Net = buckets[i].Income.Sub(buckets[i].Outflow)
		flow.Income = flow.Income.Add(buckets[i].Income)
		flow.Outflow = flow.Outflow.Add(buckets[i].Outflow)
	}
	flow.Net = flow.Income.Sub(flow.Outflow)
	return flow
}

// BuildCashFlow buckets revenues as income and expenses plus purchases as outflow.
func BuildCashFlow(ctx context.Context, db *gorm.DB, accountID uint, period string, count int, now time.Time) (CashFlow, error) {
	if db == nil {
		return CashFlow{}, gorm.ErrInvalidDB
	}
	buckets, err := Buckets(period, count, now)
	if err != nil {
		return CashFlow{}, err
	}
	from := buckets[0].Start
	to := buckets[len(buckets)-1].End

	scoped := func() *gorm.DB {
		return db.WithContext(ctx).Where("account_id = ? AND date >= ? AND date < ?", accountID, from, to)
	}

	var revenues []models.Revenue
	if err := scoped().Find(&revenues).Error; err != nil {
		return CashFlow{}, err
	}
	var expenses []models.Expense
	if err := scoped().Find(&expenses).Error; err != nil {
		return CashFlow{}, err
	}
	var purchases []models.Purchase
	if err := scoped().Find(&purchases).Error; err != nil {
		return CashFlow{}, err
	}

	movements := make([]Movement, 0, len(revenues)+len(expenses)+len(purchases))
	for _, r := range revenues {
		movements = append(movements, Movement{Date: r.Date.In(now.Location()), Amount: r.Amount})
	}
	for _, e := range expenses {
		movements = append(movements, Movement{Date: e.Date.In(now.Location()), Amount: e.Amount.Neg()})
	}
	for _, p := range purchases {
		movements = append(movements, Movement{Date: p.Date.In(now.Location()), Amount: p.TotalCost.Neg()})
	}

	normalized := strings.ToLower(strings.TrimSpace(period))
	if normalized == "" {
		normalized = PeriodDaily
	}
	return FillBuckets(normalized, buckets, movements), nil
}
