package pages

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
	"github.com/shopspring/decimal"

	"bizview/internal/reports"
	"bizview/internal/views/components"
	"bizview/internal/views/layout"
)

// DashboardData feeds the dashboard. Summary is nil when the figures could not be loaded.
type DashboardData struct {
	UserName     string
	BusinessName string
	Summary      *reports.Summary
	Message      string
}

// Money formats an amount with two decimals.
func Money(d decimal.Decimal) string {
	return "R$ " + d.StringFixed(2)
}

func (d DashboardData) heading() string {
	if d.BusinessName != "" {
		return d.BusinessName
	}
	return "Your business"
}

func salesRows(summary *reports.Summary) []components.SalesRow {
	if summary == nil {
		return nil
	}
	rows := make([]components.SalesRow, 0, len(summary.Products))
	for _, p := range summary.Products {
		rows = append(rows, components.SalesRow{
			Product:  p.Product,
			Flavor:   p.Flavor,
			Quantity: p.Quantity,
			Revenue:  Money(p.Revenue),
			Profit:   Money(p.Profit),
		})
	}
	return rows
}

// DashboardPartial renders the month overview without the document shell.
func DashboardPartial(data DashboardData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		header := `<header><h1>` + templ.EscapeString(data.heading()) + `</h1>`
		if data.UserName != "" {
			header += `<p class="muted">Signed in as ` + templ.EscapeString(data.UserName) + `</p>`
		}
		header += `<form method="post" action="/logout"><button type="submit">Sign out</button></form></header>` + alert(data.Message)
		if _, err := io.WriteString(w, `<section id="dashboard">`+header); err != nil {
			return err
		}

		if s := data.Summary; s != nil {
			if _, err := io.WriteString(w, `<div class="grid">`); err != nil {
				return err
			}
			cards := []templ.Component{
				components.StatCard("Revenue", Money(s.Revenue), "", "This month"),
				components.StatCard("Expenses", Money(s.Expenses.Add(s.Purchases)), "", "Expenses and purchases"),
				components.StatCard("Net profit", Money(s.NetProfit), "", "After fees and taxes"),
				components.StatCard("Low stock", strconv.Itoa(s.LowStockCount), "", "Raw materials at or below minimum"),
			}
			for _, card := range cards {
				if err := card.Render(ctx, w); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, `</div><h2>Sales by product</h2>`); err != nil {
				return err
			}
			if err := components.SalesTable(salesRows(s)).Render(ctx, w); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, `</section>`)
		return err
	})
}

// Dashboard renders the full dashboard page.
func Dashboard(data DashboardData) templ.Component {
	return layout.Layout("Dashboard | BizView", DashboardPartial(data))
}
