// Package components holds small reusable fragments for the server-rendered pages.
package components

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// SalesRow is one line of the per-product sales table, already formatted for display.
type SalesRow struct {
	Product  string
	Flavor   string
	Quantity int
	Revenue  string
	Profit   string
}

// StatCard renders a headline figure with an optional change indicator and caption.
func StatCard(title, value, delta, caption string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := `<div class="card"><p class="muted">` + templ.EscapeString(title) + `</p><p><strong>` + templ.EscapeString(value) + `</strong>`
		if delta != "" {
			out += ` <span class="` + deltaClass(delta) + `">` + templ.EscapeString(delta) + `</span>`
		}
		out += `</p>`
		if caption != "" {
			out += `<p class="muted">` + templ.EscapeString(caption) + `</p>`
		}
		out += `</div>`
		_, err := io.WriteString(w, out)
		return err
	})
}

// SalesTable renders per-product sales or an empty-state line.
func SalesTable(rows []SalesRow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(rows) == 0 {
			_, err := io.WriteString(w, `<p class="muted">No sales recorded in this period.</p>`)
			return err
		}
		if _, err := io.WriteString(w, `<table><thead><tr><th>Product</th><th>Flavor</th><th>Qty</th><th>Revenue</th><th>Profit</th></tr></thead><tbody>`); err != nil {
			return err
		}
		for _, row := range rows {
			line := fmt.Sprintf(`<tr><td>%s</td><td>%s</td><td>%d</td><td>%s</td><td>%s</td></tr>`,
				templ.EscapeString(row.Product), templ.EscapeString(row.Flavor), row.Quantity,
				templ.EscapeString(row.Revenue), templ.EscapeString(row.Profit))
			if _, err := io.WriteString(w, line); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table>`)
		return err
	})
}

func deltaClass(delta string) string {
	if len(delta) > 0 && delta[0] == '-' {
		return "delta negative"
	}
	return "delta positive"
}
