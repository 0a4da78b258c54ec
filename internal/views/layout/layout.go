// Package layout renders the HTML document shell shared by every page.
package layout

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const stylesheet = `body{font-family:system-ui,sans-serif;margin:0;background:#f8fafc;color:#0f172a}
.shell{max-width:64rem;margin:0 auto;padding:2rem 1rem}
.card{background:#fff;border:1px solid #e2e8f0;border-radius:.75rem;padding:1.25rem}
.grid{display:grid;gap:1rem;grid-template-columns:repeat(auto-fit,minmax(12rem,1fr))}
.muted{color:#64748b}
.alert{background:#fef2f2;color:#991b1b;border-radius:.5rem;padding:.75rem;margin-bottom:1rem}
table{width:100%;border-collapse:collapse}th,td{text-align:left;padding:.5rem;border-bottom:1px solid #e2e8f0}
form label{display:block;margin:.75rem 0 .25rem}input{width:100%;padding:.5rem;box-sizing:border-box}
button{margin-top:1rem;padding:.5rem 1rem}`

// Layout wraps content in the document shell with the given title.
func Layout(title string, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>`+
			templ.EscapeString(title)+`</title><script src="https://unpkg.com/htmx.org@1.9.12"></script><style>`+stylesheet+`</style></head><body><div class="`+
			mainClass(content != nil)+`">`); err != nil {
			return err
		}
		if content != nil {
			if err := content.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</div></body></html>`)
		return err
	})
}

func mainClass(hasContent bool) string {
	if hasContent {
		return "shell"
	}
	return "shell muted"
}
