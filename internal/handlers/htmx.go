package handlers

import (
	"net/http"

	"github.com/a-h/templ"

	applog "bizview/internal/log"
)

// isHTMX reports whether the request was issued by htmx and expects a fragment.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true" || r.Header.Get("HX-Boosted") == "true"
}

// navigate sends the browser to target. htmx ignores 3xx on XHR, so it gets HX-Redirect instead.
func navigate(w http.ResponseWriter, r *http.Request, target string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// renderView writes the partial for htmx swaps and the full page otherwise.
func renderView(w http.ResponseWriter, r *http.Request, view string, page, partial templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	component := page
	if isHTMX(r) {
		component = partial
	}
	if err := component.Render(r.Context(), w); err != nil {
		applog.Error(r.Context(), "failed to render view", "view", view, "htmx", isHTMX(r), "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
