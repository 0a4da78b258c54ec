package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"bizview/internal/handlers"
	applog "bizview/internal/log"
)

// apiRoutes are the protected JSON resources. Each is mounted with and without a trailing slash so
// record ids can follow the prefix.
var apiRoutes = []struct {
	path    string
	handler http.HandlerFunc
}{
	{"/app/api/raw-materials", handlers.RawMaterialResource},
	{"/app/api/products", handlers.ProductResource},
	{"/app/api/production", handlers.ProductionResource},
	{"/app/api/sales", handlers.SaleResource},
	{"/app/api/purchases", handlers.PurchaseResource},
	{"/app/api/stock-adjustments", handlers.StockAdjustmentResource},
	{"/app/api/revenues", handlers.RevenueResource},
	{"/app/api/expenses", handlers.ExpenseResource},
	{"/app/api/settings", handlers.SettingsResource},
	{"/app/api/reports", handlers.Reports},
	{"/app/api/ai/appointments-summary", handlers.AppointmentsSummary},
	{"/app/api/ai/price-suggestion", handlers.PriceSuggestion},
	{"/app/api/ai/recipe-suggestion", handlers.RecipeSuggestion},
}

func newRouter() http.Handler {
	mux := http.NewServeMux()
	applog.Debug(context.Background(), "registering http routes")
	mux.HandleFunc("/healthz", handlers.Health)
	applog.Debug(context.Background(), "route registered", "path", "/healthz")
	mux.HandleFunc("/login", handlers.Login)
	applog.Debug(context.Background(), "route registered", "path", "/login")
	mux.HandleFunc("/signup", handlers.Signup)
	applog.Debug(context.Background(), "route registered", "path", "/signup")
	mux.HandleFunc("/logout", handlers.Logout)
	applog.Debug(context.Background(), "route registered", "path", "/logout")
	mux.HandleFunc("/api/token", handlers.IssueToken)
	applog.Debug(context.Background(), "route registered", "path", "/api/token")

	for _, route := range apiRoutes {
		protected := handlers.RequireAuthentication(route.handler)
		mux.Handle(route.path, protected)
		mux.Handle(route.path+"/", protected)
		applog.Debug(context.Background(), "route registered", "path", route.path, "protected", true)
	}
	mux.Handle("/app/api/", handlers.RequireAuthentication(http.NotFoundHandler()))

	mux.Handle("/app", handlers.RequireAuthentication(http.HandlerFunc(handlers.Dashboard)))
	mux.Handle("/app/", handlers.RequireAuthentication(http.HandlerFunc(handlers.Dashboard)))
	applog.Debug(context.Background(), "route registered", "path", "/app", "protected", true)
	mux.HandleFunc("/", handlers.Home)
	applog.Debug(context.Background(), "route registered", "path", "/")
	return tagRequests(mux)
}

// tagRequests gives every request an id, echoed in X-Request-ID and attached to its log lines.
func tagRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := applog.With(r.Context(), "request", id, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
