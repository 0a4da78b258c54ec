package handlers

import (
	"net/http"

	applog "bizview/internal/log"
	"bizview/internal/reports"
	"bizview/internal/views/pages"
)

// Dashboard renders the current-month summary once a user is authenticated.
func Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	data := pages.DashboardData{}
	if sessionManager != nil {
		data.UserName = sessionManager.GetString(ctx, sessionUserNameKey)
		data.BusinessName = sessionManager.GetString(ctx, sessionBusinessNameKey)
	}

	if userID, ok := currentUserID(r); ok && database != nil {
		from, to := reports.MonthRange(nowFunc().UTC())
		settings, err := loadSettings(ctx, database, userID)
		if err == nil {
			var summary reports.Summary
			summary, err = reports.BuildSummary(ctx, database, userID, from, to, settings)
			data.Summary = &summary
		}
		if err != nil {
			applog.Error(ctx, "failed to build dashboard summary", "error", err, "userID", userID)
			data.Summary = nil
			data.Message = "We couldn't load this month's numbers. Please refresh the page."
		}
	}

	renderView(w, r, "dashboard", pages.Dashboard(data), pages.DashboardPartial(data))
}
