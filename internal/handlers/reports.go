package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	applog "bizview/internal/log"
	"bizview/internal/reports"
	"bizview/models"
)

const reportsPrefix = "/app/api/reports/"

// Reports serves the summary, cash-flow and sales export endpoints.
func Reports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	switch name := strings.Trim(strings.TrimPrefix(r.URL.Path, reportsPrefix), "/"); name {
	case "summary":
		reportSummary(w, r, userID)
	case "cash-flow":
		reportCashFlow(w, r, userID)
	case "sales.csv", "sales.xlsx":
		reportSalesExport(w, r, userID, strings.TrimPrefix(name, "sales."))
	default:
		http.NotFound(w, r)
	}
}

func reportSummary(w http.ResponseWriter, r *http.Request, userID uint) {
	ctx := r.Context()
	from, to, err := periodFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	settings, err := loadSettings(ctx, database, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := reports.BuildSummary(ctx, database, userID, from, to, settings)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func reportCashFlow(w http.ResponseWriter, r *http.Request, userID uint) {
	query := r.URL.Query()
	count := 0
	if v := strings.TrimSpace(query.Get("count")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeJSONError(w, http.StatusBadRequest, "count must be a positive number")
			return
		}
		count = parsed
	}

	flow, err := reports.BuildCashFlow(r.Context(), database, userID, query.Get("period"), count, nowFunc().UTC())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flow)
}

func reportSalesExport(w http.ResponseWriter, r *http.Request, userID uint, format string) {
	ctx := r.Context()
	from, to, err := periodFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var sales []models.Sale
	if err := database.WithContext(ctx).
		Where("account_id = ? AND date >= ? AND date < ?", userID, from, to).
		Order("date").
		Find(&sales).Error; err != nil {
		applog.Error(ctx, "failed to load sales for export", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to export sales")
		return
	}
	rows := reports.ProductSalesFor(sales)

	var buf bytes.Buffer
	contentType := "text/csv; charset=utf-8"
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = reports.WriteXLSX(&buf, rows)
	} else {
		err = reports.WriteCSV(&buf, rows)
	}
	if err != nil {
		applog.Error(ctx, "failed to write sales export", "format", format, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to export sales")
		return
	}

	filename := fmt.Sprintf("sales-%s-%s.%s", from.Format(dateLayout), to.AddDate(0, 0, -1).Format(dateLayout), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		applog.Debug(ctx, "sales export write interrupted", "error", err)
	}
}
