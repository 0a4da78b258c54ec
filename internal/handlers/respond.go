package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bizview/internal/apperr"
	applog "bizview/internal/log"
)

const (
	maxJSONBody = 1 << 20
	dateLayout  = "2006-01-02"
)

var nowFunc = time.Now

// actionResult is the envelope returned by stock events.
type actionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// suggestionResult is the envelope returned by the AI endpoints.
type suggestionResult struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		applog.Error(context.Background(), "failed to encode json response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps err onto its status and user-facing message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		applog.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSONError(w, status, errorMessage(err))
}

func writeActionError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		applog.Error(r.Context(), "action failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, actionResult{Success: false, Message: errorMessage(err)})
}

func errorStatus(err error) int {
	if errors.Is(err, gorm.ErrInvalidDB) {
		return http.StatusServiceUnavailable
	}
	return apperr.Status(err)
}

func errorMessage(err error) string {
	if errors.Is(err, gorm.ErrInvalidDB) {
		return "The service is unavailable because no database connection is configured."
	}
	return apperr.Message(err)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, apperr.ErrNotFound)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst); err != nil {
		applog.Debug(r.Context(), "invalid json payload", "path", r.URL.Path, "error", err)
		return apperr.Validation("invalid request payload")
	}
	return nil
}

// resourcePath splits the path below prefix into an optional record id. ok is false when the id
// is not a UUID.
func resourcePath(r *http.Request, prefix string) (id string, ok bool) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if rest == "" {
		return "", true
	}
	if strings.Contains(rest, "/") || uuid.Validate(rest) != nil {
		return "", false
	}
	return rest, true
}

// requireAccount resolves the account and the database, writing the error response when either
// is missing.
func requireAccount(w http.ResponseWriter, r *http.Request) (uint, bool) {
	if database == nil {
		applog.Debug(r.Context(), "request without database", "path", r.URL.Path)
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return 0, false
	}
	userID, ok := currentUserID(r)
	if !ok {
		applog.Debug(r.Context(), "request missing authenticated user", "path", r.URL.Path)
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return 0, false
	}
	return userID, true
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Blank values return the zero time.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperr.Validation("dates must use the YYYY-MM-DD format")
	}
	return t.UTC(), nil
}

// periodFromQuery reads ?from and ?to (both inclusive days). Missing bounds default to the current month.
func periodFromQuery(r *http.Request) (time.Time, time.Time, error) {
	now := nowFunc().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed.AddDate(0, 0, 1)
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, apperr.Validation("the end of the period must be after its start")
	}
	return from, to, nil
}
