package handlers

import (
	"context"
	"net/http"
	"time"

	applog "bizview/internal/log"
)

const healthPingTimeout = 2 * time.Second

type healthResponse struct {
	Status   string    `json:"status"`
	Database string    `json:"database"`
	Time     time.Time `json:"time"`
}

// Health reports whether the process is serving and whether its database answers a ping.
// A missing database is reported but does not fail the check, so the login pages stay reachable.
func Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: databaseStatus(r.Context()), Time: nowFunc().UTC()}
	status := http.StatusOK
	if resp.Database == "down" {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func databaseStatus(ctx context.Context) string {
	if database == nil {
		return "not configured"
	}
	sqlDB, err := database.DB()
	if err != nil {
		applog.Warn(ctx, "health check could not reach the connection pool", "error", err)
		return "down"
	}
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		applog.Warn(ctx, "database ping failed", "error", err)
		return "down"
	}
	return "up"
}
