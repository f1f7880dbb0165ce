package api

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"fieldroute/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                    os.Getenv("PORT"),
			"AUTH_MODE":               os.Getenv("AUTH_MODE"),
			"OPTIMIZE_TIME_BUDGET_MS": os.Getenv("OPTIMIZE_TIME_BUDGET_MS"),
			"SPEED_KMH":               os.Getenv("SPEED_KMH"),
			"DWELL_MINUTES":           os.Getenv("DWELL_MINUTES"),
			"WEBHOOK_MAX_ATTEMPTS":    os.Getenv("WEBHOOK_MAX_ATTEMPTS"),
			"HAS_DATABASE_URL":        os.Getenv("DATABASE_URL") != "",
			"HAS_REDIS_URL":           os.Getenv("REDIS_URL") != "",
			"HAS_GOOGLE_MAPS_API_KEY": os.Getenv("GOOGLE_MAPS_API_KEY") != "",
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}
