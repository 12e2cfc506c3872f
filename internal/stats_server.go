// Package internal hosts the read-only stats endpoint, a
// request/response channel deliberately kept apart from the event
// stream. It never mutates domain state.
package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type StatsProvider func() map[string]any

// StartStatsServer serves GET /stats with a JSON snapshot from the
// provider. It listens in a background goroutine and is best-effort:
// a bind failure is logged, not fatal.
func StartStatsServer(log *slog.Logger, port int, provider StatsProvider) {
	mux := http.NewServeMux()
	started := time.Now()

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]any{
			"uptime": time.Since(started).Round(time.Second).String(),
		}
		if provider != nil {
			for k, v := range provider() {
				stats[k] = v
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			log.Debug("Failed to write stats response", "err", err)
		}
	})

	go func() {
		addr := fmt.Sprintf("0.0.0.0:%d", port)
		log.Info("Stats endpoint listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warn("Stats server stopped", "err", err)
		}
	}()
}
