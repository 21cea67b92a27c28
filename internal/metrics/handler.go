package metrics

import (
	"encoding/json"
	"net/http"
)

// Handler serves the collector's snapshot as JSON. The worker mounts it on
// its stats listener so stage timings are observable while it runs.
func Handler(c *Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(c.Snapshot()); err != nil {
			http.Error(w, "encode snapshot", http.StatusInternalServerError)
		}
	})
}
