// Package health exposes the service liveness endpoint. The long-term tier
// is probed with a ping; a failed ping reports the tier as disconnected and
// degrades the overall status.
package health

import (
	"encoding/json"
	"net/http"
	"time"

	"memory-service/internal/common/logging"
	"memory-service/internal/memory"
)

// Response is the health endpoint payload.
type Response struct {
	Status    string       `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	LongTerm  string       `json:"long_term"`
	ShortTerm memory.Stats `json:"short_term"`
}

// Handler returns the health-check endpoint for the given memory instances.
func Handler(long memory.LongTermMemory, short memory.ShortTermMemory) http.HandlerFunc {
	logger := logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "health"})

	return func(w http.ResponseWriter, r *http.Request) {
		response := Response{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			LongTerm:  "connected",
			ShortTerm: short.Stats(),
		}

		statusCode := http.StatusOK
		if err := long.Ping(r.Context()); err != nil {
			logger.Warn("Health check failed", logging.Err(err))
			response.Status = "degraded"
			response.LongTerm = "disconnected"
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(response)
	}
}
