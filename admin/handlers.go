package admin

import (
	"encoding/json"
	"net/http"

	"github.com/maxpert/auditsource/cfg"
	"github.com/maxpert/auditsource/notify"
	"github.com/maxpert/auditsource/publisher"
	"github.com/rs/zerolog/log"
)

// HealthReporter is implemented by publisher.Source
type HealthReporter interface {
	Health() publisher.Health
}

// Handlers serves the admin endpoints of one audit source
type Handlers struct {
	source HealthReporter
	wake   *notify.Hub
	config *cfg.Configuration
}

// NewHandlers creates admin handlers reporting on source. wake may be nil,
// which disables the poll endpoint.
func NewHandlers(source HealthReporter, wake *notify.Hub, config *cfg.Configuration) *Handlers {
	return &Handlers{source: source, wake: wake, config: config}
}

// handleHealth reports 200 after a successful cycle and 503 after a failed one
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := h.source.Health()

	status := http.StatusOK
	if health.Status == publisher.Backoff {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// handleStatus returns the health snapshot along with what is being polled
func (h *Handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, map[string]interface{}{
		"name":          h.config.Name,
		"table":         h.config.Source.Table,
		"cursor_column": h.config.Source.CursorColumn,
		"sink":          h.config.Sink.Type,
		"topic":         h.config.Sink.Topic,
		"health":        h.source.Health(),
	})
}

// handleCheckpoint returns the committed cursor value, null when none
func (h *Handlers) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, map[string]interface{}{
		"committed": h.source.Health().Committed,
	})
}

// handlePoll wakes the driver so the next poll starts without waiting for
// the pacing interval
func (h *Handlers) handlePoll(w http.ResponseWriter, r *http.Request) {
	if h.wake == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "wake-up is not available")
		return
	}

	woken := h.wake.Signal(h.config.Name, "admin")
	log.Info().Int("woken", woken).Msg("Poll requested")
	writeJSONResponse(w, map[string]interface{}{
		"woken": woken,
	})
}

// writeJSONResponse writes a successful JSON response
func writeJSONResponse(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
	})
}

// writeErrorResponse writes an error JSON response
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
