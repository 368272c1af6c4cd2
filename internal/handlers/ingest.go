package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/kafka"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/metrics"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/models"
)

// Submitter hands a validated event to the evaluation shards without
// blocking. A false return means the shard queue is full.
type Submitter interface {
	TrySubmit(ev *models.ScoredEvent) bool
}

// IngestHandler accepts scored events over HTTP for collaborators that push
// instead of publishing to the events topic. Events take the same
// normalization/validation path as the Kafka consumer and feed the same
// evaluation shards.
type IngestHandler struct {
	submitter   Submitter
	maxBodySize int64
}

// IngestConfig holds configuration for the ingest handler
type IngestConfig struct {
	Submitter   Submitter
	MaxBodySize int64
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(cfg IngestConfig) *IngestHandler {
	maxBodySize := cfg.MaxBodySize
	if maxBodySize == 0 {
		maxBodySize = 10 * 1024 * 1024 // 10MB default
	}

	return &IngestHandler{
		submitter:   cfg.Submitter,
		maxBodySize: maxBodySize,
	}
}

// IngestRequest represents the incoming JSON payload (single or batch)
type IngestRequest struct {
	// Single event (if Events is empty)
	Event *kafka.ScoredEventInput `json:"event,omitempty"`

	// Batch of events
	Events []kafka.ScoredEventInput `json:"events,omitempty"`
}

// IngestResponse is the response returned to clients
type IngestResponse struct {
	Success  bool          `json:"success"`
	Accepted int           `json:"accepted"`
	Rejected int           `json:"rejected"`
	Errors   []IngestError `json:"errors,omitempty"`
}

// IngestError describes a validation error for a specific event
type IngestError struct {
	Index    int    `json:"index"`
	DeviceID string `json:"device_id,omitempty"`
	Error    string `json:"error"`
}

// ServeHTTP handles the ingest HTTP request
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType != "application/json" && contentType != "" {
		h.writeError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	inputs, err := h.parseBody(body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(inputs) == 0 {
		h.writeError(w, http.StatusBadRequest, "no events provided")
		return
	}

	response := h.processEvents(inputs)

	w.Header().Set("Content-Type", "application/json")
	if response.Rejected > 0 && response.Accepted == 0 {
		w.WriteHeader(http.StatusBadRequest)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(response)
}

// parseBody parses the JSON body into a slice of event inputs
func (h *IngestHandler) parseBody(body []byte) ([]kafka.ScoredEventInput, error) {
	// Try parsing as IngestRequest first
	var req IngestRequest
	if err := json.Unmarshal(body, &req); err == nil {
		if len(req.Events) > 0 {
			return req.Events, nil
		}
		if req.Event != nil {
			return []kafka.ScoredEventInput{*req.Event}, nil
		}
	}

	// Try parsing as array of events
	var inputs []kafka.ScoredEventInput
	if err := json.Unmarshal(body, &inputs); err == nil && len(inputs) > 0 {
		return inputs, nil
	}

	// Try parsing as single event
	var single kafka.ScoredEventInput
	if err := json.Unmarshal(body, &single); err == nil && single.DeviceID != "" {
		return []kafka.ScoredEventInput{single}, nil
	}

	return nil, fmt.Errorf("invalid JSON format: expected event object or array of events")
}

// processEvents converts, normalizes, validates, and submits events
func (h *IngestHandler) processEvents(inputs []kafka.ScoredEventInput) IngestResponse {
	response := IngestResponse{
		Success: true,
		Errors:  make([]IngestError, 0),
	}

	reject := func(i int, deviceID, msg string, reason string) {
		response.Errors = append(response.Errors, IngestError{
			Index:    i,
			DeviceID: deviceID,
			Error:    msg,
		})
		response.Rejected++
		metrics.EventsReceivedTotal.WithLabelValues("http", "skipped").Inc()
		metrics.EventsSkippedTotal.WithLabelValues(reason).Inc()
	}

	for i, input := range inputs {
		ev, err := input.ToEvent()
		if err != nil {
			reject(i, input.DeviceID, fmt.Sprintf("timestamp: %v", err), "bad_timestamp")
			continue
		}

		ev.Normalize()

		if err := ev.Validate(); err != nil {
			reject(i, ev.DeviceID, err.Error(), "invalid")
			continue
		}

		if !h.submitter.TrySubmit(ev) {
			reject(i, ev.DeviceID, "internal queue full, try again later", "queue_full")
			continue
		}

		response.Accepted++
		metrics.EventsReceivedTotal.WithLabelValues("http", "accepted").Inc()
	}

	response.Success = response.Rejected == 0
	return response
}

// writeError writes an error response
func (h *IngestHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
