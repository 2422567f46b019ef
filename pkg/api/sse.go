package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/yourusername/salvo/internal/config"
	"github.com/yourusername/salvo/pkg/engine"
	"go.uber.org/zap"
)

// SSEEvent represents a Server-Sent Event.
type SSEEvent struct {
	Event string      `json:"event"` // Event type: "progress", "result", "error", "done"
	Data  interface{} `json:"data"`  // Event data
}

// MonteCarloSSE streams Monte Carlo progress as Server-Sent Events.
// GET /api/montecarlo/stream?trials=...&workers=...&seed=...&board_size=...&fleet=4,3,2,1&skew=true
func (h *Handlers) MonteCarloSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeSSEError(w, "streaming not supported")
		return
	}

	req, err := parseMonteCarloQuery(r)
	if err != nil {
		writeSSEError(w, err.Error())
		return
	}

	e, err := h.engineFor(req.EngineParams)
	if err != nil {
		writeSSEError(w, err.Error())
		return
	}

	release, err := h.acquire(r.Context(), LaneSlow)
	if err != nil {
		writeSSEError(w, "server busy")
		return
	}
	defer release()

	callback := func(p engine.MonteCarloProgress) {
		writeSSEEvent(w, "progress", progressToEvent(p))
		flusher.Flush()
	}

	result, err := e.MonteCarloWithProgress(r.Context(), engine.MonteCarloOptions{
		Trials:  req.Trials,
		Workers: req.Workers,
		Seed:    req.Seed,
	}, callback)
	if err != nil {
		h.logger.Warn("monte carlo stream aborted", zap.Error(err))
		writeSSEError(w, "monte carlo failed: "+err.Error())
		return
	}

	writeSSEEvent(w, "result", monteCarloToResponse(result))
	flusher.Flush()

	writeSSEEvent(w, "done", nil)
	flusher.Flush()
}

// parseMonteCarloQuery reads MonteCarloRequest fields from query parameters.
func parseMonteCarloQuery(r *http.Request) (MonteCarloRequest, error) {
	query := r.URL.Query()
	req := MonteCarloRequest{
		Trials:  parseIntParam(query.Get("trials"), 0),
		Workers: parseIntParam(query.Get("workers"), 0),
		Seed:    int64(parseIntParam(query.Get("seed"), 0)),
	}
	req.BoardSize = parseIntParam(query.Get("board_size"), 0)

	if s := query.Get("fleet"); s != "" {
		fleet, err := config.ParseFleet(s)
		if err != nil {
			return req, fmt.Errorf("invalid fleet: %w", err)
		}
		req.Fleet = fleet
	}
	if s := query.Get("skew"); s != "" {
		skew, err := strconv.ParseBool(s)
		if err != nil {
			return req, fmt.Errorf("invalid skew: %w", err)
		}
		req.Skew = &skew
	}
	if s := query.Get("skew_factor"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return req, fmt.Errorf("invalid skew_factor: %w", err)
		}
		req.SkewFactor = f
	}
	if req.Trials < 0 || req.Workers < 0 {
		return req, fmt.Errorf("trials and workers must not be negative")
	}
	return req, nil
}

// writeSSEEvent writes a Server-Sent Event to the response.
func writeSSEEvent(w http.ResponseWriter, event string, data interface{}) {
	fmt.Fprintf(w, "event: %s\n", event)
	if data != nil {
		jsonData, _ := json.Marshal(data)
		fmt.Fprintf(w, "data: %s\n", jsonData)
	}
	fmt.Fprintf(w, "\n")
}

// writeSSEError writes an error event and closes the stream.
func writeSSEError(w http.ResponseWriter, message string) {
	writeSSEEvent(w, "error", map[string]string{"error": message})
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// parseIntParam parses an integer from a string with a default value.
func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return val
}
