package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/motion-bridge/internal/capture"
	"github.com/nerrad567/motion-bridge/internal/device"
	"github.com/nerrad567/motion-bridge/internal/hardware"
	"github.com/nerrad567/motion-bridge/internal/notify"
	"github.com/nerrad567/motion-bridge/internal/sampler"
	"github.com/nerrad567/motion-bridge/internal/server"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Devices       int               `json:"devices"`
	RespondToExit bool              `json:"respond_to_exit"`
	LastClient    string            `json:"last_client,omitempty"`
	Protocol      server.Stats      `json:"protocol"`
	Sampler       sampler.Stats     `json:"sampler"`
	Notifications NotificationStats `json:"notifications"`
	WebSocket     WSMetrics         `json:"websocket"`
	Runtime       RuntimeMetrics    `json:"runtime"`
}

// NotificationStats contains notification queue counters.
type NotificationStats struct {
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Pending   int    `json:"pending"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedEvents    uint64 `json:"dropped_events"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// DeviceResponse is one entry of GET /devices.
type DeviceResponse struct {
	device.Status
	Extension string `json:"extension"`
}

// CaptureResponse is one entry of GET /captures.
type CaptureResponse struct {
	capture.Record
	DurationMS int64 `json:"duration_ms"`
}

// RespondToExitRequest is the body of PUT /settings/respond-to-exit.
type RespondToExitRequest struct {
	Enabled *bool `json:"enabled"`
}

// bytesPerMB converts runtime byte counters to megabytes.
const bytesPerMB = 1024 * 1024

// handleStatus returns bridge-wide counters.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := StatusResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Devices:       s.registry.Count(),
		RespondToExit: s.protocol.RespondToExit(),
		Protocol:      s.protocol.Stats(),
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			DroppedEvents:    s.hub.Dropped(),
		},
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / bytesPerMB,
			NumGC:         mem.NumGC,
		},
	}
	if addr := s.protocol.LastClient(); addr != nil {
		resp.LastClient = addr.String()
	}
	if s.sampler != nil {
		resp.Sampler = s.sampler.Stats()
	}
	if s.notifications != nil {
		resp.Notifications = NotificationStats{
			Delivered: s.notifications.Delivered(),
			Dropped:   s.notifications.Dropped(),
			Pending:   s.notifications.Pending(),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleListDevices returns every registered device with its capture state
// and current extension.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.Devices()
	statuses := s.registry.Snapshot()

	out := make([]DeviceResponse, 0, len(statuses))
	for i, st := range statuses {
		ext := "unknown"
		if state, err := devices[i].Controller.State(); err == nil {
			ext = state.Extension
		}
		out = append(out, DeviceResponse{Status: st, Extension: ext})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": out,
		"count":   len(out),
	})
}

// deviceID resolves the 1-based {index} path parameter to a registry id.
func (s *Server) deviceID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		writeBadRequest(w, "device index must be an integer")
		return 0, false
	}
	id := index - 1
	if !s.registry.IsValid(id) {
		writeNotFound(w, "device "+raw+" not found")
		return 0, false
	}
	return id, true
}

func (s *Server) handleTestRumble(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deviceID(w, r)
	if !ok {
		return
	}
	s.runTest(w, "rumble", id, s.tester.TestRumble(r.Context(), id))
}

func (s *Server) handleTestSpeaker(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deviceID(w, r)
	if !ok {
		return
	}
	s.runTest(w, "speaker", id, s.tester.TestSpeaker(id))
}

func (s *Server) runTest(w http.ResponseWriter, test string, id int, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"test": test, "device": id, "status": "ok"})
	case errors.Is(err, device.ErrInvalidDevice):
		writeNotFound(w, err.Error())
	case errors.Is(err, hardware.ErrHardwareFailure):
		s.logger.Warn("manual test failed", "test", test, "device", id, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeHardware, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}

// handleNotifications returns the recent notification history, oldest first.
func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	recent := []notify.Notification{}
	if s.history != nil {
		recent = append(recent, s.history.Recent()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": recent,
		"count":         len(recent),
	})
}

// handleSetRespondToExit toggles the runtime exit policy.
func (s *Server) handleSetRespondToExit(w http.ResponseWriter, r *http.Request) {
	var req RespondToExitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Enabled == nil {
		writeBadRequest(w, "enabled is required")
		return
	}

	s.protocol.SetRespondToExit(*req.Enabled)
	writeJSON(w, http.StatusOK, map[string]any{"respond_to_exit": s.protocol.RespondToExit()})
}

// handleListCaptures returns archived captures, most recent first.
// Query parameters: device (1-based index), limit.
func (s *Server) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	if s.captures == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "capture archive is disabled")
		return
	}

	var filter capture.Filter
	if v := r.URL.Query().Get("device"); v != "" {
		index, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "device must be an integer")
			return
		}
		id := index - 1
		filter.DeviceID = &id
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	records, err := s.captures.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing captures failed", "error", err)
		writeInternalError(w, "failed to list captures")
		return
	}

	out := make([]CaptureResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, CaptureResponse{Record: rec, DurationMS: rec.DurationMS()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"captures": out,
		"count":    len(out),
	})
}

// handleCaptureSamples returns the decoded samples of one capture.
func (s *Server) handleCaptureSamples(w http.ResponseWriter, r *http.Request) {
	if s.captures == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "capture archive is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	samples, err := s.captures.Samples(r.Context(), id)
	switch {
	case errors.Is(err, capture.ErrNotFound):
		writeNotFound(w, "capture "+id+" not found")
		return
	case err != nil:
		s.logger.Error("loading capture samples failed", "id", id, "error", err)
		writeInternalError(w, "failed to load capture samples")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"samples": samples,
		"count":   len(samples),
	})
}
