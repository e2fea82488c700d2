// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package api

import (
	"net/http"
	"time"
)

// HealthLive reports that the process is serving requests.
//
// GET /healthz
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady reports whether the backend can be reached, judged by the
// client's circuit breaker so probes do not add backend load.
//
// GET /readyz
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ready := h.cfg.Backend.Ready()

	data := map[string]interface{}{
		"backend_available": ready,
		"ready_to_serve":    ready,
		"uptime":            time.Since(h.startTime).Seconds(),
	}
	rw := NewResponseWriter(w, r)
	if !ready {
		rw.writeJSON(http.StatusServiceUnavailable, &APIResponse{
			Status:   "not_ready",
			Data:     data,
			Metadata: rw.metadata(),
		})
		return
	}
	rw.Success(data)
}
