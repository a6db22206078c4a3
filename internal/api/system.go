package api

import (
	"context"
	"net/http"
	"runtime"
	"time"
)

// healthCheckTimeout bounds all dependency checks of one /healthz request.
const healthCheckTimeout = 2 * time.Second

// SystemInfo is the response of GET /api/v1/system.
type SystemInfo struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	Devices       int            `json:"devices"`
	StreamClients int            `json:"stream_clients"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// handleHealth runs every registered check. Any failure returns 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":  overall,
		"version": s.version,
		"checks":  checks,
	})
}

func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, SystemInfo{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / 1024 / 1024,
			NumGC:         mem.NumGC,
		},
		Devices:       s.sw.DeviceCount(),
		StreamClients: s.hub.ClientCount(),
	})
}

// handleDiagnostic dumps every device and group with recent events.
func (s *Server) handleDiagnostic(w http.ResponseWriter, r *http.Request) {
	d, err := s.sw.Diagnostic(r.Context())
	if err != nil {
		s.writeSwitchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
