package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	Platform      PlatformMetrics `json:"platform"`
	Session       SessionMetrics  `json:"session"`
	Cache         CacheMetrics    `json:"cache"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// PlatformMetrics contains platform link statistics.
type PlatformMetrics struct {
	Connected bool `json:"connected"`
}

// SessionMetrics describes the session lifecycle.
type SessionMetrics struct {
	State   string `json:"state"`
	PlaceID string `json:"place_id,omitempty"`
}

// CacheMetrics contains model cache statistics.
type CacheMetrics struct {
	Models int `json:"models"`
}

// handleMetrics returns runtime, link, session and cache metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Session: SessionMetrics{
			State: s.session.State().String(),
		},
	}

	if sess := s.session.Session(); sess != nil {
		metrics.Session.PlaceID = sess.PlaceID
	}
	if s.link != nil {
		metrics.Platform.Connected = s.link.IsConnected()
	}
	if s.cache != nil {
		metrics.Cache.Models = s.cache.Len()
	}

	writeJSON(w, http.StatusOK, metrics)
}
