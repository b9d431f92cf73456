package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/filekv/internal/core/service"
	"github.com/yndnr/filekv/internal/infra/buildinfo"
)

// StatsSource reports store state for /healthz.
type StatsSource interface {
	Stats() service.Stats
}

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Store backs /healthz. Nil reports the process as healthy.
	Store StatsSource

	// Metrics serves /metrics. Nil disables the endpoint.
	Metrics http.Handler

	// Logger for access and panic logging.
	Logger *slog.Logger
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status      string    `json:"status"`
	Version     string    `json:"version"`
	Time        time.Time `json:"time"`
	Entries     int       `json:"entries"`
	ReaperState string    `json:"reaper_state,omitempty"`
}

// NewRouter creates the HTTP handler with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler(cfg.Store))
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	// Order: Recover -> RequestID -> AccessLog -> mux
	return Chain(mux, Recover(logger), RequestID(), AccessLog(logger))
}

func healthHandler(store StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Version: buildinfo.Get().Version,
			Time:    time.Now().UTC(),
		}
		code := http.StatusOK

		if store != nil {
			st := store.Stats()
			resp.Entries = st.Entries
			resp.ReaperState = st.ReaperState
			if st.Closed {
				resp.Status = "closed"
				code = http.StatusServiceUnavailable
			}
		}

		writeJSON(w, code, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
