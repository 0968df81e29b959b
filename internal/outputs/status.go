package outputs

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AircraftCounter reports the coordinator's live registry size for the
// status endpoint.
type AircraftCounter interface {
	AircraftCount() int
}

// StatusServer is the optional local admin/status HTTP endpoint: a JSON
// summary at /status plus a Prometheus scrape passthrough at /metrics,
// routed with chi the same way the teacher routes its API surface.
type StatusServer struct {
	srv *http.Server
}

// NewStatusServer builds (but does not start) a status server listening on
// addr.
func NewStatusServer(addr string, aircraft AircraftCounter) *StatusServer {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"aircraft_tracked": aircraft.AircraftCount(),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	return &StatusServer{srv: &http.Server{Addr: addr, Handler: r}}
}

// ListenAndServe blocks serving the status endpoint until Close is called.
func (s *StatusServer) ListenAndServe() error {
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts the status server down.
func (s *StatusServer) Close() error {
	return s.srv.Close()
}
